package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoyard/garageapi/internal/core/domain"
)

type memDeliveryRepo struct {
	mu         sync.Mutex
	deliveries map[int64]*domain.Delivery
	nextID     int64
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{deliveries: map[int64]*domain.Delivery{}}
}

func (r *memDeliveryRepo) add(d domain.Delivery) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	if d.Status == "" {
		d.Status = domain.DeliveryPending
	}
	r.deliveries[d.ID] = &d
	return d.ID
}

func (r *memDeliveryRepo) get(id int64) domain.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.deliveries[id]
}

func (r *memDeliveryRepo) FetchPending(_ context.Context, limit int) ([]domain.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []domain.Delivery
	for _, d := range r.deliveries {
		retryable := d.Status == domain.DeliveryPending || d.Status == domain.DeliveryFailed
		if retryable && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) MarkSent(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.deliveries[id]
	d.Status = domain.DeliverySent
	now := time.Now().UTC()
	d.SentAt = &now
	return nil
}

func (r *memDeliveryRepo) MarkFailed(_ context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return err
	}
	d := r.deliveries[id]
	d.Status = domain.DeliveryFailed
	d.Attempts = attempts
	d.NextAttemptAt = parsed
	d.LastError = errMsg
	return nil
}

func (r *memDeliveryRepo) MarkDead(_ context.Context, id int64, attempts int, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.deliveries[id]
	d.Status = domain.DeliveryDead
	d.Attempts = attempts
	d.LastError = errMsg
	return nil
}

type stubSender struct {
	mu   sync.Mutex
	err  error
	sent []domain.Delivery
}

func (s *stubSender) Send(_ context.Context, d domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, d)
	return nil
}

func pendingDelivery() domain.Delivery {
	now := time.Now().UTC()
	return domain.Delivery{
		EventID:       "evt-1",
		Resource:      "booking",
		RecordID:      "b1",
		Event:         "booking.created",
		Recipient:     "client@example.com",
		Subject:       "hi",
		Body:          "body",
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

func TestSendBatchMarksSent(t *testing.T) {
	repo := newMemDeliveryRepo()
	id := repo.add(pendingDelivery())
	sender := &stubSender{}
	d := NewDeliveryDispatcher(repo, sender, time.Second, 10)

	require.NoError(t, d.sendBatch(context.Background()))

	got := repo.get(id)
	assert.Equal(t, domain.DeliverySent, got.Status)
	require.NotNil(t, got.SentAt)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(1), d.Metrics().SentTotal)
}

func TestSendBatchRetriesWithBackoff(t *testing.T) {
	repo := newMemDeliveryRepo()
	id := repo.add(pendingDelivery())
	sender := &stubSender{err: errors.New("endpoint down")}
	d := NewDeliveryDispatcher(repo, sender, time.Second, 10)

	require.NoError(t, d.sendBatch(context.Background()))

	got := repo.get(id)
	assert.Equal(t, domain.DeliveryFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "endpoint down", got.LastError)
	assert.True(t, got.NextAttemptAt.After(time.Now().UTC().Add(500*time.Millisecond)),
		"next attempt must be pushed into the future")
	assert.Equal(t, int64(1), d.Metrics().FailedTotal)

	// Not yet due, so a second batch skips it.
	require.NoError(t, d.sendBatch(context.Background()))
	assert.Equal(t, 1, repo.get(id).Attempts)
}

func TestSendBatchDeadLettersAfterMaxRetries(t *testing.T) {
	repo := newMemDeliveryRepo()
	delivery := pendingDelivery()
	delivery.Attempts = 4
	id := repo.add(delivery)
	sender := &stubSender{err: errors.New("still down")}
	d := NewDeliveryDispatcher(repo, sender, time.Second, 10)

	require.NoError(t, d.sendBatch(context.Background()))

	got := repo.get(id)
	assert.Equal(t, domain.DeliveryDead, got.Status)
	assert.Equal(t, 5, got.Attempts)
	assert.Equal(t, int64(1), d.Metrics().DeadTotal)
}

func TestStartAndCloseAreIdempotent(t *testing.T) {
	repo := newMemDeliveryRepo()
	d := NewDeliveryDispatcher(repo, &stubSender{}, 10*time.Millisecond, 10)

	d.Start(context.Background())
	d.Start(context.Background())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestBackoffDuration(t *testing.T) {
	assert.Equal(t, time.Second, backoffDuration(0))
	assert.Equal(t, time.Second, backoffDuration(1))
	assert.Equal(t, 4*time.Second, backoffDuration(2))
	assert.Equal(t, 9*time.Second, backoffDuration(3))
	assert.Equal(t, 5*time.Minute, backoffDuration(60))
}
