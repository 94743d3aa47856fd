package usecase

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autoyard/garageapi/internal/core/ports"
)

// DeliveryDispatcher drains pending notification deliveries in the
// background and hands them to the configured sender. Failures retry with a
// growing backoff until the attempt budget is spent, then dead-letter.
type DeliveryDispatcher struct {
	repo      ports.DeliveryRepository
	sender    ports.Sender
	interval  time.Duration
	batchSize int
	maxRetry  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sentTotal   atomic.Int64
	failedTotal atomic.Int64
	deadTotal   atomic.Int64
}

type DeliveryDispatcherMetrics struct {
	SentTotal   int64
	FailedTotal int64
	DeadTotal   int64
}

func NewDeliveryDispatcher(repo ports.DeliveryRepository, sender ports.Sender, interval time.Duration, batchSize int) *DeliveryDispatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &DeliveryDispatcher{repo: repo, sender: sender, interval: interval, batchSize: batchSize, maxRetry: 5}
}

func (d *DeliveryDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *DeliveryDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *DeliveryDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.sendBatch(ctx); err != nil {
			log.Printf("delivery batch error: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *DeliveryDispatcher) sendBatch(ctx context.Context) error {
	pending, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, delivery := range pending {
		if err := d.sender.Send(ctx, delivery); err != nil {
			attempts := delivery.Attempts + 1
			if attempts >= d.maxRetry {
				if markErr := d.repo.MarkDead(ctx, delivery.ID, attempts, err.Error()); markErr != nil {
					return markErr
				}
				d.deadTotal.Add(1)
				continue
			}
			next := time.Now().UTC().Add(backoffDuration(attempts)).Format(time.RFC3339Nano)
			if markErr := d.repo.MarkFailed(ctx, delivery.ID, attempts, next, err.Error()); markErr != nil {
				return markErr
			}
			d.failedTotal.Add(1)
			continue
		}

		if err := d.repo.MarkSent(ctx, delivery.ID); err != nil {
			return err
		}
		d.sentTotal.Add(1)
	}

	return nil
}

func (d *DeliveryDispatcher) Metrics() DeliveryDispatcherMetrics {
	return DeliveryDispatcherMetrics{
		SentTotal:   d.sentTotal.Load(),
		FailedTotal: d.failedTotal.Load(),
		DeadTotal:   d.deadTotal.Load(),
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
