package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoyard/garageapi/internal/core/domain"
)

type memKeyRepo struct {
	mu   sync.Mutex
	keys map[string]domain.APIKey
}

func newMemKeyRepo() *memKeyRepo {
	return &memKeyRepo{keys: map[string]domain.APIKey{}}
}

func (r *memKeyRepo) FindByTokenHash(_ context.Context, hash string) (domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[hash]
	if !ok {
		return domain.APIKey{}, domain.ErrNotFound
	}
	return key, nil
}

func (r *memKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.TokenHash] = key
	return nil
}

func TestBearerTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(newMemKeyRepo(), "test-secret")

	token, err := svc.IssueToken(domain.Caller{ID: "u1", Role: "admin"})
	require.NoError(t, err)

	caller, err := svc.AuthenticateBearer(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.ID)
	assert.Equal(t, "admin", caller.Role)
}

func TestBearerTokenWrongSecret(t *testing.T) {
	issuer := NewAuthService(newMemKeyRepo(), "secret-a")
	verifier := NewAuthService(newMemKeyRepo(), "secret-b")

	token, err := issuer.IssueToken(domain.Caller{ID: "u1", Role: "user"})
	require.NoError(t, err)

	_, err = verifier.AuthenticateBearer(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestBearerTokenGarbage(t *testing.T) {
	svc := NewAuthService(newMemKeyRepo(), "test-secret")

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.AuthenticateBearer(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrUnauthorized, "token %q", token)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	repo := newMemKeyRepo()
	require.NoError(t, repo.Upsert(context.Background(), domain.APIKey{
		TokenHash: HashToken("raw-key"),
		UserID:    "svc-1",
		Role:      "user",
		Name:      "ci",
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.Upsert(context.Background(), domain.APIKey{
		TokenHash: HashToken("revoked-key"),
		UserID:    "svc-2",
		Role:      "user",
		Name:      "old",
		Active:    false,
	}))

	svc := NewAuthService(repo, "test-secret")

	caller, err := svc.AuthenticateAPIKey(context.Background(), "raw-key")
	require.NoError(t, err)
	assert.Equal(t, "svc-1", caller.ID)

	_, err = svc.AuthenticateAPIKey(context.Background(), "revoked-key")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.AuthenticateAPIKey(context.Background(), "unknown-key")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
