package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/autoyard/garageapi/internal/core/domain"
	"github.com/autoyard/garageapi/internal/core/ports"
)

// AuthService resolves credentials into a Caller. Two credential types are
// accepted: bearer JWTs signed with the configured HMAC secret (interactive
// users) and API keys stored as sha256 hashes (service callers).
type AuthService struct {
	repo      ports.APIKeyRepository
	jwtSecret []byte
}

func NewAuthService(repo ports.APIKeyRepository, jwtSecret string) *AuthService {
	return &AuthService{repo: repo, jwtSecret: []byte(jwtSecret)}
}

// AuthenticateBearer verifies a JWT and extracts the caller from its
// sub/role claims.
func (s *AuthService) AuthenticateBearer(_ context.Context, token string) (domain.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(s.jwtSecret) == 0 {
		return domain.Caller{}, domain.ErrUnauthorized
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Caller{}, domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = "user"
	}
	return domain.Caller{ID: sub, Role: role}, nil
}

// AuthenticateAPIKey looks up an active API key by the hash of the raw token.
func (s *AuthService) AuthenticateAPIKey(ctx context.Context, token string) (domain.Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Caller{}, domain.ErrUnauthorized
	}

	key, err := s.repo.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Caller{}, domain.ErrUnauthorized
		}
		return domain.Caller{}, err
	}
	if !key.Active {
		return domain.Caller{}, domain.ErrUnauthorized
	}
	return domain.Caller{ID: key.UserID, Role: key.Role}, nil
}

// IssueToken signs a JWT for the given caller. Used by tests and tooling;
// token issuance for real users lives outside this service.
func (s *AuthService) IssueToken(caller domain.Caller) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  caller.ID,
		"role": caller.Role,
	})
	return token.SignedString(s.jwtSecret)
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
