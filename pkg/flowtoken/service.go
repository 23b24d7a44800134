package flowtoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-flow/pkg/flowplan"
)

// Service issues, redeems and rotates flow tokens
type Service struct {
	repo        Repository
	tokenExpiry time.Duration
}

// ServiceOption defines configuration options
type ServiceOption func(*Service)

// WithTokenExpiry sets the default token expiration duration
func WithTokenExpiry(expiry time.Duration) ServiceOption {
	return func(s *Service) {
		s.tokenExpiry = expiry
	}
}

// NewService creates a new flow token service
func NewService(repo Repository, opts ...ServiceOption) *Service {
	service := &Service{
		repo:        repo,
		tokenExpiry: 30 * time.Minute, // Default 30 minutes
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// generateKey generates a cryptographically secure random token key.
// Unpadded URL-safe base64 keeps the key intact inside query strings.
func generateKey() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate token key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Identifier builds the deterministic token identifier from its parts,
// slugified so it is stable regardless of input casing or punctuation.
func Identifier(parts ...string) string {
	return slugify(strings.Join(parts, "-"))
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// GetOrCreate returns the live token for identifier, creating one bound
// to the given plan snapshot if none exists. An existing token is
// returned unchanged even when close to or past expiry; existence, not
// freshness, gates creation, so reloading a verification page never
// invalidates a link already sent. Callers that care about freshness
// check IsExpired and call Rotate.
func (s *Service) GetOrCreate(ctx context.Context, identifier string, userID uuid.UUID, plan []byte, ttl time.Duration) (*FlowToken, error) {
	token, err := s.repo.GetByIdentifier(ctx, identifier)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, ErrTokenNotFound) {
		slog.Error("Failed to look up flow token", "identifier", identifier, "error", err)
		return nil, fmt.Errorf("failed to look up flow token: %w", err)
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.tokenExpiry
	}

	token, err = s.repo.Create(ctx, FlowToken{
		Identifier: identifier,
		Key:        key,
		UserID:     userID,
		Plan:       plan,
		ExpiresAt:  time.Now().UTC().Add(ttl),
	})
	if err != nil {
		slog.Error("Failed to create flow token", "identifier", identifier, "error", err)
		return nil, fmt.Errorf("failed to create flow token: %w", err)
	}

	slog.Info("Flow token created", "identifier", identifier, "token_id", token.ID, "expires_at", token.ExpiresAt)
	return token, nil
}

// Redeem looks up a token by its opaque key and rehydrates the plan it
// carries. Expiry is deliberately not a redemption precondition: an
// expired token still redeems once so a late click lands back on the
// stage prompt (which then rotates the token) instead of a dead end.
// The restored plan is flagged so stages can detect out-of-band
// resumption.
func (s *Service) Redeem(ctx context.Context, key string) (*FlowToken, *flowplan.Plan, error) {
	if key == "" {
		return nil, nil, ErrInvalidKey
	}

	token, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil, ErrTokenNotFound
		}
		slog.Error("Failed to look up flow token by key", "error", err)
		return nil, nil, fmt.Errorf("failed to look up flow token: %w", err)
	}

	plan, err := flowplan.Restore(token.Plan)
	if err != nil {
		slog.Error("Failed to restore plan from flow token", "token_id", token.ID, "error", err)
		return nil, nil, err
	}

	plan.Context[flowplan.ContextIsRestored] = true

	slog.Info("Flow token redeemed", "identifier", token.Identifier, "token_id", token.ID, "expired", token.IsExpired())
	return token, plan, nil
}

// Rotate replaces a token's key and extends its expiry while preserving
// the identifier and the plan snapshot, so the renewed link still
// resumes the original plan. Pass ttl <= 0 to use the service default.
func (s *Service) Rotate(ctx context.Context, token *FlowToken, ttl time.Duration) (*FlowToken, error) {
	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = s.tokenExpiry
	}

	rotated, err := s.repo.UpdateKeyAndExpiry(ctx, token.ID, key, time.Now().UTC().Add(ttl))
	if err != nil {
		slog.Error("Failed to rotate flow token", "token_id", token.ID, "error", err)
		return nil, fmt.Errorf("failed to rotate flow token: %w", err)
	}

	slog.Info("Flow token rotated", "identifier", rotated.Identifier, "token_id", rotated.ID, "expires_at", rotated.ExpiresAt)
	return rotated, nil
}

// InvalidateByKey soft deletes the token holding key, typically once
// the plan it carried has completed. Missing tokens are not an error.
func (s *Service) InvalidateByKey(ctx context.Context, key string) error {
	token, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up flow token: %w", err)
	}

	err = s.repo.SoftDeleteToken(ctx, token.ID)
	if err != nil {
		slog.Error("Failed to invalidate flow token", "token_id", token.ID, "error", err)
		return fmt.Errorf("failed to invalidate flow token: %w", err)
	}

	slog.Info("Flow token invalidated", "identifier", token.Identifier, "token_id", token.ID)
	return nil
}

// CleanupExpiredTokens soft deletes all tokens past their expiry
func (s *Service) CleanupExpiredTokens(ctx context.Context) error {
	err := s.repo.CleanupExpiredTokens(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to cleanup expired flow tokens", "error", err)
		return fmt.Errorf("failed to cleanup expired flow tokens: %w", err)
	}

	slog.Info("Expired flow tokens cleaned up")
	return nil
}
