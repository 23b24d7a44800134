package flowtoken

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FlowToken is a single-use resumption credential bound to a serialized
// flow plan. Identifier is deterministic per (stage, user) so re-issuing
// reuses the existing row; Key is the unguessable secret that appears in
// resumption URLs.
type FlowToken struct {
	ID         uuid.UUID
	Identifier string
	Key        string
	UserID     uuid.UUID
	Plan       []byte
	CreatedAt  time.Time
	ExpiresAt  time.Time
	DeletedAt  *time.Time
}

// IsExpired reports whether the token is past its expiry. Expiry is
// logical; rows are never hard-deleted by this package.
func (t *FlowToken) IsExpired() bool {
	return time.Now().UTC().After(t.ExpiresAt)
}

// Repository defines the persistence operations for flow tokens
type Repository interface {
	// Create inserts a token. If a live token with the same identifier
	// already exists the existing row is returned instead, so two
	// racing requests cannot create divergent tokens for one identifier.
	Create(ctx context.Context, token FlowToken) (*FlowToken, error)
	GetByIdentifier(ctx context.Context, identifier string) (*FlowToken, error)
	GetByKey(ctx context.Context, key string) (*FlowToken, error)
	// UpdateKeyAndExpiry rotates a token in place, preserving identifier
	// and plan snapshot.
	UpdateKeyAndExpiry(ctx context.Context, id uuid.UUID, key string, expiresAt time.Time) (*FlowToken, error)
	SoftDeleteToken(ctx context.Context, id uuid.UUID) error
	CleanupExpiredTokens(ctx context.Context, before time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed flow token repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a token. A partial unique index on identifier (where
// deleted_at is null) plus ON CONFLICT makes get-or-create atomic: the
// loser of a race gets the winner's row back.
func (r *PostgresRepository) Create(ctx context.Context, token FlowToken) (*FlowToken, error) {
	query := `
		INSERT INTO flow_tokens (identifier, key, user_id, plan, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (identifier) WHERE deleted_at IS NULL
		DO UPDATE SET identifier = flow_tokens.identifier
		RETURNING id, identifier, key, user_id, plan, created_at, expires_at, deleted_at
	`

	var ft FlowToken
	err := r.db.QueryRow(ctx, query, token.Identifier, token.Key, token.UserID, token.Plan, token.ExpiresAt).Scan(
		&ft.ID,
		&ft.Identifier,
		&ft.Key,
		&ft.UserID,
		&ft.Plan,
		&ft.CreatedAt,
		&ft.ExpiresAt,
		&ft.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &ft, nil
}

// GetByIdentifier retrieves a live token by its deterministic identifier
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*FlowToken, error) {
	query := `
		SELECT id, identifier, key, user_id, plan, created_at, expires_at, deleted_at
		FROM flow_tokens
		WHERE identifier = $1
		AND deleted_at IS NULL
	`

	return r.queryOne(ctx, query, identifier)
}

// GetByKey retrieves a live token by its opaque key
func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*FlowToken, error) {
	query := `
		SELECT id, identifier, key, user_id, plan, created_at, expires_at, deleted_at
		FROM flow_tokens
		WHERE key = $1
		AND deleted_at IS NULL
	`

	return r.queryOne(ctx, query, key)
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, arg any) (*FlowToken, error) {
	var ft FlowToken
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&ft.ID,
		&ft.Identifier,
		&ft.Key,
		&ft.UserID,
		&ft.Plan,
		&ft.CreatedAt,
		&ft.ExpiresAt,
		&ft.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &ft, nil
}

// UpdateKeyAndExpiry rotates a token's key and expiry in a single
// statement, so two concurrent rotations converge on one live key.
func (r *PostgresRepository) UpdateKeyAndExpiry(ctx context.Context, id uuid.UUID, key string, expiresAt time.Time) (*FlowToken, error) {
	query := `
		UPDATE flow_tokens
		SET key = $2, expires_at = $3
		WHERE id = $1
		AND deleted_at IS NULL
		RETURNING id, identifier, key, user_id, plan, created_at, expires_at, deleted_at
	`

	var ft FlowToken
	err := r.db.QueryRow(ctx, query, id, key, expiresAt).Scan(
		&ft.ID,
		&ft.Identifier,
		&ft.Key,
		&ft.UserID,
		&ft.Plan,
		&ft.CreatedAt,
		&ft.ExpiresAt,
		&ft.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &ft, nil
}

// SoftDeleteToken soft deletes a token
func (r *PostgresRepository) SoftDeleteToken(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE flow_tokens
		SET deleted_at = NOW() AT TIME ZONE 'UTC'
		WHERE id = $1
		AND deleted_at IS NULL
	`

	_, err := r.db.Exec(ctx, query, id)
	return err
}

// CleanupExpiredTokens soft deletes tokens that expired before the cutoff
func (r *PostgresRepository) CleanupExpiredTokens(ctx context.Context, before time.Time) error {
	query := `
		UPDATE flow_tokens
		SET deleted_at = NOW() AT TIME ZONE 'UTC'
		WHERE expires_at < $1
		AND deleted_at IS NULL
	`

	_, err := r.db.Exec(ctx, query, before)
	return err
}
