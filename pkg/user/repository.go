package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the persistence operations for users
type Repository interface {
	Create(ctx context.Context, u User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed user repository
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = "id, username, email, name, active, locale, password_hash, totp_secret, created_at, deleted_at"

// Create inserts a new user
func (r *PostgresRepository) Create(ctx context.Context, u User) (*User, error) {
	query := `
		INSERT INTO users (username, email, name, active, locale, password_hash, totp_secret)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	return r.scanOne(r.db.QueryRow(ctx, query, u.Username, u.Email, u.Name, u.Active, u.Locale, u.PasswordHash, u.TOTPSecret))
}

// GetByID retrieves a user by ID
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1
		AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

// GetByUsername retrieves a user by username
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1
		AND deleted_at IS NULL
	`

	return r.scanOne(r.db.QueryRow(ctx, query, username))
}

// SetActive sets a user's active flag
func (r *PostgresRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE users
		SET active = $2
		WHERE id = $1
		AND deleted_at IS NULL
	`

	_, err := r.db.Exec(ctx, query, id, active)
	return err
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Name,
		&u.Active,
		&u.Locale,
		&u.PasswordHash,
		&u.TOTPSecret,
		&u.CreatedAt,
		&u.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}
