package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service provides user operations the flow engine consumes: reading
// the pending subject, flipping the active flag and checking credentials.
type Service struct {
	repo Repository
}

// NewService creates a new user service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateUser creates a new, inactive user with a hashed password
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	u := User{
		Username:   req.Username,
		Email:      req.Email,
		Name:       req.Name,
		Locale:     req.Locale,
		TOTPSecret: req.TOTPSecret,
	}

	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	created, err := s.repo.Create(ctx, u)
	if err != nil {
		slog.Error("Failed to create user", "username", req.Username, "error", err)
		return nil, err
	}

	slog.Info("User created", "user_id", created.ID, "username", created.Username)
	return created, nil
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetUserByUsername retrieves a user by username
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, username)
}

// ActivateUser marks a user account as active
func (s *Service) ActivateUser(ctx context.Context, id uuid.UUID) error {
	err := s.repo.SetActive(ctx, id, true)
	if err != nil {
		slog.Error("Failed to activate user", "user_id", id, "error", err)
		return err
	}

	slog.Info("User activated", "user_id", id)
	return nil
}

// VerifyPassword checks a plaintext password against the user's stored hash
func (s *Service) VerifyPassword(ctx context.Context, id uuid.UUID, password string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}

	return nil
}
