package tokengen

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ACCESS_TOKEN_NAME  = "access_token"
	REFRESH_TOKEN_NAME = "refresh_token"
)

// TokenValue pairs a signed token string with its expiry
type TokenValue struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Service signs session tokens for subjects that completed a flow
type Service struct {
	secret        string
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// Option configures the token service
type Option func(*Service)

// WithIssuer sets the iss claim
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithAccessExpiry sets the access token lifetime
func WithAccessExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.accessExpiry = expiry
	}
}

// WithRefreshExpiry sets the refresh token lifetime
func WithRefreshExpiry(expiry time.Duration) Option {
	return func(s *Service) {
		s.refreshExpiry = expiry
	}
}

// NewService creates a new token service
func NewService(secret string, opts ...Option) *Service {
	service := &Service{
		secret:        secret,
		issuer:        "simple-flow",
		accessExpiry:  15 * time.Minute,
		refreshExpiry: 24 * time.Hour,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// GenerateTokens creates the access and refresh token pair for a user
func (s *Service) GenerateTokens(userID string, extraClaims map[string]interface{}) (map[string]TokenValue, error) {
	accessToken, accessExpiry, err := s.createToken(userID, s.accessExpiry, extraClaims)
	if err != nil {
		slog.Error("Failed to create access token", "err", err)
		return nil, err
	}

	refreshToken, refreshExpiry, err := s.createToken(userID, s.refreshExpiry, nil)
	if err != nil {
		slog.Error("Failed to create refresh token", "err", err)
		return nil, err
	}

	return map[string]TokenValue{
		ACCESS_TOKEN_NAME:  {Token: accessToken, Expiry: accessExpiry},
		REFRESH_TOKEN_NAME: {Token: refreshToken, Expiry: refreshExpiry},
	}, nil
}

// ParseToken validates a signed token and returns its claims
func (s *Service) ParseToken(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

func (s *Service) createToken(userID string, expiry time.Duration, extraClaims map[string]interface{}) (string, time.Time, error) {
	expiresAt := time.Now().UTC().Add(expiry)

	claims := jwt.MapClaims{
		"sub": userID,
		"iss": s.issuer,
		"jti": uuid.New().String(),
		"iat": jwt.NewNumericDate(time.Now().UTC()),
		"exp": jwt.NewNumericDate(expiresAt),
	}
	for key, value := range extraClaims {
		claims[key] = value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}
