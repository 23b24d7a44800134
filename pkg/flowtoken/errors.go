package flowtoken

import "errors"

var (
	// ErrTokenNotFound is returned when no flow token matches the lookup
	ErrTokenNotFound = errors.New("flow token not found")

	// ErrTokenExpired is returned by callers that treat expiry as fatal.
	// The service itself never refuses an expired token; see Service.Redeem
	ErrTokenExpired = errors.New("flow token has expired")

	// ErrInvalidKey is returned when the token key format is invalid
	ErrInvalidKey = errors.New("invalid flow token key")
)
