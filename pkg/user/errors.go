package user

import "errors"

var (
	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when creating a user with an existing username
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidPassword is returned when a password does not match the stored hash
	ErrInvalidPassword = errors.New("invalid password")
)
