package models

import (
	"errors"
)

// Standard latchdb errors
var (
	// ErrAlreadyInitialized is returned when the wait registry is initialized twice
	ErrAlreadyInitialized = errors.New("wait registry already initialized")

	// ErrNotInitialized is returned when the wait registry has not been created yet
	ErrNotInitialized = errors.New("wait registry not initialized")

	// ErrInvalidConfig is returned when configuration validation fails
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBusy is returned when shutdown is requested while cells are still reserved
	ErrBusy = errors.New("wait cells still reserved")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when a request lacks valid credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInternal is returned for internal server errors
	ErrInternal = errors.New("internal error")
)
