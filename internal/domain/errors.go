package domain

import (
	"errors"
	"fmt"
)

// Error classes. Concrete errors wrap one of these so callers can branch
// with errors.Is without knowing every case.
var (
	// ErrInput is a synchronous rejection of malformed caller input.
	ErrInput = errors.New("invalid input")
	// ErrBackendUnavailable marks a collaborator that is not configured or failing.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrPersistence marks a failed write to the document store.
	ErrPersistence = errors.New("persistence failure")
)

var (
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must not be negative", ErrInput)
	ErrInvalidPrice    = fmt.Errorf("%w: unit price must be positive", ErrInput)
	ErrInvalidName     = fmt.Errorf("%w: name is required", ErrInput)
	ErrUnknownProduct  = fmt.Errorf("%w: unknown product", ErrInput)

	ErrSessionClosed   = errors.New("session is closed")
	ErrSessionNotFound = errors.New("session not found")
	ErrNotFound        = errors.New("not found")
)
