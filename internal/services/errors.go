package services

import (
	"errors"

	"github.com/gamevault/apiserver/internal/store"
)

// ValidationKind distinguishes pagination problems from other bad input.
type ValidationKind int

const (
	InvalidInput ValidationKind = iota + 1
	InvalidPagination
)

// ValidationError reports a request that is well-formed JSON but violates
// a field rule.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalidInput(message string) error {
	return &ValidationError{Kind: InvalidInput, Message: message}
}

func invalidPagination(message string) error {
	return &ValidationError{Kind: InvalidPagination, Message: message}
}

// ConflictError reports a write rejected by a uniqueness rule.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PermissionError reports an authenticated caller lacking a privilege.
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

var (
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = &ConflictError{Message: "username already exists"}

	// ErrAdminRequired is returned when a non-admin calls an admin operation.
	ErrAdminRequired = &PermissionError{Message: "admin privilege required"}

	// ErrNotFound is returned for missing games and users.
	ErrNotFound = store.ErrNotFound

	// ErrStorageDisabled is returned by image uploads without a storage backend.
	ErrStorageDisabled = errors.New("image storage is not configured")
)
