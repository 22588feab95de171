package auth

import "fmt"

// Reason classifies why authentication failed.
type Reason int

const (
	ReasonMissing Reason = iota + 1
	ReasonMalformed
	ReasonExpired
	ReasonInvalidCredentials
)

func (r Reason) String() string {
	switch r {
	case ReasonMissing:
		return "missing"
	case ReasonMalformed:
		return "malformed"
	case ReasonExpired:
		return "expired"
	case ReasonInvalidCredentials:
		return "invalid credentials"
	default:
		return "unknown"
	}
}

// Error is returned for every authentication failure. Two Errors match
// under errors.Is when their reasons are equal.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrTokenMissing       = &Error{Reason: ReasonMissing}
	ErrTokenMalformed     = &Error{Reason: ReasonMalformed}
	ErrTokenExpired       = &Error{Reason: ReasonExpired}
	ErrInvalidCredentials = &Error{Reason: ReasonInvalidCredentials}
)
