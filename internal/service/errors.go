package service

import "errors"

// Error taxonomy for session operations. Handlers map these onto response codes;
// callers wrap them with fmt.Errorf("%w: ...") to add detail.
var (
	ErrNotFound         = errors.New("session not found")
	ErrForbidden        = errors.New("session belongs to another user")
	ErrValidation       = errors.New("invalid input")
	ErrInvalidState     = errors.New("operation not allowed in the current session state")
	ErrInvalidOperation = errors.New("operation not allowed in this exam mode")
	ErrExhausted        = errors.New("no hints remaining")
)
