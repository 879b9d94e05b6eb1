package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a referenced record does not exist.
	ErrNotFound = errors.New("store: record not found")
	// ErrInvalidInput indicates malformed or missing input; nothing was written.
	ErrInvalidInput = errors.New("store: invalid input")
)

// ServiceError tags a failure with a stable "<package>.<operation>.<reason>" code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds a ServiceError for the operation and reason.
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
