package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ErrAssignmentNotResolved means an insert lost a uniqueness race but the
// winning row could not be read back as live (it was soft-deleted in
// between). The transaction owner decides whether to retry.
var ErrAssignmentNotResolved = errors.New("assignment conflict could not be resolved to a live row")

// ValidationError reports a missing or malformed argument. It is returned
// before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func requireID(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
