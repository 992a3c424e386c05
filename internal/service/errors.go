package service

import (
	"errors"
	"fmt"
)

// ErrUnrecognizedEventType is returned when a parsed event_type falls
// outside the closed enum. It is never coerced to a default.
var ErrUnrecognizedEventType = errors.New("unrecognized event type")

// ValidationError marks input that can never succeed (missing company/role,
// invalid status). It is not retried and surfaces to the caller as-is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError or
// an unrecognized-enum error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrUnrecognizedEventType)
}
