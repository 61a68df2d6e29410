// Package errors provides common error types for the vidtwin client.
//
// This package defines sentinel errors for local conditions like "validation"
// or "invalid state" and a structured GatewayError for remote-call failures.
// Using typed errors enables consistent handling with errors.Is() and
// errors.As() checks.
//
// Usage:
//
//	import vterrors "github.com/otherjamesbrown/vidtwin-cli/pkg/errors"
//
//	// Reject empty input locally
//	return fmt.Errorf("video url: %w", vterrors.ErrValidation)
//
//	// Check for validation errors
//	if vterrors.IsValidation(err) {
//	    // surface as a banner, no network call was made
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for local conditions.
var (
	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnavailable indicates an external capability (player, service) is not available.
	ErrUnavailable = errors.New("unavailable")
)

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

// IsUnavailable reports whether any error in err's chain is ErrUnavailable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
