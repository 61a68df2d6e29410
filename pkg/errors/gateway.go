package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCode represents a classified remote-call error.
type ErrorCode string

const (
	ErrService          ErrorCode = "service_error"
	ErrTransport        ErrorCode = "transport_error"
	ErrDecode           ErrorCode = "decode_error"
	ErrTimeout          ErrorCode = "timeout"
	ErrContextCancelled ErrorCode = "context_cancelled"
)

// Generic user-facing messages for failures that carry no service body.
const (
	MsgTransport = "Could not reach the server. Please check your connection and try again."
	MsgDecode    = "The server returned an unexpected response."
	MsgTimeout   = "The request timed out. Please try again."
	MsgCancelled = "The request was cancelled."
)

// GatewayError is a structured error for a failed remote operation.
type GatewayError struct {
	Op      string
	Code    ErrorCode
	Status  int
	Message string
	Details string
	Cause   error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %s", e.Op, e.Code, e.Status, e.UserMessage())
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.UserMessage())
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// UserMessage returns the text shown to the user. Service errors are surfaced
// verbatim; transport-level failures get a generic message.
func (e *GatewayError) UserMessage() string {
	switch e.Code {
	case ErrService:
		msg := e.Message
		if msg == "" {
			msg = fmt.Sprintf("Request failed with status %d", e.Status)
		}
		if e.Details != "" {
			msg += ": " + e.Details
		}
		return msg
	case ErrDecode:
		return MsgDecode
	case ErrTimeout:
		return MsgTimeout
	case ErrContextCancelled:
		return MsgCancelled
	default:
		return MsgTransport
	}
}

// NewServiceError builds a GatewayError from a non-2xx response body.
func NewServiceError(op string, status int, message, details string) *GatewayError {
	return &GatewayError{
		Op:      op,
		Code:    ErrService,
		Status:  status,
		Message: message,
		Details: details,
	}
}

// NewDecodeError builds a GatewayError for an undecodable response.
func NewDecodeError(op string, status int, cause error) *GatewayError {
	return &GatewayError{Op: op, Code: ErrDecode, Status: status, Cause: cause}
}

// ClassifyTransport inspects a failed round-trip and returns a *GatewayError
// with the appropriate code.
func ClassifyTransport(op string, err error) *GatewayError {
	if err == nil {
		return nil
	}

	ge := &GatewayError{Op: op, Cause: err}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		ge.Code = ErrTimeout
	case errors.Is(err, context.Canceled):
		ge.Code = ErrContextCancelled
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			ge.Code = ErrTimeout
		} else {
			ge.Code = ErrTransport
		}
	}
	return ge
}

// UserMessage returns the user-facing text for any error. GatewayErrors use
// their own message; anything else falls back to err.Error().
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.UserMessage()
	}
	return err.Error()
}

// IsCancelled returns true if the error is a cancelled gateway call or context.
func IsCancelled(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code == ErrContextCancelled
	}
	return errors.Is(err, context.Canceled)
}

// CodeOf returns the error code of a GatewayError, or "" for other errors.
func CodeOf(err error) ErrorCode {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}
