package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable machine-readable code of a domain error.
type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodePrecondition ErrorCode = "PRECONDITION_FAILED"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeRateLimited  ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// DomainError is the error type surfaced to clients as
// {code, message, userMessage}. Message is for logs, UserMessage is safe to
// render in UI.
type DomainError struct {
	Code        ErrorCode
	Message     string
	UserMessage string

	// AllowedStatuses is populated on invalid-transition precondition errors
	// so callers can render the permitted next steps.
	AllowedStatuses []RequestStatus
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches another DomainError by code, which lets callers test the
// category with errors.Is(err, &DomainError{Code: CodeNotFound}).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || t.Message == e.Message)
}

func NewValidation(msg string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: msg, UserMessage: msg}
}

func NewNotFound(msg string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: msg, UserMessage: msg}
}

func NewPrecondition(msg string) *DomainError {
	return &DomainError{Code: CodePrecondition, Message: msg, UserMessage: msg}
}

func NewUnauthorized(msg string) *DomainError {
	return &DomainError{Code: CodeUnauthorized, Message: msg, UserMessage: msg}
}

// NewInvalidTransition builds a precondition error carrying the allowed
// target set for the current status.
func NewInvalidTransition(current, requested RequestStatus, allowed []RequestStatus) *DomainError {
	names := make([]string, 0, len(allowed))
	for _, s := range allowed {
		names = append(names, s.String())
	}
	targets := "none"
	if len(names) > 0 {
		targets = strings.Join(names, ", ")
	}
	return &DomainError{
		Code:            CodePrecondition,
		Message:         fmt.Sprintf("cannot transition from %s to %s", current, requested),
		UserMessage:     fmt.Sprintf("cannot move a %s request to %s; allowed: %s", current, requested, targets),
		AllowedStatuses: allowed,
	}
}

// ErrCode extracts the ErrorCode from an error chain.
// Non-domain errors map to CodeInternal.
func ErrCode(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// UserMessage extracts the user-facing message from an error chain,
// falling back to a generic one for unexpected errors.
func UserMessage(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.UserMessage
	}
	return "something went wrong, please try again"
}

// Shared domain errors. Kept as distinct values so clients can tell the
// cases apart.
var (
	ErrRequestNotFound = NewNotFound("trip request not found")
	ErrDriverNotFound  = NewNotFound("driver not found")

	ErrNoDriversAvailable  = NewNotFound("no drivers available right now")
	ErrNoEligibleDrivers   = NewNotFound("no drivers matching the request's eligibility filter are available")
	ErrDriverNotAvailable  = NewPrecondition("driver is not available")
	ErrDriverBanned        = NewPrecondition("driver is banned")
	ErrCancelCompleted     = NewPrecondition("cannot cancel a completed request")
	ErrAlreadyCancelled    = NewPrecondition("request is already cancelled")
	ErrOriginMissing       = NewValidation("request has no origin coordinates")
	ErrDriverNotEligible   = NewPrecondition("driver does not satisfy the request's eligibility filter")
	ErrNotAssignedDriver   = NewUnauthorized("caller is not the assigned driver for this request")
	ErrRoomAccessDenied    = NewUnauthorized("not allowed to join this request room")
	ErrRateLimited         = &DomainError{Code: CodeRateLimited, Message: "rate limit exceeded", UserMessage: "too many messages, slow down"}
	ErrInvalidToken        = NewUnauthorized("invalid or expired token")
	ErrSettingsUnavailable = errors.New("pricing settings unavailable")
)
