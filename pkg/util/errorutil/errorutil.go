package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the proxy, the enrollment gate and the HTTP layer.
const (
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeInvalidState        = "INVALID_STATE"
	CodeUpstreamStorage     = "UPSTREAM_STORAGE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError reports a malformed request. The proxy reports these
// as denials, so the status is 403 rather than 400.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusForbidden, details)
}

// NewBadRequest reports a request body that could not be understood at all.
func NewBadRequest(message string) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, nil)
}

// NewAuthorizationDenied reports a role/table/operation combination that is not permitted.
func NewAuthorizationDenied(message string) error {
	return NewDomainError(CodeAuthorizationDenied, message, http.StatusForbidden, nil)
}

// NewInvalidState reports an operation refused because of the target's state.
func NewInvalidState(message string) error {
	return NewDomainError(CodeInvalidState, message, http.StatusForbidden, nil)
}

// NewUpstreamStorage wraps a storage failure; its message is passed through to callers.
func NewUpstreamStorage(err error) error {
	msg := "storage error"
	if err != nil {
		msg = err.Error()
	}
	return &DomainError{Code: CodeUpstreamStorage, Message: msg, HTTPStatus: http.StatusForbidden}
}

func NewRateLimited(message string) error {
	return NewDomainError(CodeRateLimited, message, http.StatusTooManyRequests, nil)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewMethodNotAllowed() error {
	return NewDomainError(CodeMethodNotAllowed, "method not allowed", http.StatusMethodNotAllowed, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
