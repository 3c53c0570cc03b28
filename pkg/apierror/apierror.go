package apierror

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeEmailTaken          = "EMAIL_TAKEN"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeForbidden           = "FORBIDDEN"
	CodeUserNotFound        = "USER_NOT_FOUND"
	CodeTokenNotFound       = "TOKEN_NOT_FOUND"
	CodeNotFound            = "NOT_FOUND"
	CodeCorruptCredential   = "CORRUPT_CREDENTIAL"
	CodePasswordResetFailed = "PASSWORD_RESET_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	cause      error
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As. The cause is
// never rendered to clients.
func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: status}
}

// Wrap builds an APIError that keeps cause reachable for logging.
func Wrap(cause error, code string, message string, status int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: status, cause: cause}
}

func Validation(details string) *APIError {
	return New(CodeValidation, "request validation failed", details, http.StatusBadRequest)
}

// Unauthenticated always carries the same message so callers cannot tell
// which check rejected them.
func Unauthenticated(cause error) *APIError {
	return Wrap(cause, CodeUnauthenticated, "please authenticate", http.StatusUnauthorized)
}

func InvalidCredentials(cause error) *APIError {
	return Wrap(cause, CodeInvalidCredentials, "incorrect email or password", http.StatusUnauthorized)
}

func Forbidden(cause error) *APIError {
	return Wrap(cause, CodeForbidden, "you do not have access to this resource", http.StatusForbidden)
}

func EmailTaken(cause error) *APIError {
	return Wrap(cause, CodeEmailTaken, "email already taken", http.StatusBadRequest)
}

func UserNotFound(cause error) *APIError {
	return Wrap(cause, CodeUserNotFound, "user not found", http.StatusNotFound)
}

func TokenNotFound(cause error) *APIError {
	return Wrap(cause, CodeTokenNotFound, "token not found", http.StatusNotFound)
}

func Internal(cause error) *APIError {
	return Wrap(cause, CodeInternal, "unexpected server error", http.StatusInternalServerError)
}
