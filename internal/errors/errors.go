package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrUserNotFound is returned when a user record does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("user already exists")
	// ErrInvalidCredentials is returned for any local login failure.
	// The message is identical for unknown email, missing password hash
	// and hash mismatch, so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned when no valid session is present.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrAuthenticationFailed is returned when the OAuth flow fails.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidOrExpiredToken is returned for reset tokens that do not
	// match any user or are past their expiry.
	ErrInvalidOrExpiredToken = errors.New("token is invalid or has expired")
	// ErrDeliveryFailed is returned when the reset email could not be sent.
	ErrDeliveryFailed = errors.New("error sending reset email")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Anything unrecognized
// becomes a generic 500 so internal detail never reaches the client.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrDuplicateEmail):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "USER_ALREADY_EXISTS")
	case errors.Is(err, ErrInvalidCredentials):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrNotAuthenticated):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "NOT_AUTHENTICATED")
	case errors.Is(err, ErrAuthenticationFailed):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "AUTHENTICATION_FAILED")
	case errors.Is(err, ErrInvalidOrExpiredToken):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_OR_EXPIRED_TOKEN")
	case errors.Is(err, ErrDeliveryFailed):
		return NewHTTPError(http.StatusInternalServerError, err.Error(), "DELIVERY_FAILED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
