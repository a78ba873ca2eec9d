package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an expected, recoverable rejection.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindCredential    Kind = "credential"
	KindNotFound      Kind = "not_found"
	KindRateLimited   Kind = "rate_limited"
)

// Error is a typed rejection returned by the core. Anything that is not an
// *Error is a storage or programming failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches another *Error with the same kind and code, so rejections built
// with a custom message still match their sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// New creates a typed rejection.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation builds a validation rejection with a formatted message.
func Validation(format string, args ...any) *Error {
	return New(KindValidation, "VALIDATION_ERROR", fmt.Sprintf(format, args...))
}

var (
	// ErrValidation matches every validation rejection.
	ErrValidation = New(KindValidation, "VALIDATION_ERROR", "invalid input")

	// ErrPhoneTaken is returned when registering an existing phone number.
	ErrPhoneTaken = New(KindConflict, "PHONE_ALREADY_REGISTERED", "phone already registered, please login")
	// ErrListingUnavailable is returned when requesting a listing that is not available.
	ErrListingUnavailable = New(KindConflict, "LISTING_UNAVAILABLE", "listing not available")
	// ErrJobAlreadyAssigned is returned when a courier already accepted the job.
	ErrJobAlreadyAssigned = New(KindConflict, "JOB_ALREADY_ASSIGNED", "job already assigned")
	// ErrInvalidTransition is returned when the job is not in a state that allows the action.
	ErrInvalidTransition = New(KindConflict, "INVALID_TRANSITION", "job is not in a state that allows this action")

	// ErrForbidden is returned when the actor's role does not match the operation.
	ErrForbidden = New(KindAuthorization, "FORBIDDEN", "operation not permitted for this role")
	// ErrNotAssignedCourier is returned when a courier acts on a job assigned to someone else.
	ErrNotAssignedCourier = New(KindAuthorization, "NOT_ASSIGNED_COURIER", "job is assigned to another courier")

	// ErrInvalidOTP is returned when a code does not match any live record.
	ErrInvalidOTP = New(KindCredential, "INVALID_OTP", "invalid or expired OTP")
	// ErrInvalidPendingToken is returned when the verification context is missing or expired.
	ErrInvalidPendingToken = New(KindCredential, "INVALID_PENDING_TOKEN", "no pending verification, start from login or register")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = New(KindCredential, "INVALID_REFRESH_TOKEN", "invalid or expired refresh token")

	// ErrUserNotFound is returned when no account exists for a phone or id.
	ErrUserNotFound = New(KindNotFound, "USER_NOT_FOUND", "no account for this phone, please register")
	// ErrListingNotFound is returned for an unknown listing id.
	ErrListingNotFound = New(KindNotFound, "LISTING_NOT_FOUND", "listing not found")
	// ErrJobNotFound is returned for an unknown job id.
	ErrJobNotFound = New(KindNotFound, "JOB_NOT_FOUND", "job not found")

	// ErrTooManyAttempts is returned when verification attempts are exhausted for the window.
	ErrTooManyAttempts = New(KindRateLimited, "TOO_MANY_ATTEMPTS", "too many verification attempts, try again later")
)

// Forbidden builds an authorization rejection naming the required role.
func Forbidden(required string) *Error {
	return New(KindAuthorization, ErrForbidden.Code, fmt.Sprintf("only %s users may perform this action", required))
}

// KindOf returns the rejection kind of err, or "" for non-rejections.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

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

var kindStatus = map[Kind]int{
	KindValidation:    http.StatusBadRequest,
	KindConflict:      http.StatusBadRequest,
	KindAuthorization: http.StatusForbidden,
	KindCredential:    http.StatusUnauthorized,
	KindNotFound:      http.StatusNotFound,
	KindRateLimited:   http.StatusTooManyRequests,
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var e *Error
	if errors.As(err, &e) {
		if status, ok := kindStatus[e.Kind]; ok {
			return NewHTTPError(status, e.Message, e.Code)
		}
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}
