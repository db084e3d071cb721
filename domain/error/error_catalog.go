package error

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

const (
	// Authentication Errors (1xxx)
	ErrCodeInvalidCredentials ErrorCode = "AUTH_1001"
	ErrCodeUserNotFound       ErrorCode = "AUTH_1002"
	ErrCodeInvalidToken       ErrorCode = "AUTH_1003"
	ErrCodeTokenExpired       ErrorCode = "AUTH_1004"
	ErrCodeMissingToken       ErrorCode = "AUTH_1005"

	// Validation Errors (2xxx)
	ErrCodeInvalidEmail    ErrorCode = "VALID_2001"
	ErrCodeInvalidPassword ErrorCode = "VALID_2002"
	ErrCodeInvalidRequest  ErrorCode = "VALID_2005"
	ErrCodeUserExists      ErrorCode = "VALID_2006"

	// Rate Limiting Errors (3xxx)
	ErrCodeRateLimitExceeded ErrorCode = "RATE_3001"
	ErrCodeIPBlocked         ErrorCode = "RATE_3002"

	// Database Errors (5xxx)
	ErrCodeDatabaseError ErrorCode = "DB_5001"

	// Server Errors (6xxx)
	ErrCodeInternalServerError ErrorCode = "SERVER_6001"

	// Security Errors (7xxx)
	ErrCodeUnauthorizedAccess ErrorCode = "SEC_7003"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidCredentials:  http.StatusUnauthorized,
	ErrCodeUserNotFound:        http.StatusNotFound,
	ErrCodeInvalidToken:        http.StatusUnauthorized,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeMissingToken:        http.StatusUnauthorized,
	ErrCodeInvalidEmail:        http.StatusBadRequest,
	ErrCodeInvalidPassword:     http.StatusBadRequest,
	ErrCodeInvalidRequest:      http.StatusBadRequest,
	ErrCodeUserExists:          http.StatusBadRequest,
	ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	ErrCodeIPBlocked:           http.StatusTooManyRequests,
	ErrCodeDatabaseError:       http.StatusServiceUnavailable,
	ErrCodeInternalServerError: http.StatusInternalServerError,
	ErrCodeUnauthorizedAccess:  http.StatusForbidden,
}

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Authentication errors

func ErrInvalidCredentials(details string) *AppError {
	return NewAppError(ErrCodeInvalidCredentials, "Invalid credentials", details, nil)
}

func ErrUserNotFound(userID string) *AppError {
	return NewAppError(ErrCodeUserNotFound, "User not found", fmt.Sprintf("User ID: %s", userID), nil)
}

func ErrInvalidToken(cause error) *AppError {
	return NewAppError(ErrCodeInvalidToken, "Invalid token", "", cause)
}

func ErrTokenExpired(cause error) *AppError {
	return NewAppError(ErrCodeTokenExpired, "Token has expired", "", cause)
}

func ErrMissingToken(details string) *AppError {
	return NewAppError(ErrCodeMissingToken, "Not authorized to access this route", details, nil)
}

// Validation errors

func ErrInvalidRequest(message string, cause error) *AppError {
	return NewAppError(ErrCodeInvalidRequest, message, "", cause)
}

func ErrInvalidEmail(cause error) *AppError {
	return NewAppError(ErrCodeInvalidEmail, "Invalid email format", "", cause)
}

func ErrInvalidPassword(message string, cause error) *AppError {
	return NewAppError(ErrCodeInvalidPassword, message, "", cause)
}

func ErrUserExists() *AppError {
	return NewAppError(ErrCodeUserExists, "User already exists", "", nil)
}

// Rate limiting errors

func ErrRateLimitExceeded(attempts int, window string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, "Too many requests", fmt.Sprintf("Attempts: %d, Window: %s", attempts, window), nil)
}

func ErrIPBlocked(ip string) *AppError {
	return NewAppError(ErrCodeIPBlocked, "IP address is blocked", fmt.Sprintf("IP: %s", ip), nil)
}

// Server errors

func ErrDatabaseError(operation string, cause error) *AppError {
	return NewAppError(ErrCodeDatabaseError, "Database operation failed", fmt.Sprintf("Operation: %s", operation), cause)
}

func ErrInternalServerError(details string, cause error) *AppError {
	return NewAppError(ErrCodeInternalServerError, "Internal server error", details, cause)
}

func ErrForbidden(details string) *AppError {
	return NewAppError(ErrCodeUnauthorizedAccess, "Not authorized to access this route", details, nil)
}

// GetHTTPStatusCode maps an error to the HTTP status it should be reported with.
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if status, ok := statusByCode[appErr.Code]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Error   *AppError `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

func NewErrorResponse(err *AppError, traceID string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Message: err.Message,
		Error:   err,
		TraceID: traceID,
	}
}
