// Package errors defines the JSON error envelope returned by the API and the
// gin helpers that write it.
package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"

	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeAccessDenied           = "ACCESS_DENIED"
	ErrCodePasswordChangeRequired = "PASSWORD_CHANGE_REQUIRED"
	ErrCodeAccountBlocked         = "ACCOUNT_BLOCKED"

	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"

	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeVersionConflict = "VERSION_CONFLICT"

	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// statusByCode is the HTTP status each code is sent with.
var statusByCode = map[string]int{
	ErrCodeUnauthorized:           http.StatusUnauthorized,
	ErrCodeInvalidCredentials:     http.StatusUnauthorized,
	ErrCodeForbidden:              http.StatusForbidden,
	ErrCodeAccessDenied:           http.StatusForbidden,
	ErrCodePasswordChangeRequired: http.StatusForbidden,
	ErrCodeAccountBlocked:         http.StatusForbidden,
	ErrCodeInvalidInput:           http.StatusBadRequest,
	ErrCodeValidationFailed:       http.StatusUnprocessableEntity,
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeVersionConflict:        http.StatusConflict,
	ErrCodeInternalError:          http.StatusInternalServerError,
	ErrCodeServiceUnavailable:     http.StatusServiceUnavailable,
}

// APIError is the body of every error response.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

func NewAPIErrorWithDetails(code, message string, details interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details}
}

// Status returns the HTTP status for err's code, 500 for unknown codes.
func (e *APIError) Status() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func RespondWithError(c *gin.Context, statusCode int, err *APIError) {
	c.JSON(statusCode, err)
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, statusCode int, err *APIError) {
	c.AbortWithStatusJSON(statusCode, err)
}

func respond(c *gin.Context, code, message, fallback string) {
	if message == "" {
		message = fallback
	}
	err := NewAPIError(code, message)
	RespondWithError(c, err.Status(), err)
}

func abort(c *gin.Context, err *APIError) {
	AbortWithError(c, err.Status(), err)
}

func Unauthorized(c *gin.Context, message string) {
	respond(c, ErrCodeUnauthorized, message, "Authentication required")
}

func InvalidCredentials(c *gin.Context) {
	respond(c, ErrCodeInvalidCredentials, "", "Invalid email or password")
}

func Forbidden(c *gin.Context, message string) {
	respond(c, ErrCodeForbidden, message, "Access denied")
}

// AccessDenied is sent for requests outside the viewer's scope.
func AccessDenied(c *gin.Context, message string) {
	respond(c, ErrCodeAccessDenied, message, "Requested view is outside your scope")
}

// PasswordChangeRequired aborts while the password gate is closed. state is
// the gate state the client has to resolve.
func PasswordChangeRequired(c *gin.Context, state string) {
	abort(c, NewAPIErrorWithDetails(ErrCodePasswordChangeRequired,
		"Password must be changed before continuing", gin.H{"state": state}))
}

func AccountBlocked(c *gin.Context) {
	abort(c, NewAPIError(ErrCodeAccountBlocked, "Account access is blocked"))
}

func NotFound(c *gin.Context, message string) {
	respond(c, ErrCodeNotFound, message, "Resource not found")
}

func BadRequest(c *gin.Context, message string) {
	respond(c, ErrCodeInvalidInput, message, "Invalid request")
}

// ValidationFailed names the offending field in details.
func ValidationFailed(c *gin.Context, field, message string) {
	err := NewAPIErrorWithDetails(ErrCodeValidationFailed, message, gin.H{"field": field})
	RespondWithError(c, err.Status(), err)
}

// VersionConflict is sent when an update carried a stale version.
func VersionConflict(c *gin.Context, message string) {
	respond(c, ErrCodeVersionConflict, message, "Resource was modified by someone else")
}

func InternalError(c *gin.Context, message string) {
	respond(c, ErrCodeInternalError, message, "Internal server error")
}

func ServiceUnavailable(c *gin.Context, message string) {
	respond(c, ErrCodeServiceUnavailable, message, "Service temporarily unavailable")
}
