package dto

import "net/http"

// Error codes shared with the domain layer. Admission denials map onto HTTP
// statuses here so the middleware and handlers agree on the wire shape.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeNotFound     = "NOT_FOUND"
)

// errorCodeHTTPStatus maps error codes to HTTP status codes. Codes not listed
// fall back to 500 so a new domain error can never leak as a 200.
var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeNotFound:     http.StatusNotFound,

	// Admission denials
	"INVALID_API_KEY":     http.StatusUnauthorized,
	"API_KEY_INACTIVE":    http.StatusUnauthorized,
	"USER_SUSPENDED":      http.StatusForbidden,
	"SERVICE_NOT_ALLOWED": http.StatusForbidden,
	"NO_SUBSCRIPTION":     http.StatusForbidden,
	"QUOTA_EXCEEDED":      http.StatusTooManyRequests,
	"RATE_LIMIT_EXCEEDED": http.StatusTooManyRequests,
	"STORE_UNAVAILABLE":   http.StatusServiceUnavailable,

	// Dashboard operations
	"INVALID_CREDENTIALS": http.StatusUnauthorized,
	"ALREADY_EXISTS":      http.StatusConflict,
	"PLAN_IN_USE":         http.StatusConflict,
	"INTEGRITY_VIOLATION": http.StatusInternalServerError,

	// Input validation from domain constructors
	"INVALID_INPUT":    http.StatusBadRequest,
	"INVALID_EMAIL":    http.StatusBadRequest,
	"INVALID_PASSWORD": http.StatusBadRequest,
	"INVALID_ROLE":     http.StatusBadRequest,
	"INVALID_NAME":     http.StatusBadRequest,
	"INVALID_OWNER":    http.StatusBadRequest,
	"INVALID_PLAN":     http.StatusBadRequest,
	"INVALID_LIMIT":    http.StatusBadRequest,
	"INVALID_EXPIRY":   http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
