package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidCredential   = NewDomainError("INVALID_API_KEY", "Invalid API key")
	ErrCredentialInactive  = NewDomainError("API_KEY_INACTIVE", "API key is revoked or expired")
	ErrServiceNotAllowed   = NewDomainError("SERVICE_NOT_ALLOWED", "Service not allowed for this API key")
	ErrQuotaExceeded       = NewDomainError("QUOTA_EXCEEDED", "Monthly quota exceeded")
	ErrRateLimited         = NewDomainError("RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
	ErrNoSubscription      = NewDomainError("NO_SUBSCRIPTION", "No active subscription for this account")
	ErrStoreUnavailable    = NewDomainError("STORE_UNAVAILABLE", "Backing store is unavailable")
	ErrIntegrityViolation  = NewDomainError("INTEGRITY_VIOLATION", "Credential digest collision detected")
	ErrUserSuspended       = NewDomainError("USER_SUSPENDED", "User is suspended")
	ErrInvalidLoginDetails = NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
)
