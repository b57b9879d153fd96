package auth

import (
	"errors"
	"fmt"
)

// Identity provider errors. Provider implementations wrap one of these so the
// session layer can tell an expired credential from a bad one.
var (
	ErrNoCredential        = errors.New("no credential presented")
	ErrCredentialExpired   = errors.New("credential expired")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrRefreshUnsupported  = errors.New("identity provider does not support refresh")
)

// ErrorType is the boundary error taxonomy returned to callers.
type ErrorType string

const (
	ErrorNotAuthenticated ErrorType = "not_authenticated"
	ErrorSessionExpired   ErrorType = "session_expired"
	ErrorInvalidToken     ErrorType = "invalid_token"
	ErrorTenantRequired   ErrorType = "tenant_required"
	ErrorTenantInactive   ErrorType = "tenant_inactive"
	ErrorPermissionDenied ErrorType = "permission_denied"
	ErrorRateLimited      ErrorType = "rate_limited"
	ErrorMaintenanceMode  ErrorType = "maintenance_mode"
	ErrorUnknown          ErrorType = "unknown_error"
)

// friendlyMessages are safe to show to end users.
var friendlyMessages = map[ErrorType]string{
	ErrorNotAuthenticated: "You need to sign in to continue.",
	ErrorSessionExpired:   "Your session has expired. Please sign in again.",
	ErrorInvalidToken:     "Your credentials are not valid. Please sign in again.",
	ErrorTenantRequired:   "A company must be selected or assigned before continuing.",
	ErrorTenantInactive:   "The selected company is not active.",
	ErrorPermissionDenied: "You do not have permission to perform this action.",
	ErrorRateLimited:      "Too many requests. Please slow down and try again.",
	ErrorMaintenanceMode:  "The service is under maintenance. Please try again later.",
	ErrorUnknown:          "Something went wrong. Please try again.",
}

// FriendlyMessage returns the user-facing text for t.
func (t ErrorType) FriendlyMessage() string {
	if msg, ok := friendlyMessages[t]; ok {
		return msg
	}
	return friendlyMessages[ErrorUnknown]
}

// AccessError is a classified denial. Err holds the internal cause and is
// never rendered to the caller.
type AccessError struct {
	Type ErrorType
	Err  error
}

// NewAccessError classifies cause under t.
func NewAccessError(t ErrorType, cause error) *AccessError {
	return &AccessError{Type: t, Err: cause}
}

func (e *AccessError) Error() string {
	if e.Err == nil {
		return string(e.Type)
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf extracts the boundary type from err, defaulting to unknown_error.
func ErrorTypeOf(err error) ErrorType {
	var ae *AccessError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ErrorUnknown
}
