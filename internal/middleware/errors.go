package middleware

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

// ErrorResponse is the JSON body of every failed API request.
type ErrorResponse struct {
	ErrorType       string `json:"errorType"`
	FriendlyMessage string `json:"friendlyMessage"`
	Path            string `json:"path"`
	RequestID       string `json:"requestId"`
}

// Repository-level types surfaced on the API.
const (
	errorNotFound   = "not_found"
	errorValidation = "validation_error"
)

var statusByType = map[auth.ErrorType]int{
	auth.ErrorNotAuthenticated: http.StatusUnauthorized,
	auth.ErrorSessionExpired:   http.StatusUnauthorized,
	auth.ErrorInvalidToken:     http.StatusUnauthorized,
	auth.ErrorTenantRequired:   http.StatusForbidden,
	auth.ErrorTenantInactive:   http.StatusForbidden,
	auth.ErrorPermissionDenied: http.StatusForbidden,
	auth.ErrorRateLimited:      http.StatusTooManyRequests,
	auth.ErrorMaintenanceMode:  http.StatusServiceUnavailable,
	auth.ErrorUnknown:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for a boundary error type.
func StatusFor(t auth.ErrorType) int {
	if status, ok := statusByType[t]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsBrowserRequest reports whether r comes from a page navigation rather than an API client.
func IsBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// RedirectTarget returns the recovery page for t. Permission denials never
// carry a callback.
func RedirectTarget(t auth.ErrorType, r *http.Request, elevated bool) string {
	callback := r.URL.RequestURI()
	withCallback := func(path string, extra ...string) string {
		q := url.Values{}
		q.Set("callbackUrl", callback)
		for i := 0; i+1 < len(extra); i += 2 {
			q.Set(extra[i], extra[i+1])
		}
		return path + "?" + q.Encode()
	}

	switch t {
	case auth.ErrorNotAuthenticated:
		return withCallback("/sign-in")
	case auth.ErrorSessionExpired:
		return withCallback("/sign-in", "reason", string(auth.ErrorSessionExpired))
	case auth.ErrorInvalidToken:
		return withCallback("/sign-in", "reason", string(auth.ErrorInvalidToken))
	case auth.ErrorTenantRequired:
		if elevated {
			return withCallback("/select-company")
		}
		return "/waiting-approval"
	case auth.ErrorTenantInactive:
		return withCallback("/select-company", "reason", string(auth.ErrorTenantInactive))
	case auth.ErrorPermissionDenied:
		return "/unauthorized"
	case auth.ErrorRateLimited:
		return "/error?type=" + string(auth.ErrorRateLimited)
	case auth.ErrorMaintenanceMode:
		return "/maintenance"
	default:
		return "/error"
	}
}

// WriteError renders err for the caller. Boundary errors become the JSON
// payload or, for browser navigations, a redirect. Repository errors are
// mapped so that not_found stays not_found. The cause is never rendered.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	switch repository.KindOf(err) {
	case repository.KindNotFound:
		writeErrorJSON(w, r, http.StatusNotFound, errorNotFound, "The requested resource was not found.")
		return
	case repository.KindValidation:
		writeErrorJSON(w, r, http.StatusBadRequest, errorValidation, "The request is not valid.")
		return
	case repository.KindUnauthorized:
		err = auth.NewAccessError(auth.ErrorPermissionDenied, err)
	}

	t := auth.ErrorTypeOf(err)
	if IsBrowserRequest(r) {
		caller, _ := auth.CallerFromContext(r.Context())
		target := RedirectTarget(t, r, caller.Role.IsElevated())
		// A recovery page that fails the same way is answered in place.
		if path, _, _ := strings.Cut(target, "?"); path != r.URL.Path {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
	}
	writeErrorJSON(w, r, StatusFor(t), string(t), t.FriendlyMessage())
}

// WriteAccessError is WriteError for a fresh boundary error of type t.
func WriteAccessError(w http.ResponseWriter, r *http.Request, t auth.ErrorType, cause error) {
	WriteError(w, r, auth.NewAccessError(t, cause))
}

func writeErrorJSON(w http.ResponseWriter, r *http.Request, status int, errorType, message string) {
	requestID := audit.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		ErrorType:       errorType,
		FriendlyMessage: message,
		Path:            r.URL.Path,
		RequestID:       requestID,
	})
}
