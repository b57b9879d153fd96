package middleware

import (
	"net/http"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// RequestID accepts a well formed X-Request-ID or assigns a new one, stores it
// in the context and echoes it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := audit.AcceptRequestID(r.Header.Get(audit.RequestIDHeader))
		w.Header().Set(audit.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), id)))
	})
}

// eventContext collects what is known about the request so far.
func eventContext(r *http.Request) audit.EventContext {
	ctx := r.Context()
	ec := audit.EventContext{
		RequestID: audit.RequestIDFromContext(ctx),
		Path:      r.URL.Path,
	}
	if caller, ok := auth.CallerFromContext(ctx); ok {
		ec.IdentityID = caller.Identity.ID
	} else if identity, ok := auth.IdentityFromContext(ctx); ok {
		ec.IdentityID = identity.ID
	}
	if res, ok := tenant.FromContext(ctx); ok {
		ec.TenantID = res.TenantID
	}
	return ec
}
