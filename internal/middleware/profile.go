package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// Where a caller may pass the tenant it wants to act in.
const (
	TenantHeader     = "X-Tenant-ID"
	TenantQueryParam = "tenantId"
)

// ProfileDependencies bundles collaborators of the profile middleware.
type ProfileDependencies struct {
	Profiles ProfileFetcher
	Tenants  TenantResolver
	Events   *audit.Logger
}

// RequestedTenant returns the caller-supplied tenant id; the header wins over the query.
func RequestedTenant(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(TenantHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get(TenantQueryParam))
}

// NewProfileMiddleware loads the profile of the authenticated identity,
// resolves the effective tenant and stores both on the request context.
// It must run after the authn middleware.
func NewProfileMiddleware(deps ProfileDependencies) (func(http.Handler) http.Handler, error) {
	if deps.Profiles == nil || deps.Tenants == nil {
		return nil, errors.New("profile middleware requires profiles and tenant resolver")
	}
	if deps.Events == nil {
		return nil, errors.New("profile middleware requires an event logger")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ec := eventContext(r)

			identity, ok := auth.IdentityFromContext(ctx)
			if !ok {
				WriteAccessError(w, r, auth.ErrorNotAuthenticated, errors.New("no identity on request"))
				return
			}

			result := deps.Profiles.Fetch(ctx, identity)
			if !result.OK() {
				var cause error = errors.New("profile unavailable")
				if result.Err != nil {
					cause = result.Err
				}
				ec.Err = cause
				ec.StatusCode = http.StatusInternalServerError
				deps.Events.LogEvent(ctx, audit.EventProfileUnavailable, audit.LevelError, ec)
				WriteAccessError(w, r, auth.ErrorUnknown, cause)
				return
			}
			profile := result.Profile
			if result.Created {
				deps.Events.LogEvent(ctx, audit.EventProfileCreated, audit.LevelInfo, ec)
			}
			if !profile.Active {
				ec.Message = "profile is deactivated"
				ec.StatusCode = http.StatusForbidden
				deps.Events.LogEvent(ctx, audit.EventAccessDenied, audit.LevelWarn, ec)
				WriteAccessError(w, r, auth.ErrorPermissionDenied, errors.New("profile is deactivated"))
				return
			}

			res := deps.Tenants.ResolveEffectiveTenant(ctx, tenant.Profile{
				Role:     profile.Role,
				TenantID: profile.AssignedTenant(),
			}, RequestedTenant(r))

			ec.TenantID = res.TenantID
			ec.Metrics = map[string]any{"reason": string(res.Reason)}
			switch res.Reason {
			case tenant.ReasonNotFound, tenant.ReasonInactive, tenant.ReasonLookupFailed:
				ec.Err = res.Err
				deps.Events.LogEvent(ctx, audit.EventTenantRejected, audit.LevelWarn, ec)
			default:
				deps.Events.LogEvent(ctx, audit.EventTenantResolved, audit.LevelDebug, ec)
			}

			caller := auth.Caller{
				Identity:  identity,
				ProfileID: profile.ID,
				Role:      profile.Role,
				TenantID:  profile.AssignedTenant(),
				Active:    profile.Active,
				Refreshed: refreshedFromContext(ctx),
			}
			ctx = auth.SetCallerContext(ctx, caller)
			ctx = tenant.WithResolution(ctx, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
