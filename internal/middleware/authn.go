package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

// AuthnDependencies bundles collaborators required by the authentication middleware.
type AuthnDependencies struct {
	Sessions SessionChecker
	Events   *audit.Logger
	// CookieSecure marks the refreshed session cookie Secure.
	CookieSecure bool
	CookieMaxAge time.Duration
}

type refreshedContextKey struct{}

func refreshedFromContext(ctx context.Context) bool {
	refreshed, _ := ctx.Value(refreshedContextKey{}).(bool)
	return refreshed
}

// NewAuthnMiddleware validates the bearer credential of every request.
//
// A valid credential passes straight through. An expired one goes through the
// refresh sequence; on success the new credential is written back as the
// session cookie, on failure the request ends with session_expired. Anything
// else is invalid_token, or not_authenticated when no credential was sent.
func NewAuthnMiddleware(deps AuthnDependencies) (func(http.Handler) http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errors.New("authn middleware requires a session checker")
	}
	if deps.Events == nil {
		return nil, errors.New("authn middleware requires an event logger")
	}
	if deps.CookieMaxAge <= 0 {
		deps.CookieMaxAge = 24 * time.Hour
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ec := eventContext(r)

			credential, source, ok := auth.ExtractCredential(r)
			if !ok {
				WriteAccessError(w, r, auth.ErrorNotAuthenticated, auth.ErrNoCredential)
				return
			}
			ec.Metrics = map[string]any{"credential_source": string(source)}

			result := deps.Sessions.Validate(ctx, credential)
			switch {
			case result.Outcome == iam.OutcomeValid:
				ec.IdentityID = result.Identity.ID
				deps.Events.LogEvent(ctx, audit.EventSessionValidated, audit.LevelDebug, ec)
				next.ServeHTTP(w, r.WithContext(withSession(ctx, *result.Identity, false)))

			case result.Expired():
				seq := iam.SequenceKeyFor(credential, ec.RequestID)
				outcome := deps.Sessions.RefreshWithBackoff(ctx, seq, credential)
				ec.Metrics["attempts"] = outcome.Attempts
				if !outcome.Success {
					if ctx.Err() != nil {
						// Client went away; nothing to answer.
						return
					}
					ec.Err = outcome.Err
					ec.StatusCode = http.StatusUnauthorized
					deps.Events.LogEvent(ctx, audit.EventRefreshFailed, audit.LevelError, ec)
					WriteAccessError(w, r, auth.ErrorSessionExpired, outcome.Err)
					return
				}

				http.SetCookie(w, auth.SessionCookie(outcome.Token, deps.CookieSecure, deps.CookieMaxAge))
				ec.IdentityID = outcome.Identity.ID
				deps.Events.LogEvent(ctx, audit.EventSessionRefreshed, audit.LevelInfo, ec)
				next.ServeHTTP(w, r.WithContext(withSession(ctx, *outcome.Identity, true)))

			case errors.Is(result.Err, auth.ErrProviderUnavailable):
				ec.Err = result.Err
				ec.StatusCode = http.StatusInternalServerError
				deps.Events.LogEvent(ctx, audit.EventSessionInvalid, audit.LevelError, ec)
				WriteAccessError(w, r, auth.ErrorUnknown, result.Err)

			default:
				ec.Err = result.Err
				ec.StatusCode = http.StatusUnauthorized
				deps.Events.LogEvent(ctx, audit.EventSessionInvalid, audit.LevelWarn, ec)
				WriteAccessError(w, r, auth.ErrorInvalidToken, result.Err)
			}
		})
	}, nil
}

func withSession(ctx context.Context, identity auth.Identity, refreshed bool) context.Context {
	ctx = auth.SetIdentityContext(ctx, identity)
	return context.WithValue(ctx, refreshedContextKey{}, refreshed)
}
