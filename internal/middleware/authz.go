package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// AuthzDependencies provides the collaborators needed for authorization decisions.
type AuthzDependencies struct {
	Evaluator *auth.Evaluator
	Events    *audit.Logger
}

// Authorizer builds per-route permission guards.
type Authorizer struct {
	evaluator *auth.Evaluator
	events    *audit.Logger
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(deps AuthzDependencies) (*Authorizer, error) {
	if deps.Evaluator == nil {
		return nil, errors.New("authz middleware requires an evaluator")
	}
	if deps.Events == nil {
		return nil, errors.New("authz middleware requires an event logger")
	}
	return &Authorizer{evaluator: deps.Evaluator, events: deps.Events}, nil
}

// Require guards a route: the caller's role must allow action on section and
// the resolved tenant must satisfy the scope policy for op. Every denial ends
// the request. It must run after the profile middleware.
func (a *Authorizer) Require(section auth.Section, action auth.Action, op tenant.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ec := eventContext(r)
			ec.Metrics = map[string]any{
				"section": string(section),
				"action":  string(action),
			}

			caller, ok := auth.CallerFromContext(ctx)
			if !ok {
				a.events.RecordCheck(ctx, string(section), audit.CheckError)
				WriteAccessError(w, r, auth.ErrorNotAuthenticated, errors.New("no caller on request"))
				return
			}
			ec.Metrics["role"] = caller.Role.String()

			if !a.evaluator.Authorize(caller.Role, section, action) {
				a.deny(w, r, ec, section, audit.CheckFailure,
					auth.NewAccessError(auth.ErrorPermissionDenied, fmt.Errorf("%s may not %s %s", caller.Role, action, section)))
				return
			}

			res, _ := tenant.FromContext(ctx)
			if err := tenant.RequireScope(res, caller.Role, op); err != nil {
				outcome := audit.CheckFailure
				if auth.ErrorTypeOf(err) == auth.ErrorUnknown {
					outcome = audit.CheckError
				}
				a.deny(w, r, ec, section, outcome, err)
				return
			}

			a.events.RecordCheck(ctx, string(section), audit.CheckSuccess)
			a.events.LogEvent(ctx, audit.EventAccessGranted, audit.LevelDebug, ec)
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Authorizer) deny(w http.ResponseWriter, r *http.Request, ec audit.EventContext, section auth.Section, outcome audit.CheckOutcome, err error) {
	ctx := r.Context()
	t := auth.ErrorTypeOf(err)
	ec.Err = err
	ec.StatusCode = StatusFor(t)
	ec.Metrics["error_type"] = string(t)

	level := audit.LevelWarn
	if outcome == audit.CheckError {
		level = audit.LevelError
	}
	a.events.RecordCheck(ctx, string(section), outcome)
	a.events.LogEvent(ctx, audit.EventAccessDenied, level, ec)
	WriteError(w, r, err)
}
