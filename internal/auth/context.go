package auth

import "context"

// Caller is the authenticated identity joined with its profile.
// It is built once per request and never modified afterwards.
type Caller struct {
	Identity Identity
	// ProfileID references profiles.id.
	ProfileID string
	Role      Role
	// TenantID is the assigned tenant; empty means unassigned.
	TenantID string
	Active   bool
	// Refreshed is true when the credential was recovered through a refresh.
	Refreshed bool
}

type callerContextKey struct{}

// SetCallerContext stores the caller on the context for downstream consumers.
func SetCallerContext(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext retrieves the caller from the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(Caller)
	return caller, ok
}

type identityContextKey struct{}

// SetIdentityContext stores the validated identity before the profile is loaded.
func SetIdentityContext(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the validated identity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
