// Package tenant resolves the effective tenant for a request and decides
// whether a request may run without one.
package tenant

import (
	"context"
	"errors"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

// Lookup is the read-only tenant store used by the resolver.
type Lookup interface {
	// GetByID returns repository.ErrNotFound when the tenant does not exist.
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
}

// Reason explains how a Resolution was reached.
type Reason string

const (
	// ReasonAssigned: non-elevated caller, tenant taken from the profile.
	ReasonAssigned Reason = "assigned"
	// ReasonUnassigned: non-elevated caller whose profile has no tenant.
	ReasonUnassigned Reason = "unassigned"
	// ReasonSelected: elevated caller selected an existing, active tenant.
	ReasonSelected Reason = "selected"
	// ReasonNotSelected: elevated caller supplied no tenant.
	ReasonNotSelected Reason = "not_selected"
	// ReasonNotFound: elevated caller selected a tenant that does not exist.
	ReasonNotFound Reason = "not_found"
	// ReasonInactive: elevated caller selected an inactive tenant.
	ReasonInactive Reason = "inactive"
	// ReasonLookupFailed: the tenant store could not be queried.
	ReasonLookupFailed Reason = "lookup_failed"
)

// Resolution is the effective tenant context of a request.
// An empty TenantID means no tenant.
type Resolution struct {
	TenantID string
	Reason   Reason
	// Requested is the caller-supplied tenant id, if any.
	Requested string
	Err       error
}

// HasTenant reports whether a tenant was resolved.
func (r Resolution) HasTenant() bool {
	return r.TenantID != ""
}

// Profile is the subset of a profile the resolver needs.
type Profile struct {
	Role     auth.Role
	TenantID string
}

// Resolver computes effective tenants. It holds no mutable state.
type Resolver struct {
	tenants Lookup
}

// NewResolver creates a resolver backed by tenants.
func NewResolver(tenants Lookup) *Resolver {
	return &Resolver{tenants: tenants}
}

// ResolveEffectiveTenant returns the tenant the request must be scoped to.
//
// Non-elevated roles always get their assigned tenant and the requested id is
// ignored. Elevated roles get the requested tenant only if it exists and is
// active; otherwise no tenant, never a fallback. At most one lookup is made.
func (r *Resolver) ResolveEffectiveTenant(ctx context.Context, profile Profile, requestedTenantID string) Resolution {
	if !profile.Role.IsElevated() {
		if profile.TenantID == "" {
			return Resolution{Reason: ReasonUnassigned, Requested: requestedTenantID}
		}
		return Resolution{TenantID: profile.TenantID, Reason: ReasonAssigned, Requested: requestedTenantID}
	}

	if requestedTenantID == "" {
		return Resolution{Reason: ReasonNotSelected}
	}

	t, err := r.tenants.GetByID(ctx, requestedTenantID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return Resolution{Reason: ReasonNotFound, Requested: requestedTenantID}
	case err != nil:
		return Resolution{Reason: ReasonLookupFailed, Requested: requestedTenantID, Err: err}
	case t == nil:
		return Resolution{Reason: ReasonNotFound, Requested: requestedTenantID}
	case !t.Active:
		return Resolution{Reason: ReasonInactive, Requested: requestedTenantID}
	}
	return Resolution{TenantID: t.ID, Reason: ReasonSelected, Requested: requestedTenantID}
}

type resolutionContextKey struct{}

// WithResolution stores the resolution on the context.
func WithResolution(ctx context.Context, res Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey{}, res)
}

// FromContext returns the resolution stored on the context.
func FromContext(ctx context.Context) (Resolution, bool) {
	res, ok := ctx.Value(resolutionContextKey{}).(Resolution)
	return res, ok
}
