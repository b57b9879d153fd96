package middleware

import (
	"context"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

// SessionChecker validates and refreshes bearer credentials.
// *iam.SessionValidator implements it.
type SessionChecker interface {
	Validate(ctx context.Context, credential string) iam.ValidationResult
	RefreshWithBackoff(ctx context.Context, seq iam.SequenceKey, credential string) iam.RefreshOutcome
}

// ProfileFetcher loads the profile of an authenticated identity.
// *iam.ProfileService implements it.
type ProfileFetcher interface {
	Fetch(ctx context.Context, identity auth.Identity) iam.ProfileResult
}

// TenantResolver computes the effective tenant of a request.
// *tenant.Resolver implements it.
type TenantResolver interface {
	ResolveEffectiveTenant(ctx context.Context, profile tenant.Profile, requestedTenantID string) tenant.Resolution
}
