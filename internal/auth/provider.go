package auth

import "context"

// IdentityProvider validates and refreshes bearer credentials.
//
// Implementations are reached over the network and may fail transiently.
// Errors must wrap ErrCredentialExpired, ErrInvalidCredential or
// ErrProviderUnavailable so callers can classify them.
type IdentityProvider interface {
	// ValidateCredential returns the identity behind token.
	ValidateCredential(ctx context.Context, token string) (*Identity, error)

	// RefreshCredential exchanges a stale token for a fresh one.
	RefreshCredential(ctx context.Context, token string) (string, error)
}
