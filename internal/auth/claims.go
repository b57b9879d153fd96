package auth

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Identity is the external identity resolved from a credential. It is owned by
// the identity provider and read-only to this service.
type Identity struct {
	// ID is the provider's stable subject.
	ID string `json:"id"`
	// Handle is the email or username, whichever the provider supplies.
	Handle string `json:"handle"`
	// Metadata carries the remaining provider claims.
	Metadata map[string]any `json:"metadata,omitempty"`
}

type identityClaims struct {
	Subject           string `mapstructure:"sub"`
	Email             string `mapstructure:"email"`
	PreferredUsername string `mapstructure:"preferred_username"`
}

// registeredClaims are not copied into Identity.Metadata.
var registeredClaims = map[string]struct{}{
	"sub": {}, "email": {}, "preferred_username": {},
	"iss": {}, "aud": {}, "exp": {}, "iat": {}, "nbf": {}, "jti": {},
}

// IdentityFromClaims decodes a verified claim set into an Identity.
// A missing subject is an invalid credential.
func IdentityFromClaims(claims map[string]any) (*Identity, error) {
	var decoded identityClaims
	if err := mapstructure.Decode(claims, &decoded); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidCredential, err)
	}
	if decoded.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalidCredential)
	}

	handle := decoded.Email
	if handle == "" {
		handle = decoded.PreferredUsername
	}

	var metadata map[string]any
	for k, v := range claims {
		if _, skip := registeredClaims[k]; skip {
			continue
		}
		if metadata == nil {
			metadata = make(map[string]any)
		}
		metadata[k] = v
	}

	return &Identity{ID: decoded.Subject, Handle: handle, Metadata: metadata}, nil
}
