package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"
)

// OIDCProviderConfig points at an external OIDC issuer.
type OIDCProviderConfig struct {
	Issuer   string
	Audience string
}

// OIDCProvider validates tokens issued by an external IdP against its JWKS.
// Refresh is the IdP's responsibility; RefreshCredential always fails with
// ErrRefreshUnsupported so expired tokens surface as session_expired.
type OIDCProvider struct {
	handler *oidctoken.TokenHandler[map[string]any]
}

// NewOIDCProvider creates the provider. JWKS are loaded lazily on first use.
func NewOIDCProvider(cfg OIDCProviderConfig) (*OIDCProvider, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("oidc issuer is required")
	}

	opts := []options.Option{
		options.WithIssuer(cfg.Issuer),
		options.WithLazyLoadJwks(true),
	}
	if cfg.Audience != "" {
		opts = append(opts, options.WithRequiredAudience(cfg.Audience))
	}

	handler, err := oidctoken.New[map[string]any](nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}
	return &OIDCProvider{handler: handler}, nil
}

// ValidateCredential parses and verifies token.
func (p *OIDCProvider) ValidateCredential(ctx context.Context, token string) (*Identity, error) {
	claims, err := p.handler.ParseToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, classifyOIDCError(err)
	}
	return IdentityFromClaims(claims)
}

// RefreshCredential is not supported for external issuers.
func (p *OIDCProvider) RefreshCredential(ctx context.Context, token string) (string, error) {
	return "", ErrRefreshUnsupported
}

func classifyOIDCError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	msg := err.Error()
	if strings.Contains(msg, `"exp" not satisfied`) || strings.Contains(msg, "token is expired") {
		return fmt.Errorf("%w: %v", ErrCredentialExpired, err)
	}
	if strings.Contains(msg, "jwks") || strings.Contains(msg, "fetch") {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
}
