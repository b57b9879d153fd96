package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTProviderConfig configures the built-in HS256 identity provider.
type JWTProviderConfig struct {
	Secret []byte
	Issuer string
	// TTL is the lifetime of issued tokens.
	TTL time.Duration
	// RefreshWindow is how long after expiry a token may still be refreshed.
	RefreshWindow time.Duration
}

// JWTProvider validates and refreshes HS256 tokens signed with a shared secret.
// It is used for single-node deployments and tests; production deployments
// usually point at an external issuer through OIDCProvider.
type JWTProvider struct {
	cfg JWTProviderConfig
	now func() time.Time
}

// NewJWTProvider creates the provider. The secret must be at least 32 bytes.
func NewJWTProvider(cfg JWTProviderConfig) (*JWTProvider, error) {
	if len(cfg.Secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.RefreshWindow < 0 {
		cfg.RefreshWindow = 0
	}
	return &JWTProvider{cfg: cfg, now: time.Now}, nil
}

// Issue mints a token for identity.
func (p *JWTProvider) Issue(identity Identity) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{}
	for k, v := range identity.Metadata {
		claims[k] = v
	}
	claims["sub"] = identity.ID
	if identity.Handle != "" {
		claims["email"] = identity.Handle
	}
	claims["iss"] = p.cfg.Issuer
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(p.cfg.TTL).Unix()
	claims["jti"] = uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateCredential verifies signature, issuer and expiry.
func (p *JWTProvider) ValidateCredential(ctx context.Context, token string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parsed, err := jwt.Parse(token, p.keyFunc, p.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrCredentialExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrInvalidCredential)
	}
	return IdentityFromClaims(claims)
}

// RefreshCredential reissues a token whose signature is valid and whose expiry
// lies within the refresh window.
func (p *JWTProvider) RefreshCredential(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := append(p.parserOptions(), jwt.WithoutClaimsValidation())
	parsed, err := jwt.Parse(token, p.keyFunc, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: unexpected claims type", ErrInvalidCredential)
	}
	if iss, _ := claims.GetIssuer(); iss != p.cfg.Issuer {
		return "", fmt.Errorf("%w: issuer mismatch", ErrInvalidCredential)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return "", fmt.Errorf("%w: missing exp claim", ErrInvalidCredential)
	}
	if p.now().After(exp.Add(p.cfg.RefreshWindow)) {
		return "", fmt.Errorf("%w: refresh window elapsed", ErrInvalidCredential)
	}

	identity, err := IdentityFromClaims(claims)
	if err != nil {
		return "", err
	}
	return p.Issue(*identity)
}

func (p *JWTProvider) keyFunc(t *jwt.Token) (any, error) {
	return p.cfg.Secret, nil
}

func (p *JWTProvider) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.cfg.Issuer))
	}
	return opts
}
