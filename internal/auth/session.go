package auth

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// SessionCookieName is the cookie carrying the bearer credential for browser callers.
const SessionCookieName = "billiards.session"

// CredentialSource records where a credential was found.
type CredentialSource string

const (
	CredentialFromHeader CredentialSource = "header"
	CredentialFromCookie CredentialSource = "cookie"
)

// ExtractCredential returns the bearer credential from the Authorization header,
// falling back to the session cookie. The header wins when both are present.
func ExtractCredential(r *http.Request) (string, CredentialSource, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token, CredentialFromHeader, true
			}
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, CredentialFromCookie, true
	}
	return "", "", false
}

// Fingerprint derives a stable, non-reversible identifier for a credential.
// The same token always yields the same fingerprint.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// SessionCookie builds the cookie that stores a (refreshed) credential.
func SessionCookie(token string, secure bool, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
}
