package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

func TestNewAuthnMiddleware_RequiresDependencies(t *testing.T) {
	events, _ := newEvents()
	_, err := NewAuthnMiddleware(AuthnDependencies{Events: events})
	assert.Error(t, err)
	_, err = NewAuthnMiddleware(AuthnDependencies{Sessions: &mockSessions{}})
	assert.Error(t, err)
}

func TestAuthnMiddleware(t *testing.T) {
	identity := &auth.Identity{ID: "user-1", Handle: "ana@example.com"}
	expired := fmt.Errorf("%w: token is expired", auth.ErrCredentialExpired)

	tests := []struct {
		name          string
		credential    string
		sessions      *mockSessions
		wantStatus    int
		wantErrorType auth.ErrorType
		wantCookie    bool
		wantRefreshed bool
		wantEvent     audit.EventType
	}{
		{
			name:          "no credential",
			sessions:      &mockSessions{},
			wantStatus:    http.StatusUnauthorized,
			wantErrorType: auth.ErrorNotAuthenticated,
		},
		{
			name:       "valid",
			credential: "good",
			sessions:   &mockSessions{validate: iam.ValidationResult{Identity: identity, Outcome: iam.OutcomeValid}},
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "expired then refreshed",
			credential: "stale",
			sessions: &mockSessions{
				validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: expired},
				refresh:  iam.RefreshOutcome{Success: true, Identity: identity, Token: "fresh", Refreshed: true, Attempts: 2},
			},
			wantStatus:    http.StatusNoContent,
			wantCookie:    true,
			wantRefreshed: true,
		},
		{
			name:       "expired and refresh exhausted",
			credential: "stale",
			sessions: &mockSessions{
				validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: expired},
				refresh:  iam.RefreshOutcome{Err: errors.New("provider down"), Attempts: 3},
			},
			wantStatus:    http.StatusUnauthorized,
			wantErrorType: auth.ErrorSessionExpired,
			wantEvent:     audit.EventRefreshFailed,
		},
		{
			name:       "invalid",
			credential: "forged",
			sessions: &mockSessions{
				validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrInvalidCredential},
			},
			wantStatus:    http.StatusUnauthorized,
			wantErrorType: auth.ErrorInvalidToken,
			wantEvent:     audit.EventSessionInvalid,
		},
		{
			name:       "provider unavailable",
			credential: "good",
			sessions: &mockSessions{
				validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrProviderUnavailable},
			},
			wantStatus:    http.StatusInternalServerError,
			wantErrorType: auth.ErrorUnknown,
			wantEvent:     audit.EventSessionInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, sink := newEvents()
			mw, err := NewAuthnMiddleware(AuthnDependencies{Sessions: tt.sessions, Events: events})
			require.NoError(t, err)

			var (
				called    bool
				gotID     string
				refreshed bool
			)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				id, ok := auth.IdentityFromContext(r.Context())
				require.True(t, ok)
				gotID = id.ID
				refreshed = refreshedFromContext(r.Context())
				w.WriteHeader(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.credential != "" {
				req.Header.Set("Authorization", "Bearer "+tt.credential)
			}
			rec := httptest.NewRecorder()
			RequestID(mw(next)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantErrorType != "" {
				assert.False(t, called)
				assert.Equal(t, string(tt.wantErrorType), decodeError(t, rec).ErrorType)
			} else {
				assert.True(t, called)
				assert.Equal(t, "user-1", gotID)
				assert.Equal(t, tt.wantRefreshed, refreshed)
			}

			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == auth.SessionCookieName {
					cookie = c
				}
			}
			if tt.wantCookie {
				require.NotNil(t, cookie)
				assert.Equal(t, "fresh", cookie.Value)
				assert.True(t, cookie.HttpOnly)
			} else {
				assert.Nil(t, cookie)
			}

			if tt.wantEvent != "" {
				assert.Contains(t, sink.Types(), tt.wantEvent)
			}
		})
	}
}

func TestAuthnMiddleware_RefreshKeyedByCredential(t *testing.T) {
	sessions := &mockSessions{
		validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrCredentialExpired},
		refresh:  iam.RefreshOutcome{Err: errors.New("still down")},
	}
	events, _ := newEvents()
	mw, err := NewAuthnMiddleware(AuthnDependencies{Sessions: sessions, Events: events})
	require.NoError(t, err)
	handler := RequestID(mw(http.NotFoundHandler()))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "same-token"})
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, sessions.refreshKeys, 2)
	assert.Equal(t, sessions.refreshKeys[0], sessions.refreshKeys[1])
	assert.Equal(t, iam.SequenceKeyFor("same-token", ""), sessions.refreshKeys[0])
}

func TestAuthnMiddleware_CancelledDuringRefresh(t *testing.T) {
	sessions := &mockSessions{
		validate: iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrCredentialExpired},
		refresh:  iam.RefreshOutcome{Err: context.Canceled},
	}
	events, sink := newEvents()
	mw, err := NewAuthnMiddleware(AuthnDependencies{Sessions: sessions, Events: events})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Empty(t, rec.Body.String())
	assert.NotContains(t, sink.Types(), audit.EventRefreshFailed)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = audit.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(audit.RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", rec.Header().Get(audit.RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(audit.RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "<script>", seen)
	assert.Len(t, seen, 26)
	assert.Equal(t, seen, rec.Header().Get(audit.RequestIDHeader))
}
