package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

const (
	tenantA = "0193f0a0-0000-7000-8000-00000000000a"
	tenantB = "0193f0a0-0000-7000-8000-00000000000b"
)

type captureSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *captureSink) Write(_ context.Context, ev audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Types() []audit.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audit.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func newEvents() (*audit.Logger, *captureSink) {
	log, _ := test.NewNullLogger()
	sink := &captureSink{}
	return audit.NewLogger(log, sink, audit.NewCounters(nil, 0)), sink
}

type mockSessions struct {
	mu          sync.Mutex
	validate    iam.ValidationResult
	refresh     iam.RefreshOutcome
	refreshKeys []iam.SequenceKey
}

func (m *mockSessions) Validate(context.Context, string) iam.ValidationResult {
	return m.validate
}

func (m *mockSessions) RefreshWithBackoff(_ context.Context, seq iam.SequenceKey, _ string) iam.RefreshOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshKeys = append(m.refreshKeys, seq)
	return m.refresh
}

type mockProfiles struct {
	result iam.ProfileResult
}

func (m *mockProfiles) Fetch(context.Context, auth.Identity) iam.ProfileResult {
	return m.result
}

type mockTenantLookup struct {
	tenants map[string]*models.Tenant
	calls   int
}

func (m *mockTenantLookup) GetByID(_ context.Context, id string) (*models.Tenant, error) {
	m.calls++
	if t, ok := m.tenants[id]; ok {
		return t, nil
	}
	return nil, repository.ErrNotFound
}

func newLookup() *mockTenantLookup {
	return &mockTenantLookup{tenants: map[string]*models.Tenant{
		tenantA: {ID: tenantA, Name: "Cue Club", Active: false},
		tenantB: {ID: tenantB, Name: "Eight Ball", Active: true},
	}}
}

func profile(role auth.Role, tenantID string, active bool) *models.Profile {
	p := &models.Profile{ID: "profile-1", IdentityID: "user-1", Role: role, Active: active}
	if tenantID != "" {
		p.TenantID = &tenantID
	}
	return p
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
