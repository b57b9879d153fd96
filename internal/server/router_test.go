package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/cache"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/middleware"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/migrations"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

const (
	tenantA        = "0193f0a0-0000-7000-8000-00000000000a"
	tenantB        = "0193f0a0-0000-7000-8000-00000000000b"
	tenantInactive = "0193f0a0-0000-7000-8000-00000000000c"
)

// fakeSessions accepts "token-<identity>" and treats "stale-<identity>" as
// expired but refreshable.
type fakeSessions struct{}

func (fakeSessions) Validate(_ context.Context, credential string) iam.ValidationResult {
	if id, ok := strings.CutPrefix(credential, "token-"); ok {
		return iam.ValidationResult{Identity: &auth.Identity{ID: id, Handle: id + "@example.com"}, Outcome: iam.OutcomeValid}
	}
	if strings.HasPrefix(credential, "stale-") {
		return iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrCredentialExpired}
	}
	return iam.ValidationResult{Outcome: iam.OutcomeInvalid, Err: auth.ErrInvalidCredential}
}

func (fakeSessions) RefreshWithBackoff(_ context.Context, _ iam.SequenceKey, credential string) iam.RefreshOutcome {
	id := strings.TrimPrefix(credential, "stale-")
	return iam.RefreshOutcome{
		Success:   true,
		Identity:  &auth.Identity{ID: id, Handle: id + "@example.com"},
		Token:     "token-" + id,
		Refreshed: true,
		Attempts:  2,
	}
}

type testEnv struct {
	router   chi.Router
	profiles *repository.BunProfileRepository
	counters *audit.Counters
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := bunx.NewDB(ctx, ":memory:", bunx.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	companies := repository.NewBunCompanyRepository(db)
	require.NoError(t, companies.Create(ctx, &models.Tenant{ID: tenantA, Name: "Cue Club", Active: true}))
	require.NoError(t, companies.Create(ctx, &models.Tenant{ID: tenantB, Name: "Eight Ball", Active: true}))
	require.NoError(t, companies.Create(ctx, &models.Tenant{ID: tenantInactive, Name: "Closed Hall", Active: false}))

	profiles := repository.NewBunProfileRepository(db)
	seed := []struct {
		identity string
		role     auth.Role
		tenantID string
	}{
		{"user-a", auth.RoleUser, tenantA},
		{"seller-a", auth.RoleSeller, tenantA},
		{"admin-a", auth.RoleAdmin, tenantA},
		{"seller-b", auth.RoleSeller, tenantB},
		{"super", auth.RoleSuperAdmin, ""},
	}
	for _, s := range seed {
		p := &models.Profile{ID: "p-" + s.identity, IdentityID: s.identity, Email: s.identity + "@example.com", Role: s.role, Active: true}
		if s.tenantID != "" {
			tenantID := s.tenantID
			p.TenantID = &tenantID
		}
		require.NoError(t, profiles.Create(ctx, p))
	}

	log, _ := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	counters := audit.NewCounters(reg, 0)
	events := audit.NewLogger(log, nil, counters)

	backend, err := cache.NewMemoryBackend(100)
	require.NoError(t, err)
	c := cache.New(backend, time.Minute, log)

	evaluator := auth.NewEvaluator(auth.DefaultMatrix())
	profileService := iam.NewProfileService(profiles, companies, log)

	authn, err := middleware.NewAuthnMiddleware(middleware.AuthnDependencies{Sessions: fakeSessions{}, Events: events})
	require.NoError(t, err)
	profileMW, err := middleware.NewProfileMiddleware(middleware.ProfileDependencies{
		Profiles: profileService,
		Tenants:  tenant.NewResolver(companies),
		Events:   events,
	})
	require.NoError(t, err)
	authorizer, err := middleware.NewAuthorizer(middleware.AuthzDependencies{Evaluator: evaluator, Events: events})
	require.NoError(t, err)

	router := NewRouter(RouterOptions{
		Authn:      authn,
		Profile:    profileMW,
		Authorizer: authorizer,
		Evaluator:  evaluator,
		Profiles:   profileService,
		Companies:  companies,
		Tables:     repository.NewTenantRepository[models.PoolTable](db, c, "pool_tables", time.Minute, log),
		Products:   repository.NewTenantRepository[models.Product](db, c, "products", time.Minute, log),
		Events:     events,
		Gatherer:   reg,
	})
	return &testEnv{router: router, profiles: profiles, counters: counters}
}

type call struct {
	method string
	path   string
	token  string
	tenant string
	body   any
}

func (e *testEnv) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.tenant != "" {
		req.Header.Set(middleware.TenantHeader, c.tenant)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(audit.RequestIDHeader))

	env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-seller-a"})
	rec = env.do(t, call{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "billiards_auth_checks_total")
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	t.Run("unauthenticated", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/me"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode[middleware.ErrorResponse](t, rec)
		assert.Equal(t, "not_authenticated", body.ErrorType)
		assert.Equal(t, rec.Header().Get(audit.RequestIDHeader), body.RequestID)
	})

	t.Run("first sign-in creates profile waiting for approval", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/me", token: "token-newcomer"})
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[MeResponse](t, rec)
		assert.True(t, me.WaitingApproval)
		assert.Equal(t, auth.RoleUser, me.Profile.Role)
		assert.Equal(t, tenant.ReasonUnassigned, me.Tenant.Reason)

		stored, err := env.profiles.GetByIdentityID(context.Background(), "newcomer")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, me.Profile.ID)
	})

	t.Run("refreshed credential", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/me", token: "stale-admin-a"})
		require.Equal(t, http.StatusOK, rec.Code)
		me := decode[MeResponse](t, rec)
		assert.True(t, me.Refreshed)
		assert.Equal(t, tenantA, me.Tenant.ID)

		var cookie *http.Cookie
		for _, c := range rec.Result().Cookies() {
			if c.Name == auth.SessionCookieName {
				cookie = c
			}
		}
		require.NotNil(t, cookie)
		assert.Equal(t, "token-admin-a", cookie.Value)
	})

	t.Run("permissions", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/me/permissions", token: "token-seller-a"})
		require.Equal(t, http.StatusOK, rec.Code)
		perms := decode[PermissionsResponse](t, rec)
		assert.Equal(t, auth.RoleSeller, perms.Role)
		assert.ElementsMatch(t, []auth.Action{auth.ActionView, auth.ActionEdit}, perms.Permissions[auth.SectionTables])
		assert.NotContains(t, perms.Permissions, auth.SectionFinance)
	})
}

func TestTables_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodPost, path: "/api/tables", token: "token-admin-a",
		body: map[string]any{"name": "Table 1", "status": "available", "hourlyRate": 12.5}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.PoolTable](t, rec)
	assert.Equal(t, tenantA, created.TenantID)
	assert.NotEmpty(t, created.ID)

	t.Run("same tenant reads", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables/" + created.ID, token: "token-seller-a"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other tenant gets not found", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables/" + created.ID, token: "token-seller-b"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		body := decode[middleware.ErrorResponse](t, rec)
		assert.Equal(t, "not_found", body.ErrorType)
		assert.NotContains(t, rec.Body.String(), "Table 1")
	})

	t.Run("other tenant cannot update", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/tables/" + created.ID, token: "token-seller-b",
			body: map[string]any{"status": "broken"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("requested tenant is ignored for non-elevated", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables/" + created.ID, token: "token-seller-b", tenant: tenantA})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("seller cannot delete", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodDelete, path: "/api/tables/" + created.ID, token: "token-seller-a"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "permission_denied", decode[middleware.ErrorResponse](t, rec).ErrorType)
	})

	t.Run("body tenant must match scope", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPost, path: "/api/tables", token: "token-admin-a",
			body: map[string]any{"name": "Sneaky", "status": "available", "tenantId": tenantB}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("immutable column", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/tables/" + created.ID, token: "token-admin-a",
			body: map[string]any{"tenantId": tenantB}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation_error", decode[middleware.ErrorResponse](t, rec).ErrorType)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodDelete, path: "/api/tables/" + created.ID, token: "token-admin-a"})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = env.do(t, call{method: http.MethodDelete, path: "/api/tables/" + created.ID, token: "token-admin-a"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTables_WriteThenReadIsFresh(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodPost, path: "/api/tables", token: "token-admin-a",
		body: map[string]any{"name": "Snooker", "status": "available", "hourlyRate": 20}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.PoolTable](t, rec)

	// Warm the cache.
	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-seller-a"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[listResponse[models.PoolTable]](t, rec).Items, 1)

	rec = env.do(t, call{method: http.MethodPatch, path: "/api/tables/" + created.ID, token: "token-seller-a",
		body: map[string]any{"status": "occupied"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-seller-a"})
	items := decode[listResponse[models.PoolTable]](t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, "occupied", items[0].Status)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables/" + created.ID, token: "token-seller-a"})
	assert.Equal(t, "occupied", decode[models.PoolTable](t, rec).Status)
}

func TestTables_ListOptions(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"A1", "A2", "A3"} {
		rec := env.do(t, call{method: http.MethodPost, path: "/api/tables", token: "token-admin-a",
			body: map[string]any{"name": name, "status": "available"}})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, call{method: http.MethodGet, path: "/api/tables?orderBy=name&desc=true&limit=2", token: "token-seller-a"})
	require.Equal(t, http.StatusOK, rec.Code)
	items := decode[listResponse[models.PoolTable]](t, rec).Items
	require.Len(t, items, 2)
	assert.Equal(t, "A3", items[0].Name)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables?filter=name:eq:A2", token: "token-seller-a"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listResponse[models.PoolTable]](t, rec).Items, 1)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables?filter=name;drop:eq:x", token: "token-seller-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/tables?limit=abc", token: "token-seller-a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuperAdminScopes(t *testing.T) {
	env := newTestEnv(t)
	for _, c := range []call{
		{method: http.MethodPost, path: "/api/tables", token: "token-admin-a", body: map[string]any{"name": "A", "status": "available"}},
		{method: http.MethodPost, path: "/api/tables", token: "token-super", tenant: tenantB, body: map[string]any{"name": "B", "status": "available"}},
	} {
		require.Equal(t, http.StatusCreated, env.do(t, c).Code)
	}

	t.Run("lists across tenants without selection", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-super"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[listResponse[models.PoolTable]](t, rec).Items, 2)
	})

	t.Run("lists one tenant with selection", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables?tenantId=" + tenantB, token: "token-super"})
		require.Equal(t, http.StatusOK, rec.Code)
		items := decode[listResponse[models.PoolTable]](t, rec).Items
		require.Len(t, items, 1)
		assert.Equal(t, tenantB, items[0].TenantID)
	})

	t.Run("write requires selection", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPost, path: "/api/tables", token: "token-super", body: map[string]any{"name": "X", "status": "available"}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "tenant_required", decode[middleware.ErrorResponse](t, rec).ErrorType)
	})

	t.Run("inactive selection", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-super", tenant: tenantInactive})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "tenant_inactive", decode[middleware.ErrorResponse](t, rec).ErrorType)
	})

	t.Run("unknown selection", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/tables", token: "token-super", tenant: "0193f0a0-0000-7000-8000-0000000000ff"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "tenant_required", decode[middleware.ErrorResponse](t, rec).ErrorType)
	})
}

func TestCompanies(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodGet, path: "/api/companies", token: "token-super"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listResponse[models.Tenant]](t, rec).Items, 3)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/companies?active=true", token: "token-super"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[listResponse[models.Tenant]](t, rec).Items, 2)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/companies/" + tenantB, token: "token-super"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Eight Ball", decode[models.Tenant](t, rec).Name)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/companies/0193f0a0-0000-7000-8000-0000000000ff", token: "token-super"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/companies", token: "token-admin-a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", decode[middleware.ErrorResponse](t, rec).ErrorType)
}

func TestProfiles(t *testing.T) {
	env := newTestEnv(t)

	t.Run("admin lists own tenant", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/profiles", token: "token-admin-a"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[listResponse[models.Profile]](t, rec).Items, 3)
	})

	t.Run("admin promotes user in own tenant", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/profiles/p-user-a", token: "token-admin-a",
			body: map[string]any{"role": "SELLER"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, auth.RoleSeller, decode[models.Profile](t, rec).Role)
	})

	t.Run("admin cannot grant superadmin", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/profiles/p-user-a", token: "token-admin-a",
			body: map[string]any{"role": "SUPERADMIN"}})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin cannot see other tenant", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/profiles/p-seller-b", token: "token-admin-a",
			body: map[string]any{"active": false}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid role", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/profiles/p-user-a", token: "token-admin-a",
			body: map[string]any{"role": "OWNER"}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("superadmin assigns tenant", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodPatch, path: "/api/profiles/p-seller-b", token: "token-super",
			body: map[string]any{"tenantId": tenantA}})
		require.Equal(t, http.StatusOK, rec.Code)
		profile := decode[models.Profile](t, rec)
		assert.Equal(t, tenantA, profile.AssignedTenant())
	})

	t.Run("seller cannot administer", func(t *testing.T) {
		rec := env.do(t, call{method: http.MethodGet, path: "/api/profiles", token: "token-seller-a"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestInventory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, call{method: http.MethodPost, path: "/api/inventory", token: "token-admin-a",
		body: map[string]any{"name": "Chalk", "sku": "CH-1", "stock": 40, "price": 1.5}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[models.Product](t, rec)

	rec = env.do(t, call{method: http.MethodPatch, path: "/api/inventory/" + created.ID, token: "token-admin-a",
		body: map[string]any{"stock": 39}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 39, decode[models.Product](t, rec).Stock)

	rec = env.do(t, call{method: http.MethodPost, path: "/api/inventory", token: "token-seller-a",
		body: map[string]any{"name": "Cue"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, call{method: http.MethodGet, path: "/api/inventory", token: "token-seller-b"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[listResponse[models.Product]](t, rec).Items)

	assert.Positive(t, env.counters.Snapshot().Sections["inventory"].Checks)
}

func TestColumnName(t *testing.T) {
	assert.Equal(t, "hourly_rate", columnName("hourlyRate"))
	assert.Equal(t, "status", columnName("status"))
	assert.Equal(t, "tenant_id", columnName("tenantId"))
}
