package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/audit"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/tenant"
)

type handlers struct {
	evaluator *auth.Evaluator
	profiles  profileAdminService
	companies companyDirectory
	events    *audit.Logger
}

func callerFrom(r *http.Request) (auth.Caller, bool) {
	return auth.CallerFromContext(r.Context())
}

func tenantFrom(r *http.Request) (tenant.Resolution, bool) {
	return tenant.FromContext(r.Context())
}

// TenantResponse describes the effective tenant of the request.
type TenantResponse struct {
	ID       string        `json:"id,omitempty"`
	Reason   tenant.Reason `json:"reason"`
	Unscoped bool          `json:"unscoped"`
}

// ProfileResponse is the caller's own profile as loaded for this request.
type ProfileResponse struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role"`
	TenantID string    `json:"tenantId,omitempty"`
	Active   bool      `json:"active"`
}

// MeResponse is returned by GET /api/me. WaitingApproval is set for
// non-elevated profiles without a tenant.
type MeResponse struct {
	Identity        auth.Identity                  `json:"identity"`
	Profile         ProfileResponse                `json:"profile"`
	Tenant          TenantResponse                 `json:"tenant"`
	WaitingApproval bool                           `json:"waitingApproval"`
	Refreshed       bool                           `json:"refreshed"`
	Permissions     map[auth.Section][]auth.Action `json:"permissions"`
}

// PermissionsResponse is returned by GET /api/me/permissions.
type PermissionsResponse struct {
	Role        auth.Role                      `json:"role"`
	Permissions map[auth.Section][]auth.Action `json:"permissions"`
}

// handleMe reports the caller's session, profile and effective tenant. It is
// reachable without a tenant so unassigned profiles can see their state.
func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		h.fail(w, r, auth.NewAccessError(auth.ErrorNotAuthenticated, nil))
		return
	}
	res, _ := tenantFrom(r)

	writeJSON(w, http.StatusOK, MeResponse{
		Identity: caller.Identity,
		Profile: ProfileResponse{
			ID:       caller.ProfileID,
			Email:    caller.Identity.Handle,
			Role:     caller.Role,
			TenantID: caller.TenantID,
			Active:   caller.Active,
		},
		Tenant: TenantResponse{
			ID:       res.TenantID,
			Reason:   res.Reason,
			Unscoped: tenant.Unscoped(res, caller.Role),
		},
		WaitingApproval: !caller.Role.IsElevated() && caller.TenantID == "",
		Refreshed:       caller.Refreshed,
		Permissions:     h.permissions(caller.Role),
	})
}

func (h *handlers) handlePermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		h.fail(w, r, auth.NewAccessError(auth.ErrorNotAuthenticated, nil))
		return
	}
	writeJSON(w, http.StatusOK, PermissionsResponse{
		Role:        caller.Role,
		Permissions: h.permissions(caller.Role),
	})
}

// permissions is the advisory set used for UI affordances.
func (h *handlers) permissions(role auth.Role) map[auth.Section][]auth.Action {
	out := make(map[auth.Section][]auth.Action)
	for section, actions := range h.evaluator.Permissions(role) {
		for _, action := range actions {
			if h.evaluator.AuthorizeClient(role, section, action) {
				out[section] = append(out[section], action)
			}
		}
	}
	return out
}

func (h *handlers) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	companies, err := h.companies.List(r.Context(), activeOnly)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": companies})
}

func (h *handlers) handleGetCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.companies.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

func (h *handlers) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	profile, err := h.profiles.Get(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *handlers) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)
	res, _ := tenantFrom(r)
	profiles, err := h.profiles.List(r.Context(), caller, res.TenantID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": profiles})
}

// UpdateProfileRequest is the body of PATCH /api/profiles/{id}. An empty
// tenantId unassigns the profile.
type UpdateProfileRequest struct {
	Role     *string `json:"role"`
	TenantID *string `json:"tenantId"`
	Active   *bool   `json:"active"`
}

func (h *handlers) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, _ := callerFrom(r)

	var req UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	upd := iam.ProfileUpdate{TenantID: req.TenantID, Active: req.Active}
	if req.Role != nil {
		role, err := auth.ParseRole(*req.Role)
		if err != nil {
			h.fail(w, r, &repository.Error{Kind: repository.KindValidation, Op: "update", Collection: "profiles", Err: err})
			return
		}
		upd.Role = &role
	}

	profile, err := h.profiles.Update(r.Context(), caller, chi.URLParam(r, "id"), upd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
