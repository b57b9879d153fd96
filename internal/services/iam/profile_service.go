package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

// FetchReason classifies a failed profile fetch.
type FetchReason string

const (
	FetchLookupFailed FetchReason = "lookup_failed"
	FetchCreateFailed FetchReason = "create_failed"
)

// FetchError means the profile could not be loaded. Callers surface it as a
// degraded state; no placeholder profile is ever substituted.
type FetchError struct {
	Reason FetchReason
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("profile %s: %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ProfileResult holds either a profile or the reason it is missing.
type ProfileResult struct {
	Profile *models.Profile
	Err     *FetchError
	// Created is true when the profile was created by this fetch.
	Created bool
}

// OK reports whether a profile is available.
func (r ProfileResult) OK() bool {
	return r.Err == nil && r.Profile != nil
}

// ProfileUpdate is a partial change to a profile. Nil fields are left alone.
// An empty TenantID unassigns the profile.
type ProfileUpdate struct {
	Role     *auth.Role
	TenantID *string
	Active   *bool
}

// ProfileService loads, lazily creates and administers profiles.
type ProfileService struct {
	profiles    repository.ProfileRepository
	companies   repository.CompanyRepository
	defaultRole auth.Role
	log         *logrus.Logger
}

// NewProfileService creates the service. New profiles start as RoleUser with no tenant.
func NewProfileService(profiles repository.ProfileRepository, companies repository.CompanyRepository, log *logrus.Logger) *ProfileService {
	if log == nil {
		log = logrus.New()
	}
	return &ProfileService{
		profiles:    profiles,
		companies:   companies,
		defaultRole: auth.RoleUser,
		log:         log,
	}
}

// Fetch returns the profile for identity, creating it on first sight.
func (s *ProfileService) Fetch(ctx context.Context, identity auth.Identity) ProfileResult {
	profile, err := s.profiles.GetByIdentityID(ctx, identity.ID)
	if err == nil {
		return ProfileResult{Profile: profile}
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return ProfileResult{Err: &FetchError{Reason: FetchLookupFailed, Err: err}}
	}

	profile = &models.Profile{
		IdentityID: identity.ID,
		Email:      identity.Handle,
		Role:       s.defaultRole,
		Active:     true,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// A concurrent first request may have created it.
		existing, getErr := s.profiles.GetByIdentityID(ctx, identity.ID)
		if getErr == nil {
			return ProfileResult{Profile: existing}
		}
		return ProfileResult{Err: &FetchError{Reason: FetchCreateFailed, Err: err}}
	}

	s.log.WithFields(logrus.Fields{
		"identity_id": identity.ID,
		"profile_id":  profile.ID,
	}).Info("created profile on first sign-in")
	return ProfileResult{Profile: profile, Created: true}
}

// Get returns a profile by id as seen by actor. Non-elevated actors only see
// profiles of their own tenant; anything else is repository.ErrNotFound.
func (s *ProfileService) Get(ctx context.Context, actor auth.Caller, id string) (*models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Role.IsElevated() && (actor.TenantID == "" || profile.AssignedTenant() != actor.TenantID) {
		return nil, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
	}
	return profile, nil
}

// List returns the profiles visible to actor.
func (s *ProfileService) List(ctx context.Context, actor auth.Caller, tenantID string) ([]models.Profile, error) {
	if !actor.Role.IsElevated() {
		if actor.TenantID == "" {
			return nil, auth.NewAccessError(auth.ErrorTenantRequired, errors.New("no tenant assigned"))
		}
		tenantID = actor.TenantID
	}
	return s.profiles.List(ctx, tenantID)
}

// Update applies upd on behalf of actor.
//
// A SUPERADMIN may change anything. An ADMIN may only touch profiles of their
// own tenant, may not assign other tenants and may not grant SUPERADMIN.
func (s *ProfileService) Update(ctx context.Context, actor auth.Caller, id string, upd ProfileUpdate) (*models.Profile, error) {
	if !actor.Role.AtLeast(auth.RoleAdmin) {
		return nil, auth.NewAccessError(auth.ErrorPermissionDenied, errors.New("profile administration requires ADMIN"))
	}

	profile, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if !actor.Role.IsElevated() {
		if profile.Role.IsElevated() {
			return nil, auth.NewAccessError(auth.ErrorPermissionDenied, errors.New("cannot modify a SUPERADMIN profile"))
		}
		if upd.Role != nil && upd.Role.IsElevated() {
			return nil, auth.NewAccessError(auth.ErrorPermissionDenied, errors.New("only SUPERADMIN may grant SUPERADMIN"))
		}
		if upd.TenantID != nil && *upd.TenantID != "" && *upd.TenantID != actor.TenantID {
			return nil, auth.NewAccessError(auth.ErrorPermissionDenied, errors.New("cannot assign another tenant"))
		}
	}

	if upd.Role != nil {
		if !upd.Role.Valid() {
			return nil, &repository.Error{Kind: repository.KindValidation, Op: "update", Collection: "profiles", Err: fmt.Errorf("invalid role %q", *upd.Role)}
		}
		profile.Role = *upd.Role
	}
	if upd.TenantID != nil {
		if *upd.TenantID == "" {
			profile.TenantID = nil
		} else {
			if err := s.checkAssignable(ctx, *upd.TenantID); err != nil {
				return nil, err
			}
			tenantID := *upd.TenantID
			profile.TenantID = &tenantID
		}
	}
	if upd.Active != nil {
		profile.Active = *upd.Active
	}

	if err := s.profiles.Update(ctx, profile); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"actor_profile_id": actor.ProfileID,
		"profile_id":       profile.ID,
		"role":             profile.Role.String(),
		"tenant_id":        profile.AssignedTenant(),
		"active":           profile.Active,
	}).Info("profile updated")
	return profile, nil
}

func (s *ProfileService) checkAssignable(ctx context.Context, tenantID string) error {
	tenant, err := s.companies.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &repository.Error{Kind: repository.KindValidation, Op: "update", Collection: "profiles", Err: fmt.Errorf("tenant %s does not exist", tenantID)}
		}
		return err
	}
	if !tenant.Active {
		return &repository.Error{Kind: repository.KindValidation, Op: "update", Collection: "profiles", Err: fmt.Errorf("tenant %s is inactive", tenantID)}
	}
	return nil
}
