package repository

import (
	"context"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

// CompanyRepository exposes persistence operations for tenants.
type CompanyRepository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	// GetByID returns ErrNotFound when the tenant does not exist.
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context, activeOnly bool) ([]models.Tenant, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// ProfileRepository exposes persistence operations for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	// GetByID and GetByIdentityID return ErrNotFound when no profile matches.
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByIdentityID(ctx context.Context, identityID string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
	List(ctx context.Context, tenantID string) ([]models.Profile, error)
}

// AuthEventRepository persists warn/error auth events.
type AuthEventRepository interface {
	Insert(ctx context.Context, events ...*models.AuthEvent) error
	ListRecent(ctx context.Context, limit int) ([]models.AuthEvent, error)
}
