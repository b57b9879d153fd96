package server

import (
	"context"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

// profileAdminService defines the profile operations used by server handlers.
type profileAdminService interface {
	Get(ctx context.Context, actor auth.Caller, id string) (*models.Profile, error)
	List(ctx context.Context, actor auth.Caller, tenantID string) ([]models.Profile, error)
	Update(ctx context.Context, actor auth.Caller, id string, upd iam.ProfileUpdate) (*models.Profile, error)
}

// companyDirectory is the read side of the tenant store.
type companyDirectory interface {
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	List(ctx context.Context, activeOnly bool) ([]models.Tenant, error)
}

var (
	_ profileAdminService = (*iam.ProfileService)(nil)
	_ companyDirectory    = (repository.CompanyRepository)(nil)
)
