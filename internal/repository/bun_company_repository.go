package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

// BunCompanyRepository implements CompanyRepository using Bun ORM
type BunCompanyRepository struct {
	db *bun.DB
}

// NewBunCompanyRepository creates a new Bun-based tenant repository
func NewBunCompanyRepository(db *bun.DB) *BunCompanyRepository {
	return &BunCompanyRepository{db: db}
}

// Create inserts a tenant, generating its id when empty.
func (r *BunCompanyRepository) Create(ctx context.Context, tenant *models.Tenant) error {
	if tenant.Name == "" {
		return newError(KindValidation, "tenants", "create", fmt.Errorf("name is required"))
	}
	if tenant.ID == "" {
		tenant.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(tenant).Exec(ctx); err != nil {
		return classify(KindInsert, "tenants", "create", fmt.Errorf("create tenant: %w", err))
	}
	return nil
}

// GetByID retrieves a tenant by id
func (r *BunCompanyRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	tenant := new(models.Tenant)
	err := r.db.NewSelect().
		Model(tenant).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get tenant by ID: %w", err)
	}
	return tenant, nil
}

// List returns tenants ordered by name.
func (r *BunCompanyRepository) List(ctx context.Context, activeOnly bool) ([]models.Tenant, error) {
	var tenants []models.Tenant
	q := r.db.NewSelect().Model(&tenants).Order("name ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// SetActive activates or deactivates a tenant.
func (r *BunCompanyRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.NewUpdate().
		Model((*models.Tenant)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}
	return nil
}
