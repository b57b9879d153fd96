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

// BunProfileRepository implements ProfileRepository using Bun ORM
type BunProfileRepository struct {
	db *bun.DB
}

// NewBunProfileRepository creates a new Bun-based profile repository
func NewBunProfileRepository(db *bun.DB) *BunProfileRepository {
	return &BunProfileRepository{db: db}
}

// Create inserts a new profile
func (r *BunProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.IdentityID == "" {
		return newError(KindValidation, "profiles", "create", fmt.Errorf("identity_id is required"))
	}
	if !profile.Role.Valid() {
		return newError(KindValidation, "profiles", "create", fmt.Errorf("invalid role %q", profile.Role))
	}
	if profile.ID == "" {
		profile.ID = bunx.NewUUIDv7()
	}
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(profile).Exec(ctx); err != nil {
		return classify(KindInsert, "profiles", "create", fmt.Errorf("create profile: %w", err))
	}
	return nil
}

// GetByID retrieves a profile by its id
func (r *BunProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return r.getBy(ctx, "id", id)
}

// GetByIdentityID retrieves the profile linked to an external identity
func (r *BunProfileRepository) GetByIdentityID(ctx context.Context, identityID string) (*models.Profile, error) {
	return r.getBy(ctx, "identity_id", identityID)
}

// GetByEmail retrieves a profile by email
func (r *BunProfileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return r.getBy(ctx, "email", email)
}

func (r *BunProfileRepository) getBy(ctx context.Context, column, value string) (*models.Profile, error) {
	profile := new(models.Profile)
	err := r.db.NewSelect().
		Model(profile).
		Where("? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("get profile by %s: %w", column, err)
	}
	return profile, nil
}

// Update writes role, tenant, email and active state.
func (r *BunProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	if !profile.Role.Valid() {
		return newError(KindValidation, "profiles", "update", fmt.Errorf("invalid role %q", profile.Role))
	}
	profile.UpdatedAt = time.Now().UTC()
	result, err := r.db.NewUpdate().
		Model(profile).
		Column("email", "role", "tenant_id", "active", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("profile %s: %w", profile.ID, ErrNotFound)
	}
	return nil
}

// List returns profiles, restricted to tenantID when non-empty.
func (r *BunProfileRepository) List(ctx context.Context, tenantID string) ([]models.Profile, error) {
	var profiles []models.Profile
	q := r.db.NewSelect().Model(&profiles).Order("created_at ASC")
	if tenantID != "" {
		q = q.Where("tenant_id = ?", tenantID)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}
