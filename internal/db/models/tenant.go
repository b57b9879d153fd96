package models

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
)

// Tenant is a company. All tenant-scoped records reference one.
type Tenant struct {
	bun.BaseModel `bun:"table:tenants,alias:t"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Active    bool      `bun:"active,notnull" json:"active"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Profile is this system's view of an external identity.
// Profiles are soft-deactivated through Active and never hard-deleted.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:p"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	IdentityID string    `bun:"identity_id,notnull,unique" json:"identityId"`
	Email      string    `bun:"email" json:"email"`
	Role       auth.Role `bun:"role,notnull,type:varchar(32)" json:"role"`
	TenantID   *string   `bun:"tenant_id,type:uuid" json:"tenantId"`
	Active     bool      `bun:"active,notnull" json:"active"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// AssignedTenant returns the tenant id or "" when unassigned.
func (p *Profile) AssignedTenant() string {
	if p == nil || p.TenantID == nil {
		return ""
	}
	return *p.TenantID
}
