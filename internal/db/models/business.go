package models

import (
	"time"

	"github.com/uptrace/bun"
)

// PoolTable is a billiard table in a venue.
type PoolTable struct {
	bun.BaseModel `bun:"table:pool_tables,alias:pt"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID   string    `bun:"tenant_id,notnull,type:uuid" json:"tenantId"`
	Name       string    `bun:"name,notnull" json:"name"`
	Status     string    `bun:"status,notnull" json:"status"`
	HourlyRate float64   `bun:"hourly_rate,notnull" json:"hourlyRate"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (t *PoolTable) GetID() string             { return t.ID }
func (t *PoolTable) SetID(id string)           { t.ID = id }
func (t *PoolTable) GetTenantID() string       { return t.TenantID }
func (t *PoolTable) SetTenantID(tenant string) { t.TenantID = tenant }
func (t *PoolTable) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// Product is an inventory item.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:pr"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	TenantID  string    `bun:"tenant_id,notnull,type:uuid" json:"tenantId"`
	Name      string    `bun:"name,notnull" json:"name"`
	SKU       string    `bun:"sku" json:"sku"`
	Stock     int       `bun:"stock,notnull" json:"stock"`
	Price     float64   `bun:"price,notnull" json:"price"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

func (p *Product) GetID() string             { return p.ID }
func (p *Product) SetID(id string)           { p.ID = id }
func (p *Product) GetTenantID() string       { return p.TenantID }
func (p *Product) SetTenantID(tenant string) { p.TenantID = tenant }
func (p *Product) Touch(now time.Time) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
