package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuthEvent is a persisted warn/error auth event. The table is append-only.
type AuthEvent struct {
	bun.BaseModel `bun:"table:auth_events,alias:ae"`

	ID          string         `bun:"id,pk"`
	Type        string         `bun:"type,notnull"`
	Level       string         `bun:"level,notnull"`
	RequestID   string         `bun:"request_id"`
	IdentityID  string         `bun:"identity_id"`
	TenantID    string         `bun:"tenant_id"`
	Path        string         `bun:"path"`
	StatusCode  int            `bun:"status_code"`
	Message     string         `bun:"message"`
	ErrorDetail string         `bun:"error_detail"`
	Metrics     map[string]any `bun:"metrics,type:jsonb"`
	CreatedAt   time.Time      `bun:"created_at,notnull"`
}
