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

// BunAuthEventRepository implements AuthEventRepository using Bun ORM
type BunAuthEventRepository struct {
	db *bun.DB
}

// NewBunAuthEventRepository creates a new Bun-based auth event repository
func NewBunAuthEventRepository(db *bun.DB) *BunAuthEventRepository {
	return &BunAuthEventRepository{db: db}
}

// Insert appends events in a single statement.
func (r *BunAuthEventRepository) Insert(ctx context.Context, events ...*models.AuthEvent) error {
	if len(events) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, e := range events {
		if e.ID == "" {
			e.ID = bunx.NewUUIDv7()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
	}

	if _, err := r.db.NewInsert().Model(&events).Exec(ctx); err != nil {
		return classify(KindInsert, "auth_events", "insert", fmt.Errorf("insert auth events: %w", err))
	}
	return nil
}

// ListRecent returns the newest events first.
func (r *BunAuthEventRepository) ListRecent(ctx context.Context, limit int) ([]models.AuthEvent, error) {
	var events []models.AuthEvent
	err := r.db.NewSelect().
		Model(&events).
		OrderExpr("created_at DESC, id DESC").
		Limit(effectiveLimit(limit)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list auth events: %w", err)
	}
	return events, nil
}
