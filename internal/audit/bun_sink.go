package audit

import (
	"context"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
)

// BunSink appends events to the auth_events table.
type BunSink struct {
	events repository.AuthEventRepository
}

// NewBunSink creates a sink backed by repo.
func NewBunSink(repo repository.AuthEventRepository) *BunSink {
	return &BunSink{events: repo}
}

// Write inserts ev.
func (s *BunSink) Write(ctx context.Context, ev Event) error {
	return s.events.Insert(ctx, toModel(ev))
}

func toModel(ev Event) *models.AuthEvent {
	return &models.AuthEvent{
		Type:        string(ev.Type),
		Level:       string(ev.Level),
		RequestID:   ev.RequestID,
		IdentityID:  ev.IdentityID,
		TenantID:    ev.TenantID,
		Path:        ev.Path,
		StatusCode:  ev.StatusCode,
		Message:     ev.Message,
		ErrorDetail: ev.ErrorDetail,
		Metrics:     ev.Metrics,
		CreatedAt:   ev.Timestamp,
	}
}
