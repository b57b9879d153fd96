package audit

import (
	"fmt"
	"time"
)

// Level is the severity of an auth event.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Persisted reports whether events of this level go to the durable sink.
func (l Level) Persisted() bool {
	return l == LevelWarn || l == LevelError
}

// ParseLevel accepts the four level names.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown audit level %q", s)
}

// EventType names a step of the auth lifecycle.
type EventType string

const (
	EventSessionValidated   EventType = "session_validated"
	EventSessionInvalid     EventType = "session_invalid"
	EventSessionRefreshed   EventType = "session_refreshed"
	EventRefreshFailed      EventType = "session_refresh_failed"
	EventProfileCreated     EventType = "profile_created"
	EventProfileUnavailable EventType = "profile_unavailable"
	EventTenantResolved     EventType = "tenant_resolved"
	EventTenantRejected     EventType = "tenant_rejected"
	EventAccessGranted      EventType = "access_granted"
	EventAccessDenied       EventType = "access_denied"
	EventRepositoryError    EventType = "repository_error"
	EventRateLimited        EventType = "rate_limited"
	EventSummary            EventType = "auth_summary"
)

// EventContext is the request-scoped data attached to an event. Err is
// rendered into the event's ErrorDetail and never reaches HTTP responses.
type EventContext struct {
	RequestID  string
	IdentityID string
	TenantID   string
	Path       string
	StatusCode int
	Message    string
	Err        error
	Metrics    map[string]any
}

// Event is one auth event as handed to sinks.
type Event struct {
	Type        EventType      `json:"type"`
	Level       Level          `json:"level"`
	Timestamp   time.Time      `json:"timestamp"`
	RequestID   string         `json:"requestId"`
	IdentityID  string         `json:"identityId,omitempty"`
	TenantID    string         `json:"tenantId,omitempty"`
	Path        string         `json:"path,omitempty"`
	StatusCode  int            `json:"statusCode,omitempty"`
	Message     string         `json:"message"`
	ErrorDetail string         `json:"errorDetail,omitempty"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}
