package bunx

import "github.com/google/uuid"

// NewUUIDv7 returns a time-ordered UUIDv7 string for primary keys.
// Generated in Go so SQLite and Postgres share the same ids.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
