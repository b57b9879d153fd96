package middleware

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
)

// Maintenance answers every request with maintenance_mode while enabled.
// Probe paths stay reachable.
type Maintenance struct {
	enabled atomic.Bool
	exempt  map[string]struct{}
}

// NewMaintenance creates the switch in the given state.
func NewMaintenance(enabled bool, exemptPaths ...string) *Maintenance {
	m := &Maintenance{exempt: make(map[string]struct{}, len(exemptPaths))}
	for _, p := range exemptPaths {
		m.exempt[p] = struct{}{}
	}
	m.enabled.Store(enabled)
	return m
}

// Enabled reports the current state.
func (m *Maintenance) Enabled() bool { return m.enabled.Load() }

// Set flips maintenance mode at runtime.
func (m *Maintenance) Set(enabled bool) { m.enabled.Store(enabled) }

// Middleware enforces the switch.
func (m *Maintenance) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.exempt[r.URL.Path]; ok || !m.enabled.Load() {
			next.ServeHTTP(w, r)
			return
		}
		WriteAccessError(w, r, auth.ErrorMaintenanceMode, errors.New("maintenance mode"))
	})
}
