package audit

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckOutcome classifies one authorization decision.
type CheckOutcome string

const (
	CheckSuccess CheckOutcome = "success"
	CheckFailure CheckOutcome = "failure"
	CheckError   CheckOutcome = "error"
)

// SectionCounts is the per-section breakdown.
type SectionCounts struct {
	Checks    int64 `json:"checks"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
	Errors    int64 `json:"errors"`
}

func (c *SectionCounts) add(outcome CheckOutcome) {
	c.Checks++
	switch outcome {
	case CheckSuccess:
		c.Successes++
	case CheckFailure:
		c.Failures++
	default:
		c.Errors++
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Checks    int64
	Successes int64
	Failures  int64
	Errors    int64
	Sections  map[string]SectionCounts
}

// Fields flattens the snapshot for structured log output.
func (s Snapshot) Fields() map[string]any {
	fields := map[string]any{
		"checks":    s.Checks,
		"successes": s.Successes,
		"failures":  s.Failures,
		"errors":    s.Errors,
	}
	names := make([]string, 0, len(s.Sections))
	for name := range s.Sections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := s.Sections[name]
		fields["section."+name] = map[string]int64{
			"checks":    c.Checks,
			"successes": c.Successes,
			"failures":  c.Failures,
			"errors":    c.Errors,
		}
	}
	return fields
}

// Counters aggregates authorization decisions in memory and mirrors them as
// Prometheus counters. It is safe for concurrent use.
type Counters struct {
	checks    atomic.Int64
	successes atomic.Int64
	failures  atomic.Int64
	errors    atomic.Int64

	mu       sync.Mutex
	sections map[string]*SectionCounts

	reportEvery int64
	checksTotal *prometheus.CounterVec
}

// NewCounters creates counters reporting every reportEvery checks (0 disables
// reporting) and registers the collectors on reg when it is not nil.
func NewCounters(reg prometheus.Registerer, reportEvery int) *Counters {
	c := &Counters{
		sections:    make(map[string]*SectionCounts),
		reportEvery: int64(reportEvery),
		checksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billiards_auth_checks_total",
				Help: "Authorization decisions by section and outcome",
			},
			[]string{"section", "outcome"},
		),
	}
	if reg != nil {
		reg.MustRegister(c.checksTotal)
	}
	return c
}

// Record counts one decision and reports whether a summary is due.
func (c *Counters) Record(section string, outcome CheckOutcome) bool {
	switch outcome {
	case CheckSuccess:
		c.successes.Add(1)
	case CheckFailure:
		c.failures.Add(1)
	default:
		outcome = CheckError
		c.errors.Add(1)
	}

	c.mu.Lock()
	sc, ok := c.sections[section]
	if !ok {
		sc = &SectionCounts{}
		c.sections[section] = sc
	}
	sc.add(outcome)
	c.mu.Unlock()

	c.checksTotal.WithLabelValues(section, string(outcome)).Inc()

	n := c.checks.Add(1)
	return c.reportEvery > 0 && n%c.reportEvery == 0
}

// Snapshot copies the current totals.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	sections := make(map[string]SectionCounts, len(c.sections))
	for name, sc := range c.sections {
		sections[name] = *sc
	}
	c.mu.Unlock()

	return Snapshot{
		Checks:    c.checks.Load(),
		Successes: c.successes.Load(),
		Failures:  c.failures.Load(),
		Errors:    c.errors.Load(),
		Sections:  sections,
	}
}
