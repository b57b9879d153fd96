package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	panics bool
}

func (s *recordingSink) Write(_ context.Context, ev Event) error {
	if s.panics {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestLogger(sink Sink, counters *Counters) (*Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewLogger(log, sink, counters), hook
}

func TestLogEvent_LevelsAndPersistence(t *testing.T) {
	tests := []struct {
		level     Level
		logLevel  logrus.Level
		persisted bool
	}{
		{LevelDebug, logrus.DebugLevel, false},
		{LevelInfo, logrus.InfoLevel, false},
		{LevelWarn, logrus.WarnLevel, true},
		{LevelError, logrus.ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			sink := &recordingSink{}
			logger, hook := newTestLogger(sink, nil)

			logger.LogEvent(context.Background(), EventAccessDenied, tt.level, EventContext{
				RequestID: "req-1",
				Path:      "/api/tables",
			})

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.logLevel, entry.Level)
			assert.Equal(t, "req-1", entry.Data["request_id"])
			assert.Equal(t, EventAccessDenied, entry.Data["event_type"])

			if tt.persisted {
				require.Len(t, sink.Events(), 1)
				assert.Equal(t, tt.level, sink.Events()[0].Level)
			} else {
				assert.Empty(t, sink.Events())
			}
		})
	}
}

func TestLogEvent_RequestIDFromContext(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := newTestLogger(sink, nil)

	ctx := WithRequestID(context.Background(), "ctx-id")
	logger.LogEvent(ctx, EventSessionInvalid, LevelWarn, EventContext{})

	require.Len(t, sink.Events(), 1)
	assert.Equal(t, "ctx-id", sink.Events()[0].RequestID)
	assert.Equal(t, string(EventSessionInvalid), sink.Events()[0].Message)
}

func TestLogEvent_AlwaysCarriesRequestID(t *testing.T) {
	sink := &recordingSink{}
	logger, _ := newTestLogger(sink, nil)

	logger.LogEvent(context.Background(), EventRepositoryError, LevelError, EventContext{
		Err: errors.New("pq: relation does not exist"),
	})

	require.Len(t, sink.Events(), 1)
	ev := sink.Events()[0]
	assert.NotEmpty(t, ev.RequestID)
	assert.Equal(t, "pq: relation does not exist", ev.ErrorDetail)
}

func TestLogEvent_SwallowsSinkFailures(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		logger, hook := newTestLogger(&recordingSink{err: errors.New("disk full")}, nil)
		assert.NotPanics(t, func() {
			logger.LogEvent(context.Background(), EventAccessDenied, LevelWarn, EventContext{})
		})
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, "audit sink rejected event", entry.Message)
	})

	t.Run("panic", func(t *testing.T) {
		logger, hook := newTestLogger(&recordingSink{panics: true}, nil)
		assert.NotPanics(t, func() {
			logger.LogEvent(context.Background(), EventAccessDenied, LevelError, EventContext{})
		})
		entry := hook.LastEntry()
		require.NotNil(t, entry)
		assert.Equal(t, logrus.ErrorLevel, entry.Level)
		assert.Equal(t, "audit event dropped after panic", entry.Message)
	})
}

func TestLogEvent_UnknownLevelFallsBackToInfo(t *testing.T) {
	sink := &recordingSink{}
	logger, hook := newTestLogger(sink, nil)

	logger.LogEvent(context.Background(), EventTenantResolved, Level("loud"), EventContext{})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Empty(t, sink.Events())
}

func TestRecordCheck_EmitsSummaryEveryN(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters := NewCounters(reg, 3)
	logger, hook := newTestLogger(nil, counters)
	ctx := context.Background()

	logger.RecordCheck(ctx, "tables", CheckSuccess)
	logger.RecordCheck(ctx, "tables", CheckFailure)
	assert.Empty(t, hook.AllEntries())

	logger.RecordCheck(ctx, "finance", CheckError)
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, EventSummary, entry.Data["event_type"])
	assert.Equal(t, int64(3), entry.Data["checks"])
	assert.Equal(t, int64(1), entry.Data["failures"])

	assert.Equal(t, float64(1), testutil.ToFloat64(counters.checksTotal.WithLabelValues("tables", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(counters.checksTotal.WithLabelValues("finance", "error")))
}

func TestRecordCheck_WithoutCounters(t *testing.T) {
	logger, hook := newTestLogger(nil, nil)
	logger.RecordCheck(context.Background(), "tables", CheckSuccess)
	assert.Empty(t, hook.AllEntries())
	assert.Nil(t, logger.Counters())
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		l, err := ParseLevel(s)
		require.NoError(t, err)
		assert.Equal(t, Level(s), l)
	}
	_, err := ParseLevel("fatal")
	assert.Error(t, err)
}

func TestAcceptRequestID(t *testing.T) {
	assert.Equal(t, "abc-123", AcceptRequestID("abc-123"))

	generated := AcceptRequestID("bad id with spaces")
	assert.Len(t, generated, 26)
	assert.NotEqual(t, generated, AcceptRequestID(""))
}
