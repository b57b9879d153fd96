package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger emits auth events. Every level goes to the process log; warn and
// error events are also handed to the durable sink.
type Logger struct {
	log      *logrus.Logger
	sink     Sink
	counters *Counters
	now      func() time.Time
}

// NewLogger creates an event logger. sink and counters may be nil.
func NewLogger(log *logrus.Logger, sink Sink, counters *Counters) *Logger {
	if log == nil {
		log = logrus.New()
	}
	return &Logger{
		log:      log,
		sink:     sink,
		counters: counters,
		now:      time.Now,
	}
}

// Counters returns the aggregate counters, or nil when none are attached.
func (l *Logger) Counters() *Counters {
	return l.counters
}

// LogEvent records one auth event. It never fails: sink errors and panics are
// logged and swallowed.
func (l *Logger) LogEvent(ctx context.Context, typ EventType, level Level, ec EventContext) {
	defer func() {
		if r := recover(); r != nil {
			l.log.WithFields(logrus.Fields{
				"event_type": typ,
				"panic":      r,
			}).Error("audit event dropped after panic")
		}
	}()

	ev := l.build(ctx, typ, level, ec)
	l.write(ev)

	if !level.Persisted() || l.sink == nil {
		return
	}
	if err := l.sink.Write(ctx, ev); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"event_type": typ,
			"request_id": ev.RequestID,
		}).Warn("audit sink rejected event")
	}
}

// RecordCheck counts one authorization decision for section and emits a
// summary event every N checks.
func (l *Logger) RecordCheck(ctx context.Context, section string, outcome CheckOutcome) {
	if l.counters == nil {
		return
	}
	if !l.counters.Record(section, outcome) {
		return
	}
	snap := l.counters.Snapshot()
	l.LogEvent(ctx, EventSummary, LevelInfo, EventContext{
		Message: "authorization summary",
		Metrics: snap.Fields(),
	})
}

func (l *Logger) build(ctx context.Context, typ EventType, level Level, ec EventContext) Event {
	if _, err := ParseLevel(string(level)); err != nil {
		level = LevelInfo
	}
	requestID := ec.RequestID
	if requestID == "" {
		requestID = RequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = NewRequestID()
	}
	ev := Event{
		Type:       typ,
		Level:      level,
		Timestamp:  l.now().UTC(),
		RequestID:  requestID,
		IdentityID: ec.IdentityID,
		TenantID:   ec.TenantID,
		Path:       ec.Path,
		StatusCode: ec.StatusCode,
		Message:    ec.Message,
		Metrics:    ec.Metrics,
	}
	if ev.Message == "" {
		ev.Message = string(typ)
	}
	if ec.Err != nil {
		ev.ErrorDetail = ec.Err.Error()
	}
	return ev
}

func (l *Logger) write(ev Event) {
	fields := logrus.Fields{
		"event_type": ev.Type,
		"request_id": ev.RequestID,
	}
	if ev.IdentityID != "" {
		fields["identity_id"] = ev.IdentityID
	}
	if ev.TenantID != "" {
		fields["tenant_id"] = ev.TenantID
	}
	if ev.Path != "" {
		fields["path"] = ev.Path
	}
	if ev.StatusCode != 0 {
		fields["status_code"] = ev.StatusCode
	}
	if ev.ErrorDetail != "" {
		fields["error"] = ev.ErrorDetail
	}
	for k, v := range ev.Metrics {
		fields[k] = v
	}

	entry := l.log.WithFields(fields)
	switch ev.Level {
	case LevelDebug:
		entry.Debug(ev.Message)
	case LevelWarn:
		entry.Warn(ev.Message)
	case LevelError:
		entry.Error(ev.Message)
	default:
		entry.Info(ev.Message)
	}
}
