package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

type blockingSink struct {
	release chan struct{}
	got     chan Event
}

func (s *blockingSink) Write(_ context.Context, ev Event) error {
	<-s.release
	s.got <- ev
	return nil
}

func TestAsyncSink_DropsWhenFull(t *testing.T) {
	log, _ := test.NewNullLogger()
	next := &blockingSink{release: make(chan struct{}), got: make(chan Event, 10)}
	s := NewAsyncSink(next, 1, log)
	ctx := context.Background()

	// The first event is picked up by the delivery goroutine and blocks there.
	require.NoError(t, s.Write(ctx, Event{Type: EventAccessDenied}))
	require.Eventually(t, func() bool { return len(s.events) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Write(ctx, Event{Type: EventSessionInvalid}))
	assert.ErrorIs(t, s.Write(ctx, Event{Type: EventRefreshFailed}), ErrSinkFull)
	assert.Equal(t, int64(1), s.Dropped())

	close(next.release)
	require.NoError(t, s.Close(ctx))
	assert.Len(t, next.got, 2)
	assert.ErrorIs(t, s.Write(ctx, Event{}), ErrSinkClosed)
}

func TestAsyncSink_CloseDrains(t *testing.T) {
	log, _ := test.NewNullLogger()
	rec := &recordingSink{}
	s := NewAsyncSink(rec, 16, log)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Write(context.Background(), Event{Type: EventAccessDenied}))
	}
	require.NoError(t, s.Close(context.Background()))
	assert.Len(t, rec.Events(), 10)

	// Second close is a no-op.
	require.NoError(t, s.Close(context.Background()))
}

func TestMultiSink(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{err: errors.New("broker down")}
	m := MultiSink{a, b}

	err := m.Write(context.Background(), Event{Type: EventAccessDenied})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
	assert.NoError(t, m.Close())
}

type fakeAuthEventRepo struct {
	inserted []*models.AuthEvent
}

func (r *fakeAuthEventRepo) Insert(_ context.Context, events ...*models.AuthEvent) error {
	r.inserted = append(r.inserted, events...)
	return nil
}

func (r *fakeAuthEventRepo) ListRecent(context.Context, int) ([]models.AuthEvent, error) {
	return nil, nil
}

func TestBunSink_Write(t *testing.T) {
	repo := &fakeAuthEventRepo{}
	sink := NewBunSink(repo)
	ts := time.Date(2025, 10, 16, 12, 0, 0, 0, time.UTC)

	err := sink.Write(context.Background(), Event{
		Type:        EventRefreshFailed,
		Level:       LevelError,
		Timestamp:   ts,
		RequestID:   "req-9",
		TenantID:    "tenant-a",
		StatusCode:  401,
		ErrorDetail: "refresh sequence exhausted",
		Metrics:     map[string]any{"attempts": 3},
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)

	got := repo.inserted[0]
	assert.Equal(t, "session_refresh_failed", got.Type)
	assert.Equal(t, "error", got.Level)
	assert.Equal(t, "req-9", got.RequestID)
	assert.Equal(t, 401, got.StatusCode)
	assert.Equal(t, ts, got.CreatedAt)
	assert.Equal(t, 3, got.Metrics["attempts"])
}

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (p *fakePublisher) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	p.exchange, p.key, p.msg = exchange, key, msg
	return p.err
}

func TestAMQPSink_Write(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAMQPSink(pub, "billiards.audit")

	ev := Event{Type: EventAccessDenied, Level: LevelWarn, RequestID: "req-1", Message: "denied"}
	require.NoError(t, sink.Write(context.Background(), ev))

	assert.Equal(t, "billiards.audit", pub.exchange)
	assert.Equal(t, "auth.warn.access_denied", pub.key)
	assert.Equal(t, "application/json", pub.msg.ContentType)
	assert.Equal(t, amqp.Persistent, pub.msg.DeliveryMode)
	assert.Equal(t, "req-1", pub.msg.CorrelationId)

	var decoded Event
	require.NoError(t, json.Unmarshal(pub.msg.Body, &decoded))
	assert.Equal(t, "denied", decoded.Message)

	assert.NoError(t, sink.Close())
}

func TestAMQPSink_PublishError(t *testing.T) {
	sink := NewAMQPSink(&fakePublisher{err: amqp.ErrClosed}, "x")
	err := sink.Write(context.Background(), Event{Type: EventAccessDenied, Level: LevelError})
	assert.ErrorIs(t, err, amqp.ErrClosed)
}
