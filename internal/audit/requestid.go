package audit

import (
	"context"
	"crypto/rand"
	"regexp"

	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries the correlation id in and out of the service.
const RequestIDHeader = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

type requestIDKey struct{}

// NewRequestID returns a fresh ULID.
func NewRequestID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// AcceptRequestID returns supplied when it is a well formed id, otherwise a new one.
func AcceptRequestID(supplied string) string {
	if requestIDPattern.MatchString(supplied) {
		return supplied
	}
	return NewRequestID()
}

// WithRequestID stores the correlation id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id, or "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
