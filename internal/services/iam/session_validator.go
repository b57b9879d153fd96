package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/telemetry"
)

const tracerName = "billiards/services/iam"

// Outcome is the state a credential ends in.
type Outcome string

const (
	OutcomeValid   Outcome = "VALID"
	OutcomeInvalid Outcome = "INVALID"
	OutcomeFailed  Outcome = "FAILED"
)

// ErrSequenceExhausted is returned when a refresh sequence already used all its attempts.
var ErrSequenceExhausted = errors.New("refresh sequence exhausted")

// ValidationResult is the outcome of a single provider check.
type ValidationResult struct {
	Identity *auth.Identity
	Outcome  Outcome
	Err      error
}

// Expired reports whether the credential was rejected only for being stale,
// which makes it eligible for RefreshWithBackoff.
func (r ValidationResult) Expired() bool {
	return r.Outcome == OutcomeInvalid && errors.Is(r.Err, auth.ErrCredentialExpired)
}

// RefreshOutcome is the result of a refresh sequence.
type RefreshOutcome struct {
	Success  bool
	Identity *auth.Identity
	// Token is the refreshed credential when Success is true.
	Token string
	Err   error
	// Refreshed is true only when at least one retry happened before success.
	Refreshed bool
	Attempts  int
}

// Outcome maps the refresh result onto the session state machine.
func (o RefreshOutcome) Outcome() Outcome {
	if o.Success {
		return OutcomeValid
	}
	return OutcomeFailed
}

// SequenceKey identifies one logical refresh sequence. Retries of the same
// stale credential share a key no matter how many requests carry it.
type SequenceKey string

// SequenceKeyFor derives the key from the credential fingerprint, falling back
// to the request id when no credential is available.
func SequenceKeyFor(credential, requestID string) SequenceKey {
	if credential != "" {
		return SequenceKey("cred:" + auth.Fingerprint(credential))
	}
	return SequenceKey("req:" + requestID)
}

// RetryPolicy bounds a refresh sequence.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// ExhaustedTTL is how long an exhausted sequence keeps failing fast.
	ExhaustedTTL time.Duration
	// ExhaustedEntries caps the number of remembered sequences.
	ExhaustedEntries int
}

// DefaultRetryPolicy is 3 attempts, 200ms doubling to at most 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       3,
		BaseDelay:        200 * time.Millisecond,
		MaxDelay:         2 * time.Second,
		ExhaustedTTL:     5 * time.Minute,
		ExhaustedEntries: 10000,
	}
}

// Delay returns the wait before attempt n (n >= 2): min(base*2^(n-2), max).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.MaxDelay
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// SessionValidator drives the UNVALIDATED -> VALID | INVALID -> REFRESHING ->
// VALID | FAILED lifecycle of a bearer credential.
type SessionValidator struct {
	provider  auth.IdentityProvider
	policy    RetryPolicy
	group     singleflight.Group
	exhausted *expirable.LRU[SequenceKey, error]
	log       *logrus.Logger
}

// NewSessionValidator creates a validator around provider.
func NewSessionValidator(provider auth.IdentityProvider, policy RetryPolicy, log *logrus.Logger) *SessionValidator {
	defaults := DefaultRetryPolicy()
	if policy.MaxRetries < 1 {
		policy.MaxRetries = defaults.MaxRetries
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaults.BaseDelay
	}
	if policy.MaxDelay < policy.BaseDelay {
		policy.MaxDelay = policy.BaseDelay
	}
	if policy.ExhaustedTTL <= 0 {
		policy.ExhaustedTTL = defaults.ExhaustedTTL
	}
	if policy.ExhaustedEntries <= 0 {
		policy.ExhaustedEntries = defaults.ExhaustedEntries
	}
	if log == nil {
		log = logrus.New()
	}
	return &SessionValidator{
		provider:  provider,
		policy:    policy,
		exhausted: expirable.NewLRU[SequenceKey, error](policy.ExhaustedEntries, nil, policy.ExhaustedTTL),
		log:       log,
	}
}

// Policy returns the effective retry policy.
func (s *SessionValidator) Policy() RetryPolicy {
	return s.policy
}

// Validate checks credential with exactly one provider call.
func (s *SessionValidator) Validate(ctx context.Context, credential string) ValidationResult {
	if credential == "" {
		return ValidationResult{Outcome: OutcomeInvalid, Err: auth.ErrNoCredential}
	}

	ctx, span := telemetry.StartSpan(ctx, tracerName, "session.validate")
	defer span.End()

	identity, err := s.validateOnce(ctx, credential)
	if err != nil {
		telemetry.RecordError(span, err)
		return ValidationResult{Outcome: OutcomeInvalid, Err: err}
	}
	span.SetAttributes(attribute.String(telemetry.AttrIdentityID, identity.ID))
	return ValidationResult{Identity: identity, Outcome: OutcomeValid}
}

// RefreshWithBackoff runs the refresh sequence identified by seq.
//
// Concurrent calls with the same key share one in-flight run. A sequence that
// used all its attempts fails immediately until ExhaustedTTL passes. A caller
// whose ctx ends stops waiting at once. The shared run follows the context of
// the call that started it; when that caller goes away, the remaining callers
// start a fresh run on their own contexts instead of inheriting the cancellation.
func (s *SessionValidator) RefreshWithBackoff(ctx context.Context, seq SequenceKey, credential string) RefreshOutcome {
	if credential == "" {
		return RefreshOutcome{Err: auth.ErrNoCredential}
	}

	for {
		if cause, ok := s.exhausted.Get(seq); ok {
			return RefreshOutcome{Err: fmt.Errorf("%w: %v", ErrSequenceExhausted, cause)}
		}

		var led bool
		ch := s.group.DoChan(string(seq), func() (any, error) {
			led = true
			return s.runSequence(ctx, seq, credential), nil
		})

		select {
		case res := <-ch:
			out := res.Val.(RefreshOutcome)
			if !led && isContextError(out.Err) && ctx.Err() == nil {
				s.log.WithField("sequence", string(seq)).Debug("shared refresh abandoned by its starter, restarting")
				continue
			}
			return out
		case <-ctx.Done():
			return RefreshOutcome{Err: ctx.Err()}
		}
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *SessionValidator) runSequence(ctx context.Context, seq SequenceKey, credential string) RefreshOutcome {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "session.refresh")
	defer span.End()

	logger := s.log.WithField("sequence", string(seq))
	var (
		attempts int
		identity *auth.Identity
		token    string
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempts++
		span.SetAttributes(attribute.Int(telemetry.AttrRefreshAttempt, attempts))

		var err error
		identity, token, err = s.refreshOnce(ctx, credential)
		if err == nil {
			return nil
		}
		logger.WithError(err).WithField("attempt", attempts).Debug("refresh attempt failed")
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.policy.backOff(), uint64(s.policy.MaxRetries-1)), ctx)
	err := backoff.Retry(operation, b)
	if err == nil {
		span.SetAttributes(attribute.String(telemetry.AttrRefreshOutcome, string(OutcomeValid)))
		s.exhausted.Remove(seq)
		return RefreshOutcome{
			Success:   true,
			Identity:  identity,
			Token:     token,
			Refreshed: attempts > 1,
			Attempts:  attempts,
		}
	}

	telemetry.RecordError(span, err)
	span.SetAttributes(attribute.String(telemetry.AttrRefreshOutcome, string(OutcomeFailed)))
	if attempts >= s.policy.MaxRetries && ctx.Err() == nil {
		s.exhausted.Add(seq, err)
		logger.WithError(err).WithField("attempts", attempts).Warn("refresh sequence exhausted")
	}
	return RefreshOutcome{Err: err, Attempts: attempts}
}

var errProviderPanic = errors.New("identity provider panicked")

// isPermanent reports failures that another attempt cannot fix. Only
// transient provider errors are retried.
func isPermanent(err error) bool {
	return errors.Is(err, auth.ErrRefreshUnsupported) ||
		errors.Is(err, auth.ErrInvalidCredential) ||
		errors.Is(err, errProviderPanic)
}

func (s *SessionValidator) validateOnce(ctx context.Context, credential string) (identity *auth.Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			identity, err = nil, fmt.Errorf("%w: %v", errProviderPanic, r)
		}
	}()
	identity, err = s.provider.ValidateCredential(ctx, credential)
	if err == nil && identity == nil {
		err = fmt.Errorf("%w: provider returned no identity", auth.ErrInvalidCredential)
	}
	return identity, err
}

// refreshOnce is one attempt: exchange the credential, then validate the new one.
func (s *SessionValidator) refreshOnce(ctx context.Context, credential string) (identity *auth.Identity, token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			identity, token, err = nil, "", fmt.Errorf("%w: %v", errProviderPanic, r)
		}
	}()
	token, err = s.provider.RefreshCredential(ctx, credential)
	if err != nil {
		return nil, "", err
	}
	identity, err = s.validateOnce(ctx, token)
	if err != nil {
		return nil, "", err
	}
	return identity, token, nil
}
