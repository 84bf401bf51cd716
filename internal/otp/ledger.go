package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/metizror/marketforce-api/internal/notify"
	"github.com/metizror/marketforce-api/internal/obs"
)

const defaultTTL = 5 * time.Minute

// Ledger issues and verifies one-time codes and pushes them through the
// Notifier side channel.
type Ledger struct {
	store    Store
	notifier notify.Notifier
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// Option configures Ledger behavior.
type Option func(*Ledger)

// WithTTL overrides the default 5-minute code lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithGenerator injects the code generator.
func WithGenerator(generate func() (string, error)) Option {
	return func(l *Ledger) {
		if generate != nil {
			l.generate = generate
		}
	}
}

func NewLedger(store Store, notifier notify.Notifier, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		notifier: notifier,
		ttl:      defaultTTL,
		now:      time.Now,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// generateCode draws a uniform 6-digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue replaces any live code for the email with a fresh one and emails it.
// The raw code is returned for operator and test visibility only. The code
// is stored before delivery is attempted, so a failed send can be retried
// with the resend action.
func (l *Ledger) Issue(ctx context.Context, email string, purpose Purpose) (string, error) {
	code, err := l.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := l.now().UTC().Add(l.ttl)
	if err := l.store.Replace(ctx, email, code, expiresAt); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}

	var subject, body string
	switch purpose {
	case PurposeResetPassword:
		subject, body = notify.PasswordResetMessage(code)
	default:
		subject, body = notify.VerificationMessage(code)
	}
	if err := l.notifier.Send(ctx, email, subject, body); err != nil {
		obs.ObserveOTPIssued("delivery_failed")
		return "", fmt.Errorf("deliver otp: %w", err)
	}
	obs.ObserveOTPIssued("sent")
	return code, nil
}

// Verify consumes the code. It succeeds only when a record for (email, code)
// exists and has not expired; success deletes every code for the email. A
// matched-but-expired code is also scrubbed so the same stale code cannot be
// retried.
func (l *Ledger) Verify(ctx context.Context, email, code string) error {
	rec, err := l.store.Find(ctx, email, code)
	if errors.Is(err, errCodeMissing) {
		obs.ObserveOTPVerified("invalid")
		return ErrInvalidOrExpired
	}
	if err != nil {
		return err
	}
	if !l.now().UTC().Before(rec.ExpiresAt) {
		_ = l.store.DeleteByEmail(ctx, email)
		obs.ObserveOTPVerified("invalid")
		return ErrInvalidOrExpired
	}
	if err := l.store.DeleteByEmail(ctx, email); err != nil {
		return err
	}
	obs.ObserveOTPVerified("ok")
	return nil
}

// Clear removes any live codes for the email. Called after a completed
// password reset as a safety measure.
func (l *Ledger) Clear(ctx context.Context, email string) error {
	return l.store.DeleteByEmail(ctx, email)
}
