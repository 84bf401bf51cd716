// Package otp implements the one-time-password ledger: short-lived,
// single-use 6-digit codes keyed by email, with at most one live code per
// address.
package otp

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidOrExpired is returned when no live code matches a verification
// attempt.
var ErrInvalidOrExpired = errors.New("otp: invalid or expired code")

// errCodeMissing signals a store lookup miss. Distinct from backend failures
// so the ledger can separate "bad code" from "store unreachable".
var errCodeMissing = errors.New("otp: code not found")

// Purpose selects the notification template for an issuance.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "password_reset"
)

// Code is a stored one-time code. A record whose ExpiresAt has passed is
// treated as absent even before it is physically deleted.
type Code struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// Store persists one-time codes. The ledger owns these records exclusively.
type Store interface {
	// Replace removes every code held for the email and stores the new one.
	// Concurrent issuance is last-write-wins.
	Replace(ctx context.Context, email, code string, expiresAt time.Time) error
	Find(ctx context.Context, email, code string) (*Code, error)
	DeleteByEmail(ctx context.Context, email string) error
}
