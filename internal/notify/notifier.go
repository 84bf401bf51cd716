// Package notify delivers messages to principals. The core only depends on
// the Send contract; transport is an external concern.
package notify

import (
	"context"
	"fmt"

	"github.com/metizror/marketforce-api/internal/obs"
)

// Notifier delivers a message to an email address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogNotifier writes messages to the service log instead of delivering them.
// Used in development and tests when no SMTP relay is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, to, subject, body string) error {
	obs.LogRequest(map[string]any{
		"type":    "notify",
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	return nil
}

// VerificationMessage renders the registration OTP email.
func VerificationMessage(code string) (subject, body string) {
	subject = "Verify your MarketForce account"
	body = fmt.Sprintf(
		"<p>Your verification code is <b>%s</b>.</p><p>It expires in 5 minutes.</p>", code)
	return subject, body
}

// PasswordResetMessage renders the password-reset OTP email.
func PasswordResetMessage(code string) (subject, body string) {
	subject = "MarketForce password reset"
	body = fmt.Sprintf(
		"<p>Your password reset code is <b>%s</b>.</p><p>It expires in 5 minutes. "+
			"If you did not request a reset, ignore this message.</p>", code)
	return subject, body
}
