package mailer

import "context"

// Mailer delivers the password reset link. Delivery is best effort for the
// overall system; the storefront core never depends on it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, toEmail, resetToken string) error
}
