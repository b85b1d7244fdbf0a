// Package notify delivers best-effort admin alerts. Delivery always happens
// after the triggering write has committed, on a detached goroutine with its
// own timeout; a slow or failed alert can never make a committed transition
// look uncommitted.
package notify

import (
	"context"

	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

// Sender is the outbound side of the admin channel. The verification
// channel provides the real implementation; a disabled channel provides
// NopSender.
type Sender interface {
	// SendSessionAlert announces a new payment session with inline
	// verify/reject controls.
	SendSessionAlert(ctx context.Context, session *sessiondomain.PaymentSession) error

	// SendOrderAlert announces a materialized order. Informational only.
	SendOrderAlert(ctx context.Context, order *orderdomain.Order) error
}

type NopSender struct{}

func (NopSender) SendSessionAlert(ctx context.Context, session *sessiondomain.PaymentSession) error {
	return nil
}

func (NopSender) SendOrderAlert(ctx context.Context, order *orderdomain.Order) error {
	return nil
}
