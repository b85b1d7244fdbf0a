package domain

import (
	"context"
	"errors"
	"fmt"
)

type UpdateDeliveryRequest struct {
	OrderID string
	Status  DeliveryStatus
	Message string
}

type Service interface {
	// MaterializeFromSession converts a verified payment session into an
	// Order exactly once. Repeat calls return the already-created Order.
	MaterializeFromSession(ctx context.Context, sessionID string) (*Order, error)

	GetByID(ctx context.Context, orderID string) (*Order, error)

	// UpdateDelivery advances the delivery status and appends a tracking
	// entry. This is the fulfillment side's only mutator.
	UpdateDelivery(ctx context.Context, req UpdateDeliveryRequest) (*Order, error)
}

var (
	ErrNotFound              = errors.New("order_not_found")
	ErrInvalidDeliveryStatus = errors.New("invalid_delivery_status")
)

// InvalidStateError reports a materialization attempt against a session that
// is not verified, naming the session's current status so callers can tell
// "not yet verified" from "rejected" or "expired".
type InvalidStateError struct {
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session not verified (status %s)", e.Status)
}
