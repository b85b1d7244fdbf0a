package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert persists a new order. It must surface the unique-constraint
	// violation on payment_session_id so the caller can resolve the race
	// idempotently.
	Insert(ctx context.Context, db *gorm.DB, order *Order) error

	FindByID(ctx context.Context, db *gorm.DB, orderID string) (*Order, error)
	FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*Order, error)

	UpdateDelivery(ctx context.Context, db *gorm.DB, orderID string, status DeliveryStatus, history datatypes.JSON, at time.Time) error
}
