package domain

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/smallbiznis/bookpay/pkg/db/pagination"
)

// Repository is the storage contract for payment sessions. UpdateStatusIf is
// the single compare-and-swap primitive every racing verification channel
// funnels through; it must be one conditional UPDATE, not read-then-write.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *PaymentSession) error
	FindByID(ctx context.Context, db *gorm.DB, sessionID string) (*PaymentSession, error)

	// UpdateStatusIf sets payment_status to target only when the current
	// status is in sources, recording attribution for the winning actor.
	// It reports whether the update was applied.
	UpdateStatusIf(ctx context.Context, db *gorm.DB, sessionID string, target Status, sources []Status, actor string, at time.Time) (bool, error)

	// SetOrderIDIfNull binds an order to the session exactly once.
	SetOrderIDIfNull(ctx context.Context, db *gorm.DB, sessionID, orderID string) (bool, error)

	// ExpireIfPending flips one overdue pending session to expired.
	ExpireIfPending(ctx context.Context, db *gorm.DB, sessionID string, now time.Time) (bool, error)

	// ExpireAllOverdue flips every overdue pending session to expired and
	// returns the number affected.
	ExpireAllOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	// ListOpen returns up to limit+1 unresolved sessions ordered by
	// (created_at, session_id) descending, starting after cursor.
	ListOpen(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]PaymentSession, error)
}
