package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, session *domain.PaymentSession) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_sessions (
			session_id, customer_name, customer_phone, customer_address,
			customer_city, customer_state, customer_pincode,
			original_price, final_price, prepaid_amount, balance_due, coupon_applied,
			payment_status, order_id, created_at, expires_at,
			verified_at, rejected_at, verified_by, rejected_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.SessionID,
		session.CustomerName,
		session.CustomerPhone,
		session.CustomerAddress,
		session.CustomerCity,
		session.CustomerState,
		session.CustomerPincode,
		session.OriginalPrice,
		session.FinalPrice,
		session.PrepaidAmount,
		session.BalanceDue,
		session.CouponApplied,
		session.PaymentStatus,
		session.OrderID,
		session.CreatedAt,
		session.ExpiresAt,
		session.VerifiedAt,
		session.RejectedAt,
		session.VerifiedBy,
		session.RejectedBy,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.PaymentSession, error) {
	var item domain.PaymentSession
	err := db.WithContext(ctx).Raw(
		`SELECT session_id, customer_name, customer_phone, customer_address,
			customer_city, customer_state, customer_pincode,
			original_price, final_price, prepaid_amount, balance_due, coupon_applied,
			payment_status, order_id, created_at, expires_at,
			verified_at, rejected_at, verified_by, rejected_by
		 FROM payment_sessions
		 WHERE session_id = ?
		 LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.SessionID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateStatusIf(ctx context.Context, db *gorm.DB, sessionID string, target domain.Status, sources []domain.Status, actor string, at time.Time) (bool, error) {
	var res *gorm.DB
	switch target {
	case domain.StatusVerified:
		res = db.WithContext(ctx).Exec(
			`UPDATE payment_sessions
			 SET payment_status = ?, verified_at = ?, verified_by = ?
			 WHERE session_id = ? AND payment_status IN ?`,
			target, at, actor, sessionID, sources,
		)
	case domain.StatusRejected, domain.StatusFailed:
		res = db.WithContext(ctx).Exec(
			`UPDATE payment_sessions
			 SET payment_status = ?, rejected_at = ?, rejected_by = ?
			 WHERE session_id = ? AND payment_status IN ?`,
			target, at, actor, sessionID, sources,
		)
	default:
		res = db.WithContext(ctx).Exec(
			`UPDATE payment_sessions
			 SET payment_status = ?
			 WHERE session_id = ? AND payment_status IN ?`,
			target, sessionID, sources,
		)
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) SetOrderIDIfNull(ctx context.Context, db *gorm.DB, sessionID, orderID string) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_sessions
		 SET order_id = ?
		 WHERE session_id = ? AND order_id IS NULL`,
		orderID, sessionID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpireIfPending(ctx context.Context, db *gorm.DB, sessionID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_sessions
		 SET payment_status = ?
		 WHERE session_id = ? AND payment_status = ? AND expires_at < ?`,
		domain.StatusExpired, sessionID, domain.StatusPending, now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ExpireAllOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_sessions
		 SET payment_status = ?
		 WHERE payment_status = ? AND expires_at < ?`,
		domain.StatusExpired, domain.StatusPending, now,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListOpen(ctx context.Context, db *gorm.DB, cursor *pagination.Cursor, limit int) ([]domain.PaymentSession, error) {
	query := `SELECT session_id, customer_name, customer_phone, customer_address,
			customer_city, customer_state, customer_pincode,
			original_price, final_price, prepaid_amount, balance_due, coupon_applied,
			payment_status, order_id, created_at, expires_at,
			verified_at, rejected_at, verified_by, rejected_by
		 FROM payment_sessions
		 WHERE payment_status IN ? AND order_id IS NULL`
	args := []any{[]domain.Status{domain.StatusPending, domain.StatusSubmitted}}

	// The cursor timestamp goes through the driver as time.Time so its
	// stored form matches across dialects.
	if cursor != nil {
		if ts, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
			query += ` AND (created_at < ? OR (created_at = ? AND session_id < ?))`
			args = append(args, ts, ts, cursor.ID)
		}
	}
	query += ` ORDER BY created_at DESC, session_id DESC LIMIT ?`
	args = append(args, limit+1)

	var items []domain.PaymentSession
	err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
