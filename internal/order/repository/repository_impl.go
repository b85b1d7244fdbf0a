package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/bookpay/internal/order/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			order_id, payment_session_id,
			customer_name, customer_phone, customer_address,
			customer_city, customer_state, customer_pincode,
			original_price, final_price, prepaid_amount, balance_due, coupon_applied,
			delivery_status, tracking_history,
			estimated_start, estimated_end, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderID,
		order.PaymentSessionID,
		order.CustomerName,
		order.CustomerPhone,
		order.CustomerAddress,
		order.CustomerCity,
		order.CustomerState,
		order.CustomerPincode,
		order.OriginalPrice,
		order.FinalPrice,
		order.PrepaidAmount,
		order.BalanceDue,
		order.CouponApplied,
		order.DeliveryStatus,
		order.TrackingHistory,
		order.EstimatedStart,
		order.EstimatedEnd,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

const orderColumns = `order_id, payment_session_id,
	customer_name, customer_phone, customer_address,
	customer_city, customer_state, customer_pincode,
	original_price, final_price, prepaid_amount, balance_due, coupon_applied,
	delivery_status, tracking_history,
	estimated_start, estimated_end, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.OrderID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBySessionID(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE payment_session_id = ?
		 LIMIT 1`,
		sessionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.OrderID == "" {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateDelivery(ctx context.Context, db *gorm.DB, orderID string, status domain.DeliveryStatus, history datatypes.JSON, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET delivery_status = ?, tracking_history = ?, updated_at = ?
		 WHERE order_id = ?`,
		status, history, at, orderID,
	).Error
}
