package domain

import (
	"time"

	"gorm.io/datatypes"
)

// DeliveryStatus is the fulfillment-side status of a materialized order.
type DeliveryStatus string

const (
	DeliveryProcessing     DeliveryStatus = "processing"
	DeliveryShipped        DeliveryStatus = "shipped"
	DeliveryOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryDelivered      DeliveryStatus = "delivered"
)

func (d DeliveryStatus) Valid() bool {
	switch d {
	case DeliveryProcessing, DeliveryShipped, DeliveryOutForDelivery, DeliveryDelivered:
		return true
	default:
		return false
	}
}

// TrackingEvent is one entry of the append-only tracking history.
type TrackingEvent struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Order is the durable business record materialized exactly once from a
// verified payment session. The unique index on payment_session_id is the
// safeguard against duplicate materialization.
type Order struct {
	OrderID          string `gorm:"primaryKey;column:order_id" json:"order_id"`
	PaymentSessionID string `gorm:"not null;uniqueIndex" json:"payment_session_id"`

	CustomerName    string `gorm:"not null" json:"-"`
	CustomerPhone   string `gorm:"not null" json:"-"`
	CustomerAddress string `gorm:"not null" json:"-"`
	CustomerCity    string `gorm:"not null;default:''" json:"-"`
	CustomerState   string `gorm:"not null;default:''" json:"-"`
	CustomerPincode string `gorm:"not null;default:''" json:"-"`

	OriginalPrice int64  `gorm:"not null" json:"-"`
	FinalPrice    int64  `gorm:"not null" json:"-"`
	PrepaidAmount int64  `gorm:"not null" json:"-"`
	BalanceDue    int64  `gorm:"not null" json:"-"`
	CouponApplied string `gorm:"not null;default:''" json:"-"`

	DeliveryStatus  DeliveryStatus `gorm:"not null" json:"delivery_status"`
	TrackingHistory datatypes.JSON `gorm:"not null" json:"tracking_history"`

	EstimatedStart time.Time `gorm:"not null" json:"estimated_start"`
	EstimatedEnd   time.Time `gorm:"not null" json:"estimated_end"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
