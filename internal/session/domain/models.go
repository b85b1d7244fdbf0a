package domain

import (
	"time"
)

// Status is the payment session state machine variable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

// Terminal reports whether the status has no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusVerified, StatusRejected, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// AllowedSources returns the set of states a transition to target may start
// from, or nil when target is not a legal transition target at all.
// pending is never a target; expired is reached from pending only.
func AllowedSources(target Status) []Status {
	switch target {
	case StatusSubmitted:
		return []Status{StatusPending}
	case StatusVerified, StatusRejected, StatusFailed:
		return []Status{StatusPending, StatusSubmitted}
	case StatusExpired:
		return []Status{StatusPending}
	default:
		return nil
	}
}

// Customer is the immutable customer snapshot captured at session creation.
type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// Pricing is the immutable pricing snapshot captured at session creation.
// Amounts are whole currency units.
type Pricing struct {
	OriginalPrice int64  `json:"original_price"`
	FinalPrice    int64  `json:"final_price"`
	PrepaidAmount int64  `json:"prepaid_amount"`
	BalanceDue    int64  `json:"balance_due"`
	CouponApplied string `json:"coupon_applied,omitempty"`
}

// PaymentSession tracks a single booking-fee payment attempt from creation
// to resolution. Only payment_status and order_id (plus attribution
// timestamps) ever change after insert.
type PaymentSession struct {
	SessionID string `gorm:"primaryKey;column:session_id" json:"session_id"`

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

	PaymentStatus Status  `gorm:"not null;index" json:"payment_status"`
	OrderID       *string `json:"order_id,omitempty"`

	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	VerifiedBy string     `gorm:"not null;default:''" json:"-"`
	RejectedBy string     `gorm:"not null;default:''" json:"-"`
}

func (PaymentSession) TableName() string { return "payment_sessions" }

func (s *PaymentSession) Customer() Customer {
	return Customer{
		Name:    s.CustomerName,
		Phone:   s.CustomerPhone,
		Address: s.CustomerAddress,
		City:    s.CustomerCity,
		State:   s.CustomerState,
		Pincode: s.CustomerPincode,
	}
}

func (s *PaymentSession) Pricing() Pricing {
	return Pricing{
		OriginalPrice: s.OriginalPrice,
		FinalPrice:    s.FinalPrice,
		PrepaidAmount: s.PrepaidAmount,
		BalanceDue:    s.BalanceDue,
		CouponApplied: s.CouponApplied,
	}
}
