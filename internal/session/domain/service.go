package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/bookpay/pkg/db/pagination"
)

type CreateSessionRequest struct {
	Customer Customer
	Pricing  Pricing
}

type Service interface {
	// Create allocates a session ID, stamps the expiry window and persists
	// the session with status pending.
	Create(ctx context.Context, req CreateSessionRequest) (*PaymentSession, error)

	// Get reads a session, lazily flipping an overdue pending session to
	// expired before returning it.
	Get(ctx context.Context, sessionID string) (*PaymentSession, error)

	// Transition atomically moves the session to target when its current
	// status is in the allowed source set. A guard failure against an
	// already-terminal session is not an error: the session is returned
	// unchanged so the caller observes the winner's state.
	Transition(ctx context.Context, sessionID string, target Status, actor string) (*PaymentSession, error)

	// ListOpen returns sessions still awaiting resolution (pending or
	// submitted, no order yet), for manual admin review.
	ListOpen(ctx context.Context, page pagination.Pagination) ([]PaymentSession, *pagination.PageInfo, error)
}

var (
	ErrNotFound         = errors.New("session_not_found")
	ErrInvalidTarget    = errors.New("invalid_transition_target")
	ErrInvalidPageToken = errors.New("invalid_page_token")

	ErrMissingName    = errors.New("invalid_customer_name")
	ErrMissingPhone   = errors.New("invalid_customer_phone")
	ErrMissingAddress = errors.New("invalid_customer_address")
	ErrInvalidPricing = errors.New("invalid_pricing")
)
