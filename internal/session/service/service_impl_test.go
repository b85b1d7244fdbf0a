package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/session/domain"
	sessionrepo "github.com/smallbiznis/bookpay/internal/session/repository"
	sessionservice "github.com/smallbiznis/bookpay/internal/session/service"
	"github.com/smallbiznis/bookpay/pkg/db/pagination"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE payment_sessions (
			session_id TEXT PRIMARY KEY,
			customer_name TEXT NOT NULL,
			customer_phone TEXT NOT NULL,
			customer_address TEXT NOT NULL,
			customer_city TEXT NOT NULL DEFAULT '',
			customer_state TEXT NOT NULL DEFAULT '',
			customer_pincode TEXT NOT NULL DEFAULT '',
			original_price BIGINT NOT NULL,
			final_price BIGINT NOT NULL,
			prepaid_amount BIGINT NOT NULL,
			balance_due BIGINT NOT NULL,
			coupon_applied TEXT NOT NULL DEFAULT '',
			payment_status TEXT NOT NULL,
			order_id TEXT,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			verified_at TIMESTAMP,
			rejected_at TIMESTAMP,
			verified_by TEXT NOT NULL DEFAULT '',
			rejected_by TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX ix_payment_sessions_status ON payment_sessions(payment_status)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newService(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()
	return sessionservice.New(sessionservice.Params{
		DB:        db,
		Log:       zaptest.NewLogger(t),
		Clock:     clk,
		Reconcile: config.NewStaticReconcileConfigHolder(config.DefaultReconcileConfig()),
		Repo:      sessionrepo.Provide(),
	})
}

func createRequest() domain.CreateSessionRequest {
	return domain.CreateSessionRequest{
		Customer: domain.Customer{
			Name:    "Asha Rao",
			Phone:   "9876543210",
			Address: "12 MG Road",
			City:    "Bengaluru",
			State:   "KA",
			Pincode: "560001",
		},
		Pricing: domain.Pricing{
			OriginalPrice: 1499,
			FinalPrice:    1199,
			PrepaidAmount: 600,
			CouponApplied: "LAUNCH300",
		},
	}
}

func TestCreateComputesBalanceAndExpiry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	s, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID)
	assert.Equal(t, domain.StatusPending, s.PaymentStatus)
	assert.Equal(t, int64(599), s.BalanceDue)
	assert.Equal(t, clk.Now().Add(30*time.Minute), s.ExpiresAt)
	assert.Nil(t, s.OrderID)

	got, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, s.SessionID, got.SessionID)
	assert.Equal(t, domain.StatusPending, got.PaymentStatus)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.SystemClock{})

	cases := []struct {
		name    string
		mutate  func(*domain.CreateSessionRequest)
		wantErr error
	}{
		{"missing name", func(r *domain.CreateSessionRequest) { r.Customer.Name = "  " }, domain.ErrMissingName},
		{"missing phone", func(r *domain.CreateSessionRequest) { r.Customer.Phone = "" }, domain.ErrMissingPhone},
		{"missing address", func(r *domain.CreateSessionRequest) { r.Customer.Address = "" }, domain.ErrMissingAddress},
		{"zero final price", func(r *domain.CreateSessionRequest) { r.Pricing.FinalPrice = 0 }, domain.ErrInvalidPricing},
		{"zero prepaid", func(r *domain.CreateSessionRequest) { r.Pricing.PrepaidAmount = 0 }, domain.ErrInvalidPricing},
		{"prepaid above final", func(r *domain.CreateSessionRequest) { r.Pricing.PrepaidAmount = 1200 }, domain.ErrInvalidPricing},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := createRequest()
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGetLazilyExpiresOverduePending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	s, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	clk.Advance(29 * time.Minute)
	got, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.PaymentStatus)

	clk.Advance(2 * time.Minute)
	got, err = svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.PaymentStatus)

	// A late verify against the expired session must not win.
	got, err = svc.Transition(ctx, s.SessionID, domain.StatusVerified, "telegram:ops")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, got.PaymentStatus)
}

func TestVerifiedSessionDoesNotExpire(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	s, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, s.SessionID, domain.StatusVerified, "telegram:ops")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	got, err := svc.Get(ctx, s.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, got.PaymentStatus)
	require.NotNil(t, got.VerifiedAt)
	assert.Equal(t, "telegram:ops", got.VerifiedBy)
}

func TestTransitionRules(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.SystemClock{})

	s, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	// pending is never a valid target.
	_, err = svc.Transition(ctx, s.SessionID, domain.StatusPending, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	got, err := svc.Transition(ctx, s.SessionID, domain.StatusSubmitted, "customer")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.PaymentStatus)

	// submitted does not expire.
	got, err = svc.Transition(ctx, s.SessionID, domain.StatusExpired, "sweep")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, got.PaymentStatus)

	got, err = svc.Transition(ctx, s.SessionID, domain.StatusRejected, "telegram:ops")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.PaymentStatus)
	require.NotNil(t, got.RejectedAt)
	assert.Equal(t, "telegram:ops", got.RejectedBy)

	// Terminal states are immutable; the caller sees the winner's state.
	got, err = svc.Transition(ctx, s.SessionID, domain.StatusVerified, "telegram:ops")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.PaymentStatus)
}

func TestTransitionNotFound(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.SystemClock{})

	_, err := svc.Transition(ctx, "ghost", domain.StatusVerified, "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentVerifyRejectSingleWinner(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.SystemClock{})

	s, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	targets := []domain.Status{
		domain.StatusVerified, domain.StatusRejected,
		domain.StatusVerified, domain.StatusRejected,
	}

	var wg sync.WaitGroup
	results := make([]domain.Status, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target domain.Status) {
			defer wg.Done()
			got, err := svc.Transition(ctx, s.SessionID, target, "racer")
			if err == nil {
				results[i] = got.PaymentStatus
			}
		}(i, target)
	}
	wg.Wait()

	// One more sequential attempt settles the session even if every racer
	// hit transient store contention.
	final, err := svc.Transition(ctx, s.SessionID, domain.StatusVerified, "racer")
	require.NoError(t, err)
	assert.True(t, final.PaymentStatus.Terminal())

	// Every racer that read back a state observed the single winner.
	for _, r := range results {
		if r != "" {
			assert.Equal(t, final.PaymentStatus, r)
		}
	}
}

func TestListOpen(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db, clock.SystemClock{})

	a, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)
	b, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, b.SessionID, domain.StatusVerified, "ops")
	require.NoError(t, err)

	open, info, err := svc.ListOpen(ctx, pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, a.SessionID, open[0].SessionID)
	assert.False(t, info.HasMore)
}

func TestListOpenPagination(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	svc := newService(t, db, clk)

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	first, info, err := svc.ListOpen(ctx, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextPageToken)

	seen := map[string]bool{}
	for _, s := range first {
		seen[s.SessionID] = true
	}

	token := info.NextPageToken
	for token != "" {
		page, pageInfo, err := svc.ListOpen(ctx, pagination.Pagination{PageSize: 2, PageToken: token})
		require.NoError(t, err)
		for _, s := range page {
			assert.False(t, seen[s.SessionID], "session repeated across pages")
			seen[s.SessionID] = true
		}
		token = pageInfo.NextPageToken
	}
	assert.Len(t, seen, 5)

	_, _, err = svc.ListOpen(ctx, pagination.Pagination{PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}
