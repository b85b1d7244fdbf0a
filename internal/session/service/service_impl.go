package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/metrics"
	"github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Reconcile *config.ReconcileConfigHolder
	Repo      domain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	reconcile *config.ReconcileConfigHolder
	repo      domain.Repository
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("session.service"),
		clock:     p.Clock,
		reconcile: p.Reconcile,
		repo:      p.Repo,
		metrics:   p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSessionRequest) (*domain.PaymentSession, error) {
	customer := req.Customer
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)

	if customer.Name == "" {
		return nil, domain.ErrMissingName
	}
	if customer.Phone == "" {
		return nil, domain.ErrMissingPhone
	}
	if customer.Address == "" {
		return nil, domain.ErrMissingAddress
	}

	pricing := req.Pricing
	if pricing.FinalPrice <= 0 || pricing.PrepaidAmount <= 0 || pricing.PrepaidAmount > pricing.FinalPrice {
		return nil, domain.ErrInvalidPricing
	}
	if pricing.OriginalPrice <= 0 {
		pricing.OriginalPrice = pricing.FinalPrice
	}
	pricing.BalanceDue = pricing.FinalPrice - pricing.PrepaidAmount

	now := s.clock.Now()
	session := &domain.PaymentSession{
		SessionID:       uuid.NewString(),
		CustomerName:    customer.Name,
		CustomerPhone:   customer.Phone,
		CustomerAddress: customer.Address,
		CustomerCity:    strings.TrimSpace(customer.City),
		CustomerState:   strings.TrimSpace(customer.State),
		CustomerPincode: strings.TrimSpace(customer.Pincode),
		OriginalPrice:   pricing.OriginalPrice,
		FinalPrice:      pricing.FinalPrice,
		PrepaidAmount:   pricing.PrepaidAmount,
		BalanceDue:      pricing.BalanceDue,
		CouponApplied:   strings.TrimSpace(pricing.CouponApplied),
		PaymentStatus:   domain.StatusPending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.reconcile.Get().SessionTTL()),
	}

	if err := s.repo.Insert(ctx, s.db, session); err != nil {
		return nil, err
	}

	s.log.Info("payment session created",
		zap.String("session_id", session.SessionID),
		zap.Int64("prepaid_amount", session.PrepaidAmount),
	)
	return session, nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (*domain.PaymentSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrNotFound
	}

	session, err := s.repo.FindByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	if session.PaymentStatus == domain.StatusPending && s.clock.Now().After(session.ExpiresAt) {
		// Lazy expiry. The guard in the UPDATE makes the race with a
		// concurrent verification benign: whoever loses re-reads.
		if _, err := s.repo.ExpireIfPending(ctx, s.db, sessionID, s.clock.Now()); err != nil {
			return nil, err
		}
		session, err = s.repo.FindByID(ctx, s.db, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, domain.ErrNotFound
		}
	}

	return session, nil
}

func (s *Service) Transition(ctx context.Context, sessionID string, target domain.Status, actor string) (*domain.PaymentSession, error) {
	sources := domain.AllowedSources(target)
	if sources == nil {
		return nil, domain.ErrInvalidTarget
	}

	applied, err := s.repo.UpdateStatusIf(ctx, s.db, sessionID, target, sources, actor, s.clock.Now())
	if err != nil {
		return nil, err
	}

	session, err := s.repo.FindByID(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound
	}

	if applied {
		s.metrics.RecordTransition(string(target), "applied")
		s.log.Info("session transitioned",
			zap.String("session_id", sessionID),
			zap.String("status", string(target)),
			zap.String("actor", actor),
		)
	} else {
		// Guard failed: the session was already resolved (or already in
		// target). Report the existing state so duplicate admin actions
		// stay safe.
		s.metrics.RecordTransition(string(target), "noop")
	}

	return session, nil
}

func (s *Service) ListOpen(ctx context.Context, page pagination.Pagination) ([]domain.PaymentSession, *pagination.PageInfo, error) {
	var cursor *pagination.Cursor
	if page.PageToken != "" {
		c, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, domain.ErrInvalidPageToken
		}
		cursor = c
	}

	limit := page.Limit()
	rows, err := s.repo.ListOpen(ctx, s.db, cursor, limit)
	if err != nil {
		return nil, nil, err
	}

	rows, info := pagination.BuildPageInfo(rows, limit, func(row domain.PaymentSession) pagination.Cursor {
		return pagination.Cursor{
			ID:        row.SessionID,
			CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	return rows, info, nil
}
