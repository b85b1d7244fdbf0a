package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/metrics"
	"github.com/smallbiznis/bookpay/internal/notify"
	"github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Reconcile   *config.ReconcileConfigHolder
	Repo        domain.Repository
	SessionSvc  sessiondomain.Service
	SessionRepo sessiondomain.Repository
	Dispatcher  *notify.Dispatcher
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	reconcile   *config.ReconcileConfigHolder
	repo        domain.Repository
	sessionSvc  sessiondomain.Service
	sessionRepo sessiondomain.Repository
	dispatcher  *notify.Dispatcher
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		reconcile:   p.Reconcile,
		repo:        p.Repo,
		sessionSvc:  p.SessionSvc,
		sessionRepo: p.SessionRepo,
		dispatcher:  p.Dispatcher,
		metrics:     p.Metrics,
	}
}

func (s *Service) MaterializeFromSession(ctx context.Context, sessionID string) (*domain.Order, error) {
	session, err := s.sessionSvc.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.PaymentStatus != sessiondomain.StatusVerified {
		return nil, &domain.InvalidStateError{Status: string(session.PaymentStatus)}
	}

	// Short-circuit: the session already carries its order.
	if session.OrderID != nil && *session.OrderID != "" {
		existing, err := s.repo.FindByID(ctx, s.db, *session.OrderID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.metrics.RecordMaterialization("existing")
			return existing, nil
		}
		// order_id set but row missing is a broken invariant; fall through
		// to the session-keyed lookup rather than recreating blindly.
	}

	order, created, err := s.createOrLoad(ctx, session)
	if err != nil {
		return nil, err
	}

	// The order row is durable before the session learns about it; a crash
	// in between is healed by the set-if-null retry on the next call.
	if _, err := s.sessionRepo.SetOrderIDIfNull(ctx, s.db, session.SessionID, order.OrderID); err != nil {
		return nil, err
	}

	if created {
		s.metrics.RecordMaterialization("created")
		s.log.Info("order materialized",
			zap.String("order_id", order.OrderID),
			zap.String("session_id", session.SessionID),
		)
		s.dispatcher.OrderMaterialized(order)
	} else {
		s.metrics.RecordMaterialization("existing")
	}

	return order, nil
}

func (s *Service) createOrLoad(ctx context.Context, session *sessiondomain.PaymentSession) (*domain.Order, bool, error) {
	now := s.clock.Now()
	cfg := s.reconcile.Get()

	seed := []domain.TrackingEvent{{
		Status:    "confirmed",
		Message:   "Order confirmed, booking fee verified.",
		Timestamp: now,
	}}
	history, err := json.Marshal(seed)
	if err != nil {
		return nil, false, err
	}

	order := &domain.Order{
		OrderID:          fmt.Sprintf("ORD-%s", s.genID.Generate().String()),
		PaymentSessionID: session.SessionID,
		CustomerName:     session.CustomerName,
		CustomerPhone:    session.CustomerPhone,
		CustomerAddress:  session.CustomerAddress,
		CustomerCity:     session.CustomerCity,
		CustomerState:    session.CustomerState,
		CustomerPincode:  session.CustomerPincode,
		OriginalPrice:    session.OriginalPrice,
		FinalPrice:       session.FinalPrice,
		PrepaidAmount:    session.PrepaidAmount,
		BalanceDue:       session.BalanceDue,
		CouponApplied:    session.CouponApplied,
		DeliveryStatus:   domain.DeliveryProcessing,
		TrackingHistory:  datatypes.JSON(history),
		EstimatedStart:   now.Add(time.Duration(cfg.DeliveryEstimateMinDays) * 24 * time.Hour),
		EstimatedEnd:     now.Add(time.Duration(cfg.DeliveryEstimateMaxDays) * 24 * time.Hour),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	insertErr := s.repo.Insert(ctx, s.db, order)
	if insertErr == nil {
		return order, true, nil
	}
	if !db.IsDuplicateKeyErr(insertErr) {
		return nil, false, insertErr
	}

	// A racing call won the insert; its order is the one true record.
	existing, err := s.repo.FindBySessionID(ctx, s.db, session.SessionID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, insertErr
	}
	return existing, false, nil
}

func (s *Service) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, domain.ErrNotFound
	}
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) UpdateDelivery(ctx context.Context, req domain.UpdateDeliveryRequest) (*domain.Order, error) {
	if !req.Status.Valid() {
		return nil, domain.ErrInvalidDeliveryStatus
	}

	order, err := s.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	var history []domain.TrackingEvent
	if len(order.TrackingHistory) > 0 {
		if err := json.Unmarshal(order.TrackingHistory, &history); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	message := strings.TrimSpace(req.Message)
	if message == "" {
		message = fmt.Sprintf("Delivery status updated to %s.", req.Status)
	}
	history = append(history, domain.TrackingEvent{
		Status:    string(req.Status),
		Message:   message,
		Timestamp: now,
	})

	raw, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateDelivery(ctx, s.db, order.OrderID, req.Status, datatypes.JSON(raw), now); err != nil {
		return nil, err
	}

	order.DeliveryStatus = req.Status
	order.TrackingHistory = datatypes.JSON(raw)
	order.UpdatedAt = now
	return order, nil
}
