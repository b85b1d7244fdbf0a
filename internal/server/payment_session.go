package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/smallbiznis/bookpay/internal/qr"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	"github.com/smallbiznis/bookpay/pkg/db/pagination"
)

type createSessionRequest struct {
	Customer sessiondomain.Customer `json:"customer"`
	Pricing  sessiondomain.Pricing  `json:"pricing"`
}

type sessionView struct {
	SessionID     string     `json:"session_id"`
	PaymentStatus string     `json:"payment_status"`
	OrderID       *string    `json:"order_id,omitempty"`
	Pricing       any        `json:"pricing"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

// newSessionView is the client-safe projection: status, pricing and timing
// only. Attribution and customer details stay server-side.
func newSessionView(s *sessiondomain.PaymentSession) sessionView {
	return sessionView{
		SessionID:     s.SessionID,
		PaymentStatus: string(s.PaymentStatus),
		OrderID:       s.OrderID,
		Pricing:       s.Pricing(),
		CreatedAt:     s.CreatedAt,
		ExpiresAt:     s.ExpiresAt,
		VerifiedAt:    s.VerifiedAt,
	}
}

func (s *Server) CreatePaymentSession(c *gin.Context) {
	if !s.createLimiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if req.Pricing.PrepaidAmount == 0 {
		req.Pricing.PrepaidAmount = s.cfg.Payment.PrepaidAmount
	}

	session, err := s.sessionSvc.Create(c.Request.Context(), sessiondomain.CreateSessionRequest{
		Customer: req.Customer,
		Pricing:  req.Pricing,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.SessionCreated(session)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.SessionID,
		"qr_payload": qr.Payload(qr.Payment{
			PayeeVPA:  s.cfg.Payment.PayeeVPA,
			PayeeName: s.cfg.Payment.PayeeName,
			Amount:    session.PrepaidAmount,
			Currency:  s.cfg.Payment.Currency,
			Note:      session.SessionID,
		}),
		"expires_at": session.ExpiresAt,
	})
}

func (s *Server) GetPaymentSession(c *gin.Context) {
	session, err := s.sessionSvc.Get(c.Request.Context(), c.Query("sessionId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionView(session))
}

type updateSessionRequest struct {
	SessionID     string `json:"sessionId"`
	PaymentStatus string `json:"paymentStatus"`
}

// UpdatePaymentSession carries the client's "I paid" signal (submitted) and
// gateway pushes (verified, failed). Expiry is never a caller-supplied
// target.
func (s *Server) UpdatePaymentSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	target := sessiondomain.Status(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	switch target {
	case sessiondomain.StatusSubmitted, sessiondomain.StatusVerified,
		sessiondomain.StatusRejected, sessiondomain.StatusFailed:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.sessionSvc.Transition(c.Request.Context(), req.SessionID, target, "api:"+c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSessionView(session))
}

// PaymentSessionCallback lands gateway redirects. The outcome is applied
// best effort and the customer is always sent back to the status page; the
// page learns the final state by polling.
func (s *Server) PaymentSessionCallback(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	outcome := strings.ToLower(strings.TrimSpace(c.Query("status")))

	if sessionID != "" {
		target := sessiondomain.StatusFailed
		if outcome == "success" {
			target = sessiondomain.StatusVerified
		}
		if _, err := s.sessionSvc.Transition(c.Request.Context(), sessionID, target, "gateway:redirect"); err != nil {
			s.log.Warn("gateway callback transition failed",
				zap.String("session_id", sessionID),
				zap.Error(err))
		}
	}

	c.Redirect(http.StatusFound, s.cfg.PublicAppURL+"/payment-status?sessionId="+sessionID)
}

func (s *Server) ListOpenSessions(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sessions, info, err := s.sessionSvc.ListOpen(c.Request.Context(), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "page_info": info})
}
