package verify

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/smallbiznis/bookpay/internal/metrics"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

// Replier sends outcome feedback back to the admin chat. The two delivery
// modes share one implementation; tests substitute their own.
type Replier interface {
	Reply(chatID int64, text string) error
	Edit(chatID int64, messageID int, text string) error
	AckCallback(callbackID string) error
}

// origin describes where an update came from, so the outcome lands in the
// right place: a fresh message for typed commands, an in-place edit for
// button clicks.
type origin struct {
	chatID     int64
	messageID  int
	fromID     int64
	fromName   string
	callbackID string
}

func (o origin) callback() bool { return o.callbackID != "" }

func (o origin) actor() string {
	if o.fromName != "" {
		return "telegram:" + o.fromName
	}
	return fmt.Sprintf("telegram:%d", o.fromID)
}

// Handler turns parsed admin commands into session transitions. It never
// returns errors to the transport: every outcome, including failures, is
// reported back into the chat and logged.
type Handler struct {
	log      *zap.Logger
	sessions sessiondomain.Service

	adminChatID int64
	replier     Replier
	metrics     *metrics.Metrics
}

func NewHandler(log *zap.Logger, sessions sessiondomain.Service, adminChatID int64, replier Replier, m *metrics.Metrics) *Handler {
	return &Handler{
		log:         log.Named("verify.handler"),
		sessions:    sessions,
		adminChatID: adminChatID,
		replier:     replier,
		metrics:     m,
	}
}

// HandleUpdate routes a raw bot update. Non-command chatter is ignored.
func (h *Handler) HandleUpdate(ctx context.Context, upd *tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		h.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.IsCommand():
		h.handleMessage(ctx, upd.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	o := origin{chatID: msg.Chat.ID, messageID: msg.MessageID}
	if msg.From != nil {
		o.fromID = msg.From.ID
		o.fromName = msg.From.UserName
	}

	cmd, err := ParseText(msg.Text)
	if errors.Is(err, ErrUnknownCommand) {
		return
	}
	h.execute(ctx, cmd, err, o)
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	o := origin{callbackID: cq.ID}
	if cq.Message != nil {
		o.chatID = cq.Message.Chat.ID
		o.messageID = cq.Message.MessageID
	}
	if cq.From != nil {
		o.fromID = cq.From.ID
		o.fromName = cq.From.UserName
	}

	// Always answer the callback so the client stops its spinner, even
	// when the command itself is rejected below.
	if err := h.replier.AckCallback(cq.ID); err != nil {
		h.log.Warn("callback ack failed", zap.Error(err))
	}

	cmd, err := ParseCallback(cq.Data)
	if errors.Is(err, ErrUnknownCommand) {
		return
	}
	h.execute(ctx, cmd, err, o)
}

func (h *Handler) execute(ctx context.Context, cmd Command, parseErr error, o origin) {
	if o.chatID != h.adminChatID {
		h.record(cmd.Verb, "unauthorized")
		h.log.Warn("command from unauthorized chat",
			zap.Int64("chat_id", o.chatID),
			zap.String("verb", string(cmd.Verb)))
		h.respond(o, "You are not authorized to manage payment sessions.")
		return
	}

	if errors.Is(parseErr, ErrMissingArgument) {
		h.record(cmd.Verb, "bad_request")
		h.respond(o, fmt.Sprintf("Usage: /%s <session_id>", cmd.Verb))
		return
	}

	target := targetStatus[cmd.Verb]
	s, err := h.sessions.Transition(ctx, cmd.SessionID, target, o.actor())
	switch {
	case errors.Is(err, sessiondomain.ErrNotFound):
		h.record(cmd.Verb, "not_found")
		h.respond(o, fmt.Sprintf(
			"Session %s not found. It may have been removed, the ID may be mistyped, or the store may be briefly unavailable.",
			cmd.SessionID))
		return
	case err != nil:
		h.record(cmd.Verb, "error")
		h.log.Error("transition failed",
			zap.String("session_id", cmd.SessionID),
			zap.String("verb", string(cmd.Verb)),
			zap.Error(err))
		h.respond(o, fmt.Sprintf("Could not %s session %s right now, please retry.", cmd.Verb, cmd.SessionID))
		return
	}

	if s.PaymentStatus != target {
		// The guard lost: someone (or the expiry sweep) resolved the
		// session first. Report the winner's state instead of pretending
		// the command took effect.
		h.record(cmd.Verb, "noop")
		h.respond(o, h.alreadyResolvedText(cmd, s))
		return
	}

	h.record(cmd.Verb, "applied")
	h.log.Info("session resolved via admin command",
		zap.String("session_id", s.SessionID),
		zap.String("status", string(s.PaymentStatus)),
		zap.String("actor", o.actor()))
	h.respond(o, h.appliedText(cmd, s))
}

func (h *Handler) alreadyResolvedText(cmd Command, s *sessiondomain.PaymentSession) string {
	if s.PaymentStatus == sessiondomain.StatusVerified && s.OrderID != nil {
		return fmt.Sprintf("Session %s is already verified (order %s).", s.SessionID, *s.OrderID)
	}
	return fmt.Sprintf("Session %s is already %s, /%s had no effect.", s.SessionID, s.PaymentStatus, cmd.Verb)
}

func (h *Handler) appliedText(cmd Command, s *sessiondomain.PaymentSession) string {
	switch cmd.Verb {
	case VerbVerify:
		return fmt.Sprintf("✅ Payment verified for session %s. The order will be created on the customer's next poll.", s.SessionID)
	case VerbReject:
		return fmt.Sprintf("❌ Payment rejected for session %s.", s.SessionID)
	default:
		return fmt.Sprintf("Session %s is now %s.", s.SessionID, s.PaymentStatus)
	}
}

// respond edits the originating message for button clicks and sends a fresh
// message for typed commands. Reply failures are logged, never propagated.
func (h *Handler) respond(o origin, text string) {
	var err error
	if o.callback() && o.messageID != 0 {
		err = h.replier.Edit(o.chatID, o.messageID, text)
	} else {
		err = h.replier.Reply(o.chatID, text)
	}
	if err != nil {
		h.log.Warn("reply failed", zap.Int64("chat_id", o.chatID), zap.Error(err))
	}
}

func (h *Handler) record(verb Verb, result string) {
	h.metrics.RecordCommand(string(verb), result)
}
