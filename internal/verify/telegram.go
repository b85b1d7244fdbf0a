package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/smallbiznis/bookpay/internal/config"
	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

// Slightly above the long-poll timeout so GetUpdates calls are bounded but
// never cut short by the transport.
const botHTTPTimeout = (longPollTimeoutSeconds + 5) * time.Second

// Bot wraps the Telegram client with the small surface the channel needs:
// replies into the admin chat, alert messages with inline controls, and
// webhook registration management.
type Bot struct {
	api *tgbotapi.BotAPI
	log *zap.Logger

	adminChatID    int64
	webhookBaseURL string
	webhookSecret  string
}

func newBot(cfg config.BotConfig, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: botHTTPTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.Info("telegram bot authenticated", zap.String("username", api.Self.UserName))
	return &Bot{
		api:            api,
		log:            log.Named("verify.bot"),
		adminChatID:    cfg.AdminChatID,
		webhookBaseURL: strings.TrimRight(cfg.WebhookBaseURL, "/"),
		webhookSecret:  cfg.WebhookSecret,
	}, nil
}

func (b *Bot) Reply(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *Bot) Edit(chatID int64, messageID int, text string) error {
	_, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

func (b *Bot) AckCallback(callbackID string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

// SendSessionAlert posts the new-session announcement with one-tap
// verify/reject buttons.
func (b *Bot) SendSessionAlert(ctx context.Context, s *sessiondomain.PaymentSession) error {
	text := fmt.Sprintf(
		"🆕 New payment session\n\nSession: %s\nCustomer: %s (%s)\nBooking fee: %d of %d\nBalance due: %d\nExpires: %s\n\nUse the buttons below or /verify %s.",
		s.SessionID,
		s.CustomerName, s.CustomerPhone,
		s.PrepaidAmount, s.FinalPrice,
		s.BalanceDue,
		s.ExpiresAt.Format(time.RFC3339),
		s.SessionID,
	)

	msg := tgbotapi.NewMessage(b.adminChatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Verify", string(VerbVerify)+"_"+s.SessionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", string(VerbReject)+"_"+s.SessionID),
		),
	)
	_, err := b.api.Send(msg)
	return err
}

// SendOrderAlert posts the order-created announcement. Informational only.
func (b *Bot) SendOrderAlert(ctx context.Context, o *orderdomain.Order) error {
	text := fmt.Sprintf(
		"📦 Order created\n\nOrder: %s\nSession: %s\nCustomer: %s\nBalance due on delivery: %d\nEstimated delivery: %s to %s",
		o.OrderID,
		o.PaymentSessionID,
		o.CustomerName,
		o.BalanceDue,
		o.EstimatedStart.Format("02 Jan 2006"),
		o.EstimatedEnd.Format("02 Jan 2006"),
	)
	_, err := b.api.Send(tgbotapi.NewMessage(b.adminChatID, text))
	return err
}

func (b *Bot) webhookURL() string {
	if b.webhookBaseURL == "" {
		return ""
	}
	return b.webhookBaseURL + "/verify/webhook"
}

// registerWebhook points Telegram at our webhook endpoint. The secret token
// is echoed back by Telegram on every push and checked at the HTTP layer.
// The generated WebhookConfig has no secret_token field, so the raw call is
// used instead.
func (b *Bot) registerWebhook() (map[string]any, error) {
	url := b.webhookURL()
	if url == "" {
		return nil, fmt.Errorf("webhook base URL not configured")
	}

	params := tgbotapi.Params{"url": url}
	if b.webhookSecret != "" {
		params["secret_token"] = b.webhookSecret
	}
	resp, err := b.api.MakeRequest("setWebhook", params)
	if err != nil {
		return nil, err
	}
	return map[string]any{"ok": resp.Ok, "description": resp.Description, "url": url}, nil
}

func (b *Bot) webhookInfo() (map[string]any, error) {
	info, err := b.api.GetWebhookInfo()
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"url":             info.URL,
		"pending_updates": info.PendingUpdateCount,
	}
	if info.LastErrorMessage != "" {
		out["last_error"] = info.LastErrorMessage
		out["last_error_at"] = time.Unix(int64(info.LastErrorDate), 0).UTC().Format(time.RFC3339)
	}
	return out, nil
}

func (b *Bot) deleteWebhook() (map[string]any, error) {
	resp, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"ok": resp.Ok}
	if len(resp.Result) > 0 {
		var deleted bool
		if err := json.Unmarshal(resp.Result, &deleted); err == nil {
			out["deleted"] = deleted
		}
	}
	return out, nil
}
