package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// webhookChannel receives updates pushed by Telegram to our HTTP endpoint.
// The server routes the raw body here after checking the secret token.
type webhookChannel struct {
	bot     *Bot
	handler *Handler
	log     *zap.Logger

	mu      sync.Mutex
	started bool
}

func newWebhookChannel(bot *Bot, handler *Handler, log *zap.Logger) *webhookChannel {
	return &webhookChannel{
		bot:     bot,
		handler: handler,
		log:     log.Named("verify.webhook"),
	}
}

func (c *webhookChannel) Mode() string { return ModeWebhook }

// Start registers the webhook when a base URL is configured. Without one,
// registration is left to the management endpoint. Idempotent.
func (c *webhookChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	c.started = true

	if c.bot.webhookURL() == "" {
		c.log.Warn("no webhook base URL configured, register manually via the management endpoint")
		return nil
	}

	if _, err := c.bot.registerWebhook(); err != nil {
		// The HTTP endpoint still works once the webhook is registered
		// out of band, so this is not fatal.
		c.log.Error("webhook registration failed", zap.Error(err))
		return nil
	}
	c.log.Info("webhook registered", zap.String("url", c.bot.webhookURL()))
	return nil
}

func (c *webhookChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

func (c *webhookChannel) HandlePush(ctx context.Context, payload []byte) error {
	var upd tgbotapi.Update
	if err := json.Unmarshal(payload, &upd); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPush, err)
	}
	c.handler.HandleUpdate(ctx, &upd)
	return nil
}

func (c *webhookChannel) ManageWebhook(ctx context.Context, action string) (map[string]any, error) {
	return manageWebhook(c.bot, action)
}
