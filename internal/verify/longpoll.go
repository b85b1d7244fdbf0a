package verify

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const longPollTimeoutSeconds = 30

// longPollChannel pulls updates from the bot API on a background goroutine.
type longPollChannel struct {
	bot     *Bot
	handler *Handler
	log     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newLongPollChannel(bot *Bot, handler *Handler, log *zap.Logger) *longPollChannel {
	return &longPollChannel{
		bot:     bot,
		handler: handler,
		log:     log.Named("verify.longpoll"),
	}
}

func (c *longPollChannel) Mode() string { return ModeLongPoll }

// Start launches the polling loop. Calling Start on a running channel is a
// no-op.
func (c *longPollChannel) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}

	// getUpdates conflicts with an active webhook registration, so clear
	// any leftover one first.
	if _, err := c.bot.deleteWebhook(); err != nil {
		c.log.Warn("webhook cleanup before polling failed", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollTimeoutSeconds
	updates := c.bot.api.GetUpdatesChan(u)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx, updates, c.done)

	c.log.Info("long polling started")
	return nil
}

func (c *longPollChannel) run(ctx context.Context, updates tgbotapi.UpdatesChannel, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			c.handler.HandleUpdate(ctx, &upd)
		}
	}
}

// Stop shuts the polling loop down and waits for the in-flight update to
// finish. Calling Stop on a stopped channel is a no-op.
func (c *longPollChannel) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return nil
	}

	c.bot.api.StopReceivingUpdates()
	c.cancel()
	c.cancel = nil

	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.log.Info("long polling stopped")
	return nil
}

func (c *longPollChannel) HandlePush(ctx context.Context, payload []byte) error {
	return ErrPushNotAccepted
}

func (c *longPollChannel) ManageWebhook(ctx context.Context, action string) (map[string]any, error) {
	return manageWebhook(c.bot, action)
}
