// Package verify is the admin verification channel: it carries verify and
// reject decisions from a Telegram admin chat into session transitions.
// Update delivery runs in one of two modes, long polling or webhook push,
// behind a single Channel interface; a missing token or chat ID yields a
// disabled channel rather than a startup failure.
package verify

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

const (
	ModeDisabled = "disabled"
	ModeLongPoll = "longpoll"
	ModeWebhook  = "webhook"
)

const (
	ActionSet    = "set"
	ActionInfo   = "info"
	ActionDelete = "delete"
)

var (
	// ErrChannelDisabled is returned by every operation of a channel that
	// never authenticated.
	ErrChannelDisabled = errors.New("verification_channel_disabled")

	// ErrPushNotAccepted is returned when a webhook payload arrives while
	// the channel is in long-poll mode.
	ErrPushNotAccepted = errors.New("webhook_push_not_accepted")

	// ErrMalformedPush is returned for payloads that do not decode as an
	// update.
	ErrMalformedPush = errors.New("malformed_update_payload")

	ErrUnknownAction = errors.New("unknown_webhook_action")
)

// Channel is the lifecycle-facing side of the verification channel. Start
// and Stop are idempotent; both delivery modes feed the same Handler.
type Channel interface {
	Mode() string

	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// HandlePush processes one raw update payload delivered over HTTP.
	// Only the webhook mode accepts pushes.
	HandlePush(ctx context.Context, payload []byte) error

	// ManageWebhook executes a webhook management action (set, info,
	// delete) against the bot API and returns its summary. Available in
	// both modes so an operator can switch modes at runtime.
	ManageWebhook(ctx context.Context, action string) (map[string]any, error)
}

type disabledChannel struct {
	log *zap.Logger
}

func (c *disabledChannel) Mode() string { return ModeDisabled }

func (c *disabledChannel) Start(ctx context.Context) error {
	c.log.Warn("verification channel disabled, sessions must be resolved manually")
	return nil
}

func (c *disabledChannel) Stop(ctx context.Context) error { return nil }

func (c *disabledChannel) HandlePush(ctx context.Context, payload []byte) error {
	return ErrChannelDisabled
}

func (c *disabledChannel) ManageWebhook(ctx context.Context, action string) (map[string]any, error) {
	return nil, ErrChannelDisabled
}

// manageWebhook is shared by both live modes.
func manageWebhook(bot *Bot, action string) (map[string]any, error) {
	switch action {
	case ActionSet:
		return bot.registerWebhook()
	case ActionInfo:
		return bot.webhookInfo()
	case ActionDelete:
		return bot.deleteWebhook()
	default:
		return nil, ErrUnknownAction
	}
}
