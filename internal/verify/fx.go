package verify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/metrics"
	"github.com/smallbiznis/bookpay/internal/notify"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Sessions sessiondomain.Service
	Metrics  *metrics.Metrics `optional:"true"`
}

type Result struct {
	fx.Out

	Channel Channel
	Sender  notify.Sender
}

// New builds the verification channel for the configured mode. Missing
// credentials or a failed Telegram handshake degrade to a disabled channel
// and a no-op sender instead of aborting startup.
func New(p Params) Result {
	log := p.Log.Named("verify")

	if !p.Config.Bot.Enabled() {
		log.Warn("bot token or admin chat ID missing, verification channel disabled")
		return Result{Channel: &disabledChannel{log: log}, Sender: notify.NopSender{}}
	}

	bot, err := newBot(p.Config.Bot, log)
	if err != nil {
		log.Error("bot initialization failed, verification channel disabled", zap.Error(err))
		return Result{Channel: &disabledChannel{log: log}, Sender: notify.NopSender{}}
	}

	handler := NewHandler(log, p.Sessions, p.Config.Bot.AdminChatID, bot, p.Metrics)

	var ch Channel
	switch p.Config.Bot.Mode {
	case config.BotModeWebhook:
		ch = newWebhookChannel(bot, handler, log)
	default:
		ch = newLongPollChannel(bot, handler, log)
	}
	return Result{Channel: ch, Sender: bot}
}

func registerLifecycle(lc fx.Lifecycle, ch Channel, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting verification channel", zap.String("mode", ch.Mode()))
			return ch.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return ch.Stop(ctx)
		},
	})
}

var Module = fx.Module("verify",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)
