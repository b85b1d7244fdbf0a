package notify

import (
	"context"

	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/metrics"
	orderdomain "github.com/smallbiznis/bookpay/internal/order/domain"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Sender    Sender
	Reconcile *config.ReconcileConfigHolder
	Metrics   *metrics.Metrics `optional:"true"`
}

type Dispatcher struct {
	log       *zap.Logger
	sender    Sender
	reconcile *config.ReconcileConfigHolder
	metrics   *metrics.Metrics
}

func NewDispatcher(p Params) *Dispatcher {
	return &Dispatcher{
		log:       p.Log.Named("notify"),
		sender:    p.Sender,
		reconcile: p.Reconcile,
		metrics:   p.Metrics,
	}
}

// SessionCreated fires a detached alert for a freshly created session.
func (d *Dispatcher) SessionCreated(session *sessiondomain.PaymentSession) {
	if d == nil || session == nil {
		return
	}
	s := *session
	d.dispatch("session_created", func(ctx context.Context) error {
		return d.sender.SendSessionAlert(ctx, &s)
	})
}

// OrderMaterialized fires a detached alert for a freshly materialized order.
func (d *Dispatcher) OrderMaterialized(order *orderdomain.Order) {
	if d == nil || order == nil {
		return
	}
	o := *order
	d.dispatch("order_materialized", func(ctx context.Context) error {
		return d.sender.SendOrderAlert(ctx, &o)
	})
}

func (d *Dispatcher) dispatch(event string, send func(ctx context.Context) error) {
	timeout := d.reconcile.Get().NotifyTimeout()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			// Never propagated: the admin falls back to the open-sessions
			// list when the channel is unreachable.
			d.metrics.RecordNotification(event, "error")
			d.log.Warn("admin notification failed",
				zap.String("event", event),
				zap.Error(err),
			)
			return
		}
		d.metrics.RecordNotification(event, "sent")
	}()
}

var Module = fx.Module("notify",
	fx.Provide(NewDispatcher),
)
