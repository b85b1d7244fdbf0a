// Package sweeper expires overdue pending sessions in the background. Lazy
// expiry on read already keeps individual polls correct; the sweep keeps the
// store tidy for sessions nobody polls again.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/bookpay/internal/clock"
	"github.com/smallbiznis/bookpay/internal/config"
	"github.com/smallbiznis/bookpay/internal/metrics"
	sessiondomain "github.com/smallbiznis/bookpay/internal/session/domain"
)

const runTimeout = 30 * time.Second

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Reconcile *config.ReconcileConfigHolder
	Repo      sessiondomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Sweeper struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	reconcile *config.ReconcileConfigHolder
	repo      sessiondomain.Repository
	metrics   *metrics.Metrics
}

func New(p Params) *Sweeper {
	return &Sweeper{
		db:        p.DB,
		log:       p.Log.Named("sweeper"),
		clock:     p.Clock,
		reconcile: p.Reconcile,
		repo:      p.Repo,
		metrics:   p.Metrics,
	}
}

func (s *Sweeper) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.reconcile.Get().SweepInterval())
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The interval is hot-reloadable; pick up changes between runs.
			ticker.Reset(s.reconcile.Get().SweepInterval())
		}
	}
}

// RunOnce expires every overdue pending session in a single statement.
func (s *Sweeper) RunOnce(parentCtx context.Context) error {
	ctx, cancel := context.WithTimeout(parentCtx, runTimeout)
	defer cancel()

	expired, err := s.repo.ExpireAllOverdue(ctx, s.db, s.clock.Now())
	if err != nil {
		return err
	}
	if expired > 0 {
		for i := int64(0); i < expired; i++ {
			s.metrics.RecordTransition(string(sessiondomain.StatusExpired), "applied")
		}
		s.log.Info("expired overdue sessions", zap.Int64("count", expired))
	}
	return nil
}
