// internal/service/subscription/sweeper.go
package subscription

import (
	"context"
	"time"

	"tenantcore-service/internal/domain/subscription"

	"go.uber.org/zap"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 100
)

// ExpirationSweeper periodically expires live subscriptions whose period
// or trial has ended. One subscription failing to expire never blocks the
// rest of the batch; expiration is idempotent, so anything missed is
// picked up on the next sweep.
type ExpirationSweeper struct {
	service  *SubscriptionService
	store    SubscriptionStore
	logger   *zap.Logger
	interval time.Duration
	batch    int
	done     chan struct{}
}

func NewExpirationSweeper(service *SubscriptionService, store SubscriptionStore, logger *zap.Logger, interval time.Duration, batch int) *ExpirationSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &ExpirationSweeper{
		service:  service,
		store:    store,
		logger:   logger,
		interval: interval,
		batch:    batch,
		done:     make(chan struct{}),
	}
}

// Run loops until the context is cancelled. An in-flight sweep finishes
// before Run returns; each expiration is a single atomic write, so
// stopping never leaves a subscription half-expired.
func (w *ExpirationSweeper) Run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiration sweeper started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiration sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Wait blocks until Run has returned.
func (w *ExpirationSweeper) Wait() {
	<-w.done
}

// Sweep runs one pass: expired billing periods first, then ended trials.
func (w *ExpirationSweeper) Sweep(ctx context.Context) {
	now := time.Now()

	expiring, err := w.store.FindExpiringBefore(ctx, now, w.batch)
	if err != nil {
		w.logger.Error("failed to query expiring subscriptions", zap.Error(err))
	} else {
		w.expireBatch(ctx, expiring)
	}

	trials, err := w.store.FindTrialEndingBefore(ctx, now, w.batch)
	if err != nil {
		w.logger.Error("failed to query ending trials", zap.Error(err))
	} else {
		w.expireBatch(ctx, trials)
	}
}

func (w *ExpirationSweeper) expireBatch(ctx context.Context, subs []subscription.Subscription) {
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.service.ExpireSubscription(ctx, sub.ID); err != nil {
			// Logged and left for the next sweep; expiration is idempotent.
			w.logger.Warn("failed to expire subscription",
				zap.Int64("subscription_id", sub.ID),
				zap.Int64("organization_id", sub.OrganizationID),
				zap.Error(err),
			)
			continue
		}
	}
}
