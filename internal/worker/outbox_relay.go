package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
)

// OutboxRelay republishes outbox records whose subscribers never confirmed
// them, closing the crash window between a committed transaction and its
// synchronous fan-out. Together with the outbox write this gives every event
// at-least-once delivery; subscribers tolerate duplicates.
type OutboxRelay struct {
	store      repository.TxStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.OutboxConfig
	now        func() time.Time
}

// NewOutboxRelay builds the relay.
func NewOutboxRelay(
	store repository.TxStore,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	cfg config.OutboxConfig,
) *OutboxRelay {
	if cfg.IntervalSeconds <= 0 {
		cfg.IntervalSeconds = 30
	}
	return &OutboxRelay{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run relays on the configured interval until the context is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("outbox relay pass failed", zap.Error(err))
			}
		}
	}
}

// RelayOnce republishes one batch of unconfirmed records and returns how many
// it replayed. Records younger than the minimum age are left alone so the
// synchronous path has time to confirm them first.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	cutoff := r.now().UTC().Add(-r.cfg.MinAge())
	records, err := r.store.Outbox().ListUnprocessed(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, record := range records {
		event, err := record.Decode()
		if err != nil {
			r.logger.Warn("undecodable outbox record",
				zap.String("outbox_id", record.ID), zap.Error(err))
			continue
		}
		if err := r.dispatcher.Publish(ctx, event); err != nil {
			r.logger.Warn("outbox republish failed",
				zap.String("outbox_id", record.ID), zap.Error(err))
			continue
		}
		replayed++
	}
	if replayed > 0 {
		r.logger.Info("outbox records replayed", zap.Int("count", replayed))
	}
	return replayed, nil
}
