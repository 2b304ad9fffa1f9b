package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
)

var (
	// errAlreadyEscalated signals another scanner beat us to the stamp.
	errAlreadyEscalated = errors.New("already escalated this interval")
	// errNoLongerOverdue signals the request left the open set between the
	// scan snapshot and the transaction.
	errNoLongerOverdue = errors.New("request settled since the scan")
)

// EscalationWorker periodically sweeps open requests whose resolution
// deadline has passed and emits one overdue event per request per interval.
// The idempotency guard is the conditional last_escalated_at stamp: however
// many scanner instances run, only the one that wins the stamp emits.
type EscalationWorker struct {
	store      repository.TxStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.EscalationConfig
	now        func() time.Time
}

// NewEscalationWorker builds the worker.
func NewEscalationWorker(
	store repository.TxStore,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	cfg config.EscalationConfig,
) *EscalationWorker {
	if cfg.IntervalMinutes <= 0 {
		cfg.IntervalMinutes = 60
	}
	return &EscalationWorker{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (w *EscalationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ScanOnce(ctx); err != nil {
				w.logger.Error("escalation sweep failed", zap.Error(err))
			}
		}
	}
}

// ScanOnce performs a single sweep and returns how many requests were
// escalated. One request failing never blocks the rest.
func (w *EscalationWorker) ScanOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	overdue, err := w.store.Requests().ListOverdue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range overdue {
		request := overdue[i]
		if err := w.escalate(ctx, &request, now); err != nil {
			if errors.Is(err, errAlreadyEscalated) || errors.Is(err, errNoLongerOverdue) {
				continue
			}
			w.logger.Warn("escalation failed",
				zap.String("request_id", request.ID),
				zap.String("ticket_number", request.TicketNumber),
				zap.Error(err))
			continue
		}
		escalated++
	}
	return escalated, nil
}

func (w *EscalationWorker) escalate(ctx context.Context, request *domain.MaintenanceRequest, now time.Time) error {
	category, err := w.store.Categories().GetByID(ctx, request.CategoryID)
	if err != nil {
		return err
	}

	var event events.Event
	err = w.store.InTx(ctx, func(store repository.Store) error {
		// The scan snapshot is stale by the time we get here; re-read under
		// the row lock so a request resolved in the meantime is not flagged.
		current, err := store.Requests().GetByIDForUpdate(ctx, request.ID)
		if err != nil {
			return err
		}
		if !current.Status.Open() {
			return errNoLongerOverdue
		}

		stamped, err := store.Requests().MarkEscalated(ctx, current.ID, now, now.Add(-w.cfg.Interval()))
		if err != nil {
			return err
		}
		if !stamped {
			return errAlreadyEscalated
		}

		event = events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRequestOverdue,
			RequestID: current.ID,
			Actor:     events.SystemActor(),
			Timestamp: now,
			Payload: events.RequestOverduePayload{
				TicketNumber: current.TicketNumber,
				ResidentID:   current.ResidentID,
				AssigneeID:   current.AssigneeID,
				Priority:     current.Priority,
				Status:       current.Status,
				DeadlineAt:   current.DeadlineAt(category),
			},
		}

		entry := &domain.AuditEntry{
			RequestID: current.ID,
			ActorType: domain.SubjectTypeSystem,
			Field:     "escalation",
			OldValue:  map[string]any{},
			NewValue: map[string]any{
				"deadline_at": current.DeadlineAt(category),
				"status":      current.Status,
			},
			Note:      "resolution deadline passed",
			CreatedAt: now,
		}
		if err := store.Audit().Create(ctx, entry); err != nil {
			return err
		}
		return store.Outbox().Create(ctx, event)
	})
	if err != nil {
		return err
	}

	w.logger.Info("request escalated",
		zap.String("request_id", request.ID),
		zap.String("ticket_number", request.TicketNumber),
		zap.Time("deadline_at", request.DeadlineAt(category)))
	w.dispatcher.Publish(ctx, event)
	return nil
}
