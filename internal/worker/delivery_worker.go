// Package worker holds the background loops: notification delivery,
// escalation scanning and the outbox relay.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/config"
	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/notify"
	"github.com/spec-kit/estate-ops/internal/repository"
)

// DeliveryWorker drains due notification tasks and pushes them through the
// channel senders. Attempts are bounded: each failure doubles the retry
// delay, and a task that exhausts its attempts is parked for manual review
// rather than retried forever.
type DeliveryWorker struct {
	store  repository.TxStore
	dir    *directory.Service
	email  notify.EmailSender
	sms    notify.SMSSender
	inbox  notify.InboxWriter
	logger *zap.Logger
	cfg    config.DeliveryConfig
	now    func() time.Time
}

// NewDeliveryWorker builds the worker.
func NewDeliveryWorker(
	store repository.TxStore,
	dir *directory.Service,
	email notify.EmailSender,
	sms notify.SMSSender,
	inbox notify.InboxWriter,
	logger *zap.Logger,
	cfg config.DeliveryConfig,
) *DeliveryWorker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBaseSeconds <= 0 {
		cfg.BackoffBaseSeconds = 60
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 5
	}
	return &DeliveryWorker{
		store:  store,
		dir:    dir,
		email:  email,
		sms:    sms,
		inbox:  inbox,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run polls for due tasks until the context is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.ProcessDue(ctx); err != nil {
				w.logger.Error("delivery pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessDue attempts every task due at this instant and returns how many
// were delivered. A failing task never blocks the rest of the batch.
func (w *DeliveryWorker) ProcessDue(ctx context.Context) (int, error) {
	now := w.now().UTC()
	tasks, err := w.store.Notifications().ListDue(ctx, now, w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, task := range tasks {
		if err := w.attempt(ctx, task); err != nil {
			w.recordFailure(ctx, task, err)
			continue
		}
		if err := w.store.Notifications().MarkSent(ctx, task.ID, w.now().UTC()); err != nil {
			w.logger.Warn("mark sent failed",
				zap.String("task_id", task.ID), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (w *DeliveryWorker) attempt(ctx context.Context, task domain.NotificationTask) error {
	attemptCtx := ctx
	if timeout := w.cfg.AttemptTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch task.Channel {
	case domain.ChannelInApp:
		return w.inbox.WriteInbox(attemptCtx, task.RecipientType, task.RecipientID, task)

	case domain.ChannelEmail:
		address, _, err := w.contact(attemptCtx, task)
		if err != nil {
			return err
		}
		if address == "" {
			return fmt.Errorf("recipient %s has no email address", task.RecipientID)
		}
		return w.email.SendEmail(attemptCtx, notify.EmailMessage{
			To:      address,
			Subject: task.Title,
			Body:    task.Message,
			TaskID:  task.ID,
		})

	case domain.ChannelSMS:
		_, phone, err := w.contact(attemptCtx, task)
		if err != nil {
			return err
		}
		if phone == "" {
			return fmt.Errorf("recipient %s has no phone number", task.RecipientID)
		}
		return w.sms.SendSMS(attemptCtx, notify.SMSMessage{
			To:     phone,
			Body:   task.Message,
			TaskID: task.ID,
		})

	default:
		return fmt.Errorf("unknown channel %q", task.Channel)
	}
}

func (w *DeliveryWorker) contact(ctx context.Context, task domain.NotificationTask) (email, phone string, err error) {
	switch task.RecipientType {
	case domain.SubjectTypeResident:
		resident, err := w.dir.ResolveResident(ctx, task.RecipientID)
		if err != nil {
			return "", "", err
		}
		return resident.Email, resident.Phone, nil
	case domain.SubjectTypeStaff:
		staff, err := w.dir.ResolveStaff(ctx, task.RecipientID)
		if err != nil {
			return "", "", err
		}
		return staff.Email, staff.Phone, nil
	default:
		return "", "", fmt.Errorf("unknown recipient type %q", task.RecipientType)
	}
}

func (w *DeliveryWorker) recordFailure(ctx context.Context, task domain.NotificationTask, attemptErr error) {
	attempts := task.AttemptCount + 1
	status := domain.NotificationFailed
	next := w.now().UTC().Add(w.backoff(attempts))
	if attempts >= w.cfg.MaxAttempts {
		status = domain.NotificationExhausted
		next = w.now().UTC()
	}

	if err := w.store.Notifications().MarkAttemptFailed(ctx, task.ID, attempts, status, next, attemptErr.Error()); err != nil {
		w.logger.Warn("mark attempt failed errored",
			zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	w.logger.Warn("notification attempt failed",
		zap.String("task_id", task.ID),
		zap.String("channel", string(task.Channel)),
		zap.Int("attempts", attempts),
		zap.String("status", string(status)),
		zap.Error(attemptErr))
}

// backoff doubles per attempt: base after the first failure, 2x base after
// the second, and so on.
func (w *DeliveryWorker) backoff(attempts int) time.Duration {
	delay := w.cfg.BackoffBase()
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
