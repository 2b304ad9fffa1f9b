package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// NotificationRepository stores delivery tasks. Only the delivery status,
// attempt bookkeeping and last error are ever mutated.
type NotificationRepository interface {
	Create(ctx context.Context, task *domain.NotificationTask) error
	GetByID(ctx context.Context, id string) (*domain.NotificationTask, error)
	// ListDue returns tasks eligible for a delivery attempt at the given
	// instant: pending or failed, with next_attempt_at in the past.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationTask, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkAttemptFailed records a failed attempt and either schedules a retry
	// or, when attempts are exhausted, parks the task for manual review.
	MarkAttemptFailed(ctx context.Context, id string, attemptCount int, status domain.NotificationStatus, nextAttemptAt time.Time, lastError string) error
	ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.NotificationTask, error)
}

type notificationRepository struct {
	db Querier
}

// NewNotificationRepository builds the repository.
func NewNotificationRepository(db Querier) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, recipient_type, recipient_id, channel, template_key, title,
               message, payload, status, attempt_count, next_attempt_at, last_error,
               created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, task *domain.NotificationTask) error {
	const query = `
        INSERT INTO notification_tasks (recipient_type, recipient_id, channel, template_key,
            title, message, payload, status, attempt_count, next_attempt_at, last_error)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		task.RecipientType,
		task.RecipientID,
		task.Channel,
		task.TemplateKey,
		task.Title,
		task.Message,
		task.Payload,
		task.Status,
		task.AttemptCount,
		task.NextAttemptAt,
		task.LastError,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.NotificationTask, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_tasks WHERE id=$1`
	var task domain.NotificationTask
	if err := scanNotification(r.db.QueryRow(ctx, query, id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *notificationRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationTask, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT ` + notificationColumns + `
        FROM notification_tasks
        WHERE status IN ('pending','failed') AND next_attempt_at <= $1
        ORDER BY next_attempt_at ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (r *notificationRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	const query = `
        UPDATE notification_tasks
        SET status='sent', attempt_count=attempt_count+1, last_error='', updated_at=$2
        WHERE id=$1 AND status IN ('pending','failed')`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAttemptFailed(ctx context.Context, id string, attemptCount int, status domain.NotificationStatus, nextAttemptAt time.Time, lastError string) error {
	const query = `
        UPDATE notification_tasks
        SET status=$2, attempt_count=$3, next_attempt_at=$4, last_error=$5, updated_at=NOW()
        WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id, status, attemptCount, nextAttemptAt, lastError)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) ListByStatus(ctx context.Context, status domain.NotificationStatus, limit int) ([]domain.NotificationTask, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT ` + notificationColumns + `
        FROM notification_tasks WHERE status=$1 ORDER BY updated_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func scanNotification(row pgx.Row, task *domain.NotificationTask) error {
	return row.Scan(
		&task.ID,
		&task.RecipientType,
		&task.RecipientID,
		&task.Channel,
		&task.TemplateKey,
		&task.Title,
		&task.Message,
		&task.Payload,
		&task.Status,
		&task.AttemptCount,
		&task.NextAttemptAt,
		&task.LastError,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
}

func scanNotifications(rows pgx.Rows) ([]domain.NotificationTask, error) {
	var result []domain.NotificationTask
	for rows.Next() {
		var task domain.NotificationTask
		if err := scanNotification(rows, &task); err != nil {
			return nil, err
		}
		result = append(result, task)
	}
	return result, rows.Err()
}
