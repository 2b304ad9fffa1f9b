package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/events"
)

// OutboxRecord is the durable form of an emitted event, written in the same
// transaction as the state change it describes.
type OutboxRecord struct {
	ID          string
	EventType   events.EventType
	RequestID   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// Decode rebuilds the typed event from the stored JSON.
func (r OutboxRecord) Decode() (events.Event, error) {
	return events.DecodeEvent(r.Payload)
}

// OutboxRepository stores the durable event outbox.
type OutboxRepository interface {
	Create(ctx context.Context, event events.Event) error
	// ListUnprocessed returns events committed before the cutoff that no
	// subscriber has confirmed handling yet.
	ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]OutboxRecord, error)
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}

type outboxRepository struct {
	db Querier
}

// NewOutboxRepository builds the repository.
func NewOutboxRepository(db Querier) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Create(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO outbox_events (id, event_type, request_id, payload)
        VALUES ($1,$2,$3,$4)`
	_, err = r.db.Exec(ctx, query, event.ID, event.Type, event.RequestID, payload)
	return err
}

func (r *outboxRepository) ListUnprocessed(ctx context.Context, olderThan time.Time, limit int) ([]OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id, event_type, request_id, payload, created_at, processed_at
        FROM outbox_events
        WHERE processed_at IS NULL AND created_at <= $1
        ORDER BY created_at ASC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OutboxRecord
	for rows.Next() {
		var record OutboxRecord
		if err := rows.Scan(
			&record.ID,
			&record.EventType,
			&record.RequestID,
			&record.Payload,
			&record.CreatedAt,
			&record.ProcessedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE outbox_events SET processed_at=$2 WHERE id=$1 AND processed_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
