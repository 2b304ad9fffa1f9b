package repository

import (
	"context"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// AuditRepository stores append-only audit entries. Entries are never
// updated or deleted by the engine.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	db Querier
}

// NewAuditRepository builds the repository.
func NewAuditRepository(db Querier) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (request_id, actor_type, actor_id, field, old_value, new_value, note)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.RequestID,
		entry.ActorType,
		entry.ActorID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Note,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditRepository) ListByRequest(ctx context.Context, requestID string, limit, offset int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, request_id, actor_type, actor_id, field, old_value, new_value, note, created_at
        FROM audit_entries WHERE request_id=$1 ORDER BY created_at ASC, id ASC
        LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ActorType,
			&entry.ActorID,
			&entry.Field,
			&entry.OldValue,
			&entry.NewValue,
			&entry.Note,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
