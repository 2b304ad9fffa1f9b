package repository

import (
	"context"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// AssignmentRepository stores append-only assignment records.
type AssignmentRepository interface {
	Create(ctx context.Context, record *domain.AssignmentRecord) error
	ListByRequest(ctx context.Context, requestID string) ([]domain.AssignmentRecord, error)
}

type assignmentRepository struct {
	db Querier
}

// NewAssignmentRepository builds the repository.
func NewAssignmentRepository(db Querier) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, record *domain.AssignmentRecord) error {
	const query = `
        INSERT INTO assignment_records (request_id, staff_id, assigned_by_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		record.RequestID,
		record.StaffID,
		record.AssignedByID,
	).Scan(&record.ID, &record.CreatedAt)
}

func (r *assignmentRepository) ListByRequest(ctx context.Context, requestID string) ([]domain.AssignmentRecord, error) {
	const query = `
        SELECT id, request_id, staff_id, assigned_by_id, created_at
        FROM assignment_records WHERE request_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRecord
	for rows.Next() {
		var record domain.AssignmentRecord
		if err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.StaffID,
			&record.AssignedByID,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	return result, rows.Err()
}
