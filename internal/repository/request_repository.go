package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// RequestFilter captures listing parameters for maintenance requests.
type RequestFilter struct {
	ResidentID *string
	AssigneeID *string
	CategoryID *string
	Statuses   []domain.RequestStatus
	Priorities []domain.Priority
	Limit      int
	Offset     int
}

// RequestRepository encapsulates maintenance request persistence.
type RequestRepository interface {
	Create(ctx context.Context, request *domain.MaintenanceRequest) error
	Update(ctx context.Context, request *domain.MaintenanceRequest) error
	GetByID(ctx context.Context, id string) (*domain.MaintenanceRequest, error)
	// GetByIDForUpdate takes a row lock so concurrent transitions on the same
	// request serialize; only meaningful inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.MaintenanceRequest, error)
	GetByTicketNumber(ctx context.Context, ticketNumber string) (*domain.MaintenanceRequest, error)
	ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.MaintenanceRequest, error)
	CountOpenByAssignee(ctx context.Context, staffID string) (int, error)
	OpenCountsByAssignees(ctx context.Context, staffIDs []string) (map[string]int, error)
	CountResolvedSince(ctx context.Context, staffID string, since time.Time) (int, error)
	// ListOverdue returns open (assigned/in_progress) requests whose deadline
	// has passed at the given instant.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.MaintenanceRequest, error)
	// MarkEscalated stamps last_escalated_at only when the previous stamp is
	// absent or older than notBefore; reports whether the stamp was taken.
	MarkEscalated(ctx context.Context, id string, at, notBefore time.Time) (bool, error)
	// NextTicketNumber returns the next monotonic sequence value for a year.
	NextTicketNumber(ctx context.Context, year int) (int, error)
}

type requestRepository struct {
	db Querier
}

// NewRequestRepository instantiates the repository.
func NewRequestRepository(db Querier) RequestRepository {
	return &requestRepository{db: db}
}

const requestColumns = `id, ticket_number, resident_id, category_id, title, description, location,
               priority, status, assignee_id, assigned_by_id, estimated_cost, actual_cost,
               estimated_completion, acknowledged_at, assigned_at, resolved_at, closed_at,
               last_escalated_at, resident_rating, resident_feedback, created_at, updated_at`

func (r *requestRepository) Create(ctx context.Context, request *domain.MaintenanceRequest) error {
	const query = `
        INSERT INTO maintenance_requests (ticket_number, resident_id, category_id, title, description,
            location, priority, status, assignee_id, assigned_by_id, estimated_cost, actual_cost,
            estimated_completion)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		request.TicketNumber,
		request.ResidentID,
		request.CategoryID,
		request.Title,
		request.Description,
		request.Location,
		request.Priority,
		request.Status,
		request.AssigneeID,
		request.AssignedByID,
		request.EstimatedCost,
		request.ActualCost,
		request.EstimatedCompletion,
	).Scan(&request.ID, &request.CreatedAt, &request.UpdatedAt)
}

func (r *requestRepository) Update(ctx context.Context, request *domain.MaintenanceRequest) error {
	const query = `
        UPDATE maintenance_requests SET priority=$1, status=$2, assignee_id=$3, assigned_by_id=$4,
            estimated_cost=$5, actual_cost=$6, estimated_completion=$7, acknowledged_at=$8,
            assigned_at=$9, resolved_at=$10, closed_at=$11, resident_rating=$12,
            resident_feedback=$13, updated_at=NOW()
        WHERE id=$14`
	cmd, err := r.db.Exec(ctx, query,
		request.Priority,
		request.Status,
		request.AssigneeID,
		request.AssignedByID,
		request.EstimatedCost,
		request.ActualCost,
		request.EstimatedCompletion,
		request.AcknowledgedAt,
		request.AssignedAt,
		request.ResolvedAt,
		request.ClosedAt,
		request.ResidentRating,
		request.ResidentFeedback,
		request.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *requestRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.MaintenanceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *requestRepository) GetByTicketNumber(ctx context.Context, ticketNumber string) (*domain.MaintenanceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM maintenance_requests WHERE ticket_number=$1`
	return r.fetchSingle(ctx, query, ticketNumber)
}

func (r *requestRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.MaintenanceRequest, error) {
	var request domain.MaintenanceRequest
	if err := scanRequest(r.db.QueryRow(ctx, query, arg), &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *requestRepository) ListWithFilter(ctx context.Context, filter RequestFilter) ([]domain.MaintenanceRequest, error) {
	base := `SELECT ` + requestColumns + ` FROM maintenance_requests`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ResidentID != nil {
		args = append(args, *filter.ResidentID)
		clauses = append(clauses, fmt.Sprintf("resident_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY priority DESC, created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) CountOpenByAssignee(ctx context.Context, staffID string) (int, error) {
	const query = `
        SELECT COUNT(*) FROM maintenance_requests
        WHERE assignee_id=$1 AND status IN ('assigned','in_progress')`
	var count int
	if err := r.db.QueryRow(ctx, query, staffID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *requestRepository) OpenCountsByAssignees(ctx context.Context, staffIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(staffIDs))
	if len(staffIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assignee_id, COUNT(*) FROM maintenance_requests
        WHERE assignee_id = ANY($1) AND status IN ('assigned','in_progress')
        GROUP BY assignee_id`
	rows, err := r.db.Query(ctx, query, staffIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var count int
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func (r *requestRepository) CountResolvedSince(ctx context.Context, staffID string, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*) FROM maintenance_requests
        WHERE assignee_id=$1 AND resolved_at IS NOT NULL AND resolved_at >= $2`
	var count int
	if err := r.db.QueryRow(ctx, query, staffID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *requestRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.MaintenanceRequest, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`
        SELECT %s FROM maintenance_requests r
        JOIN maintenance_categories c ON c.id = r.category_id
        WHERE r.status IN ('assigned','in_progress')
          AND COALESCE(r.estimated_completion,
                       r.created_at + make_interval(hours => c.estimated_resolution_hours)) <= $1
        ORDER BY r.created_at ASC
        LIMIT %d`, prefixedRequestColumns("r"), limit)
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (r *requestRepository) MarkEscalated(ctx context.Context, id string, at, notBefore time.Time) (bool, error) {
	const query = `
        UPDATE maintenance_requests SET last_escalated_at=$2, updated_at=NOW()
        WHERE id=$1 AND (last_escalated_at IS NULL OR last_escalated_at < $3)`
	cmd, err := r.db.Exec(ctx, query, id, at, notBefore)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *requestRepository) NextTicketNumber(ctx context.Context, year int) (int, error) {
	const query = `
        INSERT INTO ticket_sequences (year, last_number) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_number = ticket_sequences.last_number + 1
        RETURNING last_number`
	var number int
	if err := r.db.QueryRow(ctx, query, year).Scan(&number); err != nil {
		return 0, err
	}
	return number, nil
}

func prefixedRequestColumns(alias string) string {
	cols := strings.Split(requestColumns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

func scanRequest(row pgx.Row, request *domain.MaintenanceRequest) error {
	return row.Scan(
		&request.ID,
		&request.TicketNumber,
		&request.ResidentID,
		&request.CategoryID,
		&request.Title,
		&request.Description,
		&request.Location,
		&request.Priority,
		&request.Status,
		&request.AssigneeID,
		&request.AssignedByID,
		&request.EstimatedCost,
		&request.ActualCost,
		&request.EstimatedCompletion,
		&request.AcknowledgedAt,
		&request.AssignedAt,
		&request.ResolvedAt,
		&request.ClosedAt,
		&request.LastEscalatedAt,
		&request.ResidentRating,
		&request.ResidentFeedback,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
}

func scanRequests(rows pgx.Rows) ([]domain.MaintenanceRequest, error) {
	var result []domain.MaintenanceRequest
	for rows.Next() {
		var request domain.MaintenanceRequest
		if err := scanRequest(rows, &request); err != nil {
			return nil, err
		}
		result = append(result, request)
	}
	return result, rows.Err()
}
