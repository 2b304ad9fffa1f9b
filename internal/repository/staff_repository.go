package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// StaffRepository handles persistence for staff profiles.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffProfile) error
	Update(ctx context.Context, staff *domain.StaffProfile) error
	GetByID(ctx context.Context, id string) (*domain.StaffProfile, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffProfile, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffProfile, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Roles     []domain.StaffRole
	AccessAll *bool
	Active    *bool
	Limit     int
	Offset    int
}

type staffRepository struct {
	db Querier
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(db Querier) StaffRepository {
	return &staffRepository{db: db}
}

const staffColumns = `id, employee_id, name, email, phone, password_hash, role,
               can_access_all_maintenance, can_assign_requests, can_close_requests,
               active_flag, reporting_to_id, email_notifications, sms_notifications,
               urgent_only, created_at, updated_at`

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffProfile) error {
	const query = `
        INSERT INTO staff_profiles (employee_id, name, email, phone, password_hash, role,
            can_access_all_maintenance, can_assign_requests, can_close_requests, active_flag,
            reporting_to_id, email_notifications, sms_notifications, urgent_only)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		staff.EmployeeID,
		staff.Name,
		staff.Email,
		staff.Phone,
		staff.PasswordHash,
		staff.Role,
		staff.CanAccessAllMaintenance,
		staff.CanAssignRequests,
		staff.CanCloseRequests,
		staff.Active,
		staff.ReportingToID,
		staff.EmailNotifications,
		staff.SMSNotifications,
		staff.UrgentOnly,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.StaffProfile) error {
	const query = `
        UPDATE staff_profiles
        SET name=$1, email=$2, phone=$3, password_hash=$4, role=$5,
            can_access_all_maintenance=$6, can_assign_requests=$7, can_close_requests=$8,
            active_flag=$9, reporting_to_id=$10, email_notifications=$11,
            sms_notifications=$12, urgent_only=$13, updated_at=NOW()
        WHERE id=$14`
	cmd, err := r.db.Exec(ctx, query,
		staff.Name,
		staff.Email,
		staff.Phone,
		staff.PasswordHash,
		staff.Role,
		staff.CanAccessAllMaintenance,
		staff.CanAssignRequests,
		staff.CanCloseRequests,
		staff.Active,
		staff.ReportingToID,
		staff.EmailNotifications,
		staff.SMSNotifications,
		staff.UrgentOnly,
		staff.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffProfile, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_profiles WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffProfile, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_profiles WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *staffRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.StaffProfile, error) {
	var staff domain.StaffProfile
	if err := scanStaff(r.db.QueryRow(ctx, query, arg), &staff); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffProfile, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_profiles`
	args := []any{}
	clauses := []string{}

	if len(filter.Roles) > 0 {
		placeholders := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			args = append(args, role)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("role IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AccessAll != nil {
		args = append(args, *filter.AccessAll)
		clauses = append(clauses, fmt.Sprintf("can_access_all_maintenance=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY id ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffProfile
	for rows.Next() {
		var staff domain.StaffProfile
		if err := scanStaff(rows, &staff); err != nil {
			return nil, err
		}
		result = append(result, staff)
	}
	return result, rows.Err()
}

func scanStaff(row pgx.Row, staff *domain.StaffProfile) error {
	return row.Scan(
		&staff.ID,
		&staff.EmployeeID,
		&staff.Name,
		&staff.Email,
		&staff.Phone,
		&staff.PasswordHash,
		&staff.Role,
		&staff.CanAccessAllMaintenance,
		&staff.CanAssignRequests,
		&staff.CanCloseRequests,
		&staff.Active,
		&staff.ReportingToID,
		&staff.EmailNotifications,
		&staff.SMSNotifications,
		&staff.UrgentOnly,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	)
}
