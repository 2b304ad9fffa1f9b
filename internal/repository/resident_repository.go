package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// ResidentRepository handles persistence for resident accounts.
type ResidentRepository interface {
	Create(ctx context.Context, resident *domain.Resident) error
	Update(ctx context.Context, resident *domain.Resident) error
	GetByID(ctx context.Context, id string) (*domain.Resident, error)
	GetByEmail(ctx context.Context, email string) (*domain.Resident, error)
}

type residentRepository struct {
	db Querier
}

// NewResidentRepository instantiates the repository.
func NewResidentRepository(db Querier) ResidentRepository {
	return &residentRepository{db: db}
}

const residentColumns = `id, name, email, phone, password_hash, flat_number, block,
               is_committee_member, active_flag, email_notifications, sms_notifications,
               urgent_only, created_at, updated_at`

func (r *residentRepository) Create(ctx context.Context, resident *domain.Resident) error {
	const query = `
        INSERT INTO residents (name, email, phone, password_hash, flat_number, block,
            is_committee_member, active_flag, email_notifications, sms_notifications, urgent_only)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		resident.Name,
		resident.Email,
		resident.Phone,
		resident.PasswordHash,
		resident.FlatNumber,
		resident.Block,
		resident.IsCommitteeMember,
		resident.Active,
		resident.EmailNotifications,
		resident.SMSNotifications,
		resident.UrgentOnly,
	).Scan(&resident.ID, &resident.CreatedAt, &resident.UpdatedAt)
}

func (r *residentRepository) Update(ctx context.Context, resident *domain.Resident) error {
	const query = `
        UPDATE residents SET name=$1, email=$2, phone=$3, password_hash=$4, flat_number=$5,
            block=$6, is_committee_member=$7, active_flag=$8, email_notifications=$9,
            sms_notifications=$10, urgent_only=$11, updated_at=NOW()
        WHERE id=$12`
	cmd, err := r.db.Exec(ctx, query,
		resident.Name,
		resident.Email,
		resident.Phone,
		resident.PasswordHash,
		resident.FlatNumber,
		resident.Block,
		resident.IsCommitteeMember,
		resident.Active,
		resident.EmailNotifications,
		resident.SMSNotifications,
		resident.UrgentOnly,
		resident.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *residentRepository) GetByID(ctx context.Context, id string) (*domain.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *residentRepository) GetByEmail(ctx context.Context, email string) (*domain.Resident, error) {
	query := `SELECT ` + residentColumns + ` FROM residents WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *residentRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Resident, error) {
	var resident domain.Resident
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&resident.ID,
		&resident.Name,
		&resident.Email,
		&resident.Phone,
		&resident.PasswordHash,
		&resident.FlatNumber,
		&resident.Block,
		&resident.IsCommitteeMember,
		&resident.Active,
		&resident.EmailNotifications,
		&resident.SMSNotifications,
		&resident.UrgentOnly,
		&resident.CreatedAt,
		&resident.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &resident, nil
}
