package repository

import (
	"context"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// CategoryRepository stores maintenance category lookups.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.MaintenanceCategory) error
	GetByID(ctx context.Context, id string) (*domain.MaintenanceCategory, error)
	List(ctx context.Context) ([]domain.MaintenanceCategory, error)
}

type categoryRepository struct {
	db Querier
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(db Querier) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.MaintenanceCategory) error {
	const query = `
        INSERT INTO maintenance_categories (name, priority_ceiling, estimated_resolution_hours)
        VALUES ($1,$2,$3)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		category.Name,
		category.PriorityCeiling,
		category.EstimatedResolutionHours,
	).Scan(&category.ID)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.MaintenanceCategory, error) {
	const query = `
        SELECT id, name, priority_ceiling, estimated_resolution_hours
        FROM maintenance_categories WHERE id=$1`
	var category domain.MaintenanceCategory
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.PriorityCeiling,
		&category.EstimatedResolutionHours,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.MaintenanceCategory, error) {
	const query = `
        SELECT id, name, priority_ceiling, estimated_resolution_hours
        FROM maintenance_categories ORDER BY priority_ceiling DESC, name ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaintenanceCategory
	for rows.Next() {
		var category domain.MaintenanceCategory
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.PriorityCeiling,
			&category.EstimatedResolutionHours,
		); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}
