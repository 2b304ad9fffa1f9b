// Package directory is the lookup boundary for identity, role and permission
// facts about actors. It carries no lifecycle business logic.
package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// Capability names a permission the engine checks on staff.
type Capability string

const (
	CapabilityAccessAllMaintenance Capability = "access_all_maintenance"
	CapabilityAssignRequests       Capability = "assign_requests"
	CapabilityCloseRequests        Capability = "close_requests"
	CapabilityHandleMaintenance    Capability = "handle_maintenance"
)

// maxReportingDepth bounds the reporting-chain walk; real hierarchies are a
// handful of levels deep, anything past this is treated as a cycle.
const maxReportingDepth = 32

// Service resolves staff/resident facts for the lifecycle engine.
type Service struct {
	staff     repository.StaffRepository
	residents repository.ResidentRepository
}

// NewService builds the adapter over the directory repositories.
func NewService(staff repository.StaffRepository, residents repository.ResidentRepository) *Service {
	return &Service{staff: staff, residents: residents}
}

// ResolveStaff fetches a staff profile by id.
func (s *Service) ResolveStaff(ctx context.Context, id string) (*domain.StaffProfile, error) {
	staff, err := s.staff.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// ResolveResident fetches a resident by id.
func (s *Service) ResolveResident(ctx context.Context, id string) (*domain.Resident, error) {
	resident, err := s.residents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("resident", map[string]any{"resident_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return resident, nil
}

// ResolvePermission answers whether the staff member holds a capability.
func (s *Service) ResolvePermission(staff *domain.StaffProfile, capability Capability) bool {
	if staff == nil || !staff.Active {
		return false
	}
	switch capability {
	case CapabilityAccessAllMaintenance:
		return staff.CanAccessAllMaintenance
	case CapabilityAssignRequests:
		return staff.CanAssignRequests
	case CapabilityCloseRequests:
		return staff.CanCloseRequests
	case CapabilityHandleMaintenance:
		return staff.CanHandleMaintenance()
	default:
		return false
	}
}

// ActiveStaffWithRoles returns active staff holding any of the given roles.
func (s *Service) ActiveStaffWithRoles(ctx context.Context, roles ...domain.StaffRole) ([]domain.StaffProfile, error) {
	active := true
	return s.staff.List(ctx, repository.StaffFilter{Roles: roles, Active: &active})
}

// ActiveStaffWithAccessAll returns active staff carrying the access-all flag.
func (s *Service) ActiveStaffWithAccessAll(ctx context.Context) ([]domain.StaffProfile, error) {
	active := true
	accessAll := true
	return s.staff.List(ctx, repository.StaffFilter{AccessAll: &accessAll, Active: &active})
}

// SetReportingTo re-parents a staff member in the reporting tree. The chain
// is walked up to a bounded depth; a write that would introduce a cycle is
// rejected.
func (s *Service) SetReportingTo(ctx context.Context, staffID string, reportingToID *string) (*domain.StaffProfile, error) {
	staff, err := s.ResolveStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if reportingToID != nil {
		if *reportingToID == staffID {
			return nil, apperrors.NewValidationError("staff cannot report to themselves", nil)
		}
		if _, err := s.ResolveStaff(ctx, *reportingToID); err != nil {
			return nil, err
		}
		if err := s.checkReportingCycle(ctx, staffID, *reportingToID); err != nil {
			return nil, err
		}
	}
	staff.ReportingToID = reportingToID
	if err := s.staff.Update(ctx, staff); err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

func (s *Service) checkReportingCycle(ctx context.Context, staffID, candidateManagerID string) error {
	currentID := candidateManagerID
	for depth := 0; depth < maxReportingDepth; depth++ {
		manager, err := s.ResolveStaff(ctx, currentID)
		if err != nil {
			return err
		}
		if manager.ReportingToID == nil {
			return nil
		}
		if *manager.ReportingToID == staffID {
			return apperrors.NewValidationError("reporting assignment would create a cycle",
				map[string]any{"staff_id": staffID, "reporting_to": candidateManagerID})
		}
		currentID = *manager.ReportingToID
	}
	return apperrors.NewValidationError("reporting chain too deep",
		map[string]any{"staff_id": staffID, "reporting_to": candidateManagerID})
}
