package service

import (
	"context"
	"sort"
	"strings"

	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// categoryRoleKeywords maps category-name fragments to the specialist role
// that handles them. Matching is case-insensitive substring matching on the
// category name.
var categoryRoleKeywords = []struct {
	keyword string
	role    domain.StaffRole
}{
	{"electric", domain.RoleElectrician},
	{"plumb", domain.RolePlumber},
	{"water", domain.RolePlumber},
	{"clean", domain.RoleCleaner},
	{"pest", domain.RoleCleaner},
	{"garden", domain.RoleGardener},
	{"landscap", domain.RoleGardener},
	{"security", domain.RoleSecurityHead},
}

// roleSpecificity orders candidates when workloads tie: specialists first,
// then the maintenance supervisor, then facility managers.
var roleSpecificity = map[domain.StaffRole]int{
	domain.RoleElectrician:           0,
	domain.RolePlumber:               0,
	domain.RoleCleaner:               0,
	domain.RoleGardener:              0,
	domain.RoleSecurityHead:          0,
	domain.RoleMaintenanceSupervisor: 1,
	domain.RoleFacilityManager:       2,
}

// Candidate is a staff member eligible for assignment, annotated with their
// current open workload.
type Candidate struct {
	Staff    domain.StaffProfile
	Workload int
}

// MatcherService computes the set of staff suitable for a request's category
// and ranks them by availability.
type MatcherService struct {
	store repository.TxStore
}

// NewMatcherService builds the matcher.
func NewMatcherService(store repository.TxStore) *MatcherService {
	return &MatcherService{store: store}
}

// RolesForCategory resolves the roles that may handle a category. Categories
// matching no specialist keyword fall back to facility managers alone;
// matched categories additionally include the facility manager and the
// maintenance supervisor as generalist fallbacks.
func RolesForCategory(category *domain.MaintenanceCategory) []domain.StaffRole {
	if category == nil {
		return []domain.StaffRole{domain.RoleFacilityManager}
	}
	name := strings.ToLower(category.Name)

	var specialists []domain.StaffRole
	seen := map[domain.StaffRole]bool{}
	for _, kw := range categoryRoleKeywords {
		if strings.Contains(name, kw.keyword) && !seen[kw.role] {
			specialists = append(specialists, kw.role)
			seen[kw.role] = true
		}
	}
	if len(specialists) == 0 {
		return []domain.StaffRole{domain.RoleFacilityManager}
	}
	roles := []domain.StaffRole{domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor}
	return append(roles, specialists...)
}

// FindCandidates returns active staff suitable for the category, ordered by
// open workload ascending, then role specificity, then staff id for a stable
// tiebreak. Staff with the access-all-maintenance flag are always candidates
// regardless of role.
func (s *MatcherService) FindCandidates(ctx context.Context, category *domain.MaintenanceCategory) ([]Candidate, error) {
	return s.findCandidatesIn(ctx, s.store, category)
}

func (s *MatcherService) findCandidatesIn(ctx context.Context, store repository.Store, category *domain.MaintenanceCategory) ([]Candidate, error) {
	active := true
	byRole, err := store.Staff().List(ctx, repository.StaffFilter{
		Roles:  RolesForCategory(category),
		Active: &active,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	accessAll := true
	withAccess, err := store.Staff().List(ctx, repository.StaffFilter{
		AccessAll: &accessAll,
		Active:    &active,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	merged := make(map[string]domain.StaffProfile, len(byRole)+len(withAccess))
	for _, staff := range byRole {
		merged[staff.ID] = staff
	}
	for _, staff := range withAccess {
		merged[staff.ID] = staff
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	workloads, err := store.Requests().OpenCountsByAssignees(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	candidates := make([]Candidate, 0, len(merged))
	for _, staff := range merged {
		candidates = append(candidates, Candidate{Staff: staff, Workload: workloads[staff.ID]})
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Workload != b.Workload {
			return a.Workload < b.Workload
		}
		if sa, sb := specificity(a.Staff.Role), specificity(b.Staff.Role); sa != sb {
			return sa < sb
		}
		return a.Staff.ID < b.Staff.ID
	})
	return candidates, nil
}

// IsCandidate reports whether the staff member appears in the candidate set
// for the category.
func (s *MatcherService) IsCandidate(ctx context.Context, category *domain.MaintenanceCategory, staffID string) (bool, error) {
	candidates, err := s.FindCandidates(ctx, category)
	if err != nil {
		return false, err
	}
	for _, c := range candidates {
		if c.Staff.ID == staffID {
			return true, nil
		}
	}
	return false, nil
}

func specificity(role domain.StaffRole) int {
	if rank, ok := roleSpecificity[role]; ok {
		return rank
	}
	return 3
}
