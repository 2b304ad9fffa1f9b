package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/estate-ops/internal/domain"
)

func TestRolesForCategoryKeywords(t *testing.T) {
	cases := []struct {
		name  string
		roles []domain.StaffRole
	}{
		{"Electrical Repairs", []domain.StaffRole{
			domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor, domain.RoleElectrician}},
		{"Plumbing & Water Supply", []domain.StaffRole{
			domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor, domain.RolePlumber}},
		{"Cleaning and Pest Control", []domain.StaffRole{
			domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor, domain.RoleCleaner}},
		{"Garden Landscaping", []domain.StaffRole{
			domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor, domain.RoleGardener}},
		{"Security Systems", []domain.StaffRole{
			domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor, domain.RoleSecurityHead}},
		// No keyword match falls back to facility managers alone.
		{"General Repairs", []domain.StaffRole{domain.RoleFacilityManager}},
	}
	for _, tc := range cases {
		category := &domain.MaintenanceCategory{Name: tc.name}
		assert.Equal(t, tc.roles, RolesForCategory(category), tc.name)
	}
}

func TestCategoryRolesCanWorkRequests(t *testing.T) {
	// Every role the matcher proposes must be able to work the request it
	// gets assigned; a candidate who cannot is stuck at "assigned" forever.
	names := []string{
		"Electrical Repairs",
		"Plumbing & Water Supply",
		"Cleaning and Pest Control",
		"Garden Landscaping",
		"Security Systems",
		"General Repairs",
	}
	for _, name := range names {
		for _, role := range RolesForCategory(&domain.MaintenanceCategory{Name: name}) {
			staff := &domain.StaffProfile{Role: role, Active: true}
			assert.True(t, staff.CanHandleMaintenance(), "%s / %s", name, role)
		}
	}
}

func TestFindCandidatesFiltersRoleAndActive(t *testing.T) {
	env := newTestEnv()
	category := env.seedCategory("c1", "Electrical Repairs", domain.PriorityEmergency, 24)

	electrician := env.seedStaff("s1", domain.RoleElectrician)
	env.seedStaff("s2", domain.RolePlumber)
	env.seedStaff("s3", domain.RoleElectrician, func(s *domain.StaffProfile) { s.Active = false })
	supervisor := env.seedStaff("s4", domain.RoleMaintenanceSupervisor)
	// Access-all staff are candidates regardless of role.
	accountant := env.seedStaff("s5", domain.RoleAccountant, func(s *domain.StaffProfile) {
		s.CanAccessAllMaintenance = true
	})

	candidates, err := env.matcher.FindCandidates(context.Background(), category)
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.Staff.ID)
	}
	assert.ElementsMatch(t, []string{electrician.ID, supervisor.ID, accountant.ID}, ids)
}

func TestFindCandidatesOrdersByWorkloadThenSpecificity(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	category := env.seedCategory("c1", "Plumbing", domain.PriorityEmergency, 24)

	busy := env.seedStaff("s1", domain.RolePlumber)
	idle := env.seedStaff("s2", domain.RolePlumber)
	manager := env.seedStaff("s3", domain.RoleFacilityManager)

	// Two open requests on the busy plumber, none elsewhere.
	env.seedRequest("req1", "r1", "c1", domain.StatusAssigned, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &busy.ID
	})
	env.seedRequest("req2", "r1", "c1", domain.StatusInProgress, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &busy.ID
	})
	// Resolved work does not count toward the load.
	env.seedRequest("req3", "r1", "c1", domain.StatusResolved, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &idle.ID
	})

	candidates, err := env.matcher.FindCandidates(context.Background(), category)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	// Idle specialist beats the manager at equal load; the busy plumber sinks.
	assert.Equal(t, idle.ID, candidates[0].Staff.ID)
	assert.Equal(t, 0, candidates[0].Workload)
	assert.Equal(t, manager.ID, candidates[1].Staff.ID)
	assert.Equal(t, busy.ID, candidates[2].Staff.ID)
	assert.Equal(t, 2, candidates[2].Workload)
}

func TestIsCandidate(t *testing.T) {
	env := newTestEnv()
	category := env.seedCategory("c1", "Garden Upkeep", domain.PriorityHigh, 72)
	gardener := env.seedStaff("s1", domain.RoleGardener)
	env.seedStaff("s2", domain.RoleSecurityHead)

	ok, err := env.matcher.IsCandidate(context.Background(), category, gardener.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.matcher.IsCandidate(context.Background(), category, "s2")
	require.NoError(t, err)
	assert.False(t, ok)
}
