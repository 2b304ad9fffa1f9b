package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/repository/repositorytest"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

func newDirectory(store *repositorytest.Store) *directory.Service {
	return directory.NewService(store.Staff(), store.Residents())
}

func seedStaff(store *repositorytest.Store, id string, role domain.StaffRole, mutate ...func(*domain.StaffProfile)) *domain.StaffProfile {
	staff := &domain.StaffProfile{
		ID:     id,
		Name:   "Staff " + id,
		Email:  id + "@estate.test",
		Role:   role,
		Active: true,
	}
	for _, fn := range mutate {
		fn(staff)
	}
	store.StaffByID[id] = staff
	return staff
}

func TestResolvePermission(t *testing.T) {
	dir := newDirectory(repositorytest.NewStore())

	electrician := &domain.StaffProfile{Role: domain.RoleElectrician, Active: true}
	assert.True(t, dir.ResolvePermission(electrician, directory.CapabilityHandleMaintenance))
	assert.False(t, dir.ResolvePermission(electrician, directory.CapabilityAssignRequests))
	assert.False(t, dir.ResolvePermission(electrician, directory.CapabilityCloseRequests))

	accountant := &domain.StaffProfile{Role: domain.RoleAccountant, Active: true}
	assert.False(t, dir.ResolvePermission(accountant, directory.CapabilityHandleMaintenance))

	// The access-all flag grants maintenance handling regardless of role.
	accountant.CanAccessAllMaintenance = true
	assert.True(t, dir.ResolvePermission(accountant, directory.CapabilityHandleMaintenance))
	assert.True(t, dir.ResolvePermission(accountant, directory.CapabilityAccessAllMaintenance))

	// Explicit grants are per-capability flags.
	manager := &domain.StaffProfile{
		Role:              domain.RoleFacilityManager,
		Active:            true,
		CanAssignRequests: true,
		CanCloseRequests:  true,
	}
	assert.True(t, dir.ResolvePermission(manager, directory.CapabilityAssignRequests))
	assert.True(t, dir.ResolvePermission(manager, directory.CapabilityCloseRequests))

	// Inactive staff hold nothing.
	manager.Active = false
	assert.False(t, dir.ResolvePermission(manager, directory.CapabilityAssignRequests))
	assert.False(t, dir.ResolvePermission(nil, directory.CapabilityHandleMaintenance))
}

func TestResolveStaffNotFound(t *testing.T) {
	dir := newDirectory(repositorytest.NewStore())
	_, err := dir.ResolveStaff(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestActiveStaffQueries(t *testing.T) {
	store := repositorytest.NewStore()
	dir := newDirectory(store)

	seedStaff(store, "s1", domain.RoleFacilityManager)
	seedStaff(store, "s2", domain.RoleMaintenanceSupervisor)
	seedStaff(store, "s3", domain.RoleFacilityManager, func(s *domain.StaffProfile) { s.Active = false })
	seedStaff(store, "s4", domain.RoleAccountant, func(s *domain.StaffProfile) {
		s.CanAccessAllMaintenance = true
	})

	byRole, err := dir.ActiveStaffWithRoles(context.Background(), domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor)
	require.NoError(t, err)
	ids := make([]string, 0, len(byRole))
	for _, staff := range byRole {
		ids = append(ids, staff.ID)
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)

	accessAll, err := dir.ActiveStaffWithAccessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, accessAll, 1)
	assert.Equal(t, "s4", accessAll[0].ID)
}

func TestSetReportingTo(t *testing.T) {
	store := repositorytest.NewStore()
	dir := newDirectory(store)
	ctx := context.Background()

	seedStaff(store, "head", domain.RoleFacilityManager)
	seedStaff(store, "mid", domain.RoleMaintenanceSupervisor)
	seedStaff(store, "leaf", domain.RoleElectrician)

	head := "head"
	mid := "mid"
	leaf := "leaf"

	_, err := dir.SetReportingTo(ctx, mid, &head)
	require.NoError(t, err)
	_, err = dir.SetReportingTo(ctx, leaf, &mid)
	require.NoError(t, err)

	// Self-reporting is rejected.
	_, err = dir.SetReportingTo(ctx, head, &head)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// head -> leaf would close the head -> mid -> leaf chain into a cycle.
	_, err = dir.SetReportingTo(ctx, head, &leaf)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Unknown managers are rejected.
	ghost := "ghost"
	_, err = dir.SetReportingTo(ctx, leaf, &ghost)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	// Clearing the manager is always allowed.
	updated, err := dir.SetReportingTo(ctx, leaf, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.ReportingToID)
}
