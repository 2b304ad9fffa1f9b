package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/estate-ops/internal/domain"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

func TestTransitionHappyPath(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	manager := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	updated, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusAcknowledged, StaffActor(manager), "on it")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusAcknowledged, updated.Status)
	require.NotNil(t, updated.AcknowledgedAt)

	// Status change leaves a status audit entry and a durable outbox record.
	assert.Equal(t, []string{"status"}, env.auditFields("req1"))
	require.Len(t, env.store.OutboxLog, 1)
	require.Len(t, *env.published, 1)
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	manager := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusResolved, StaffActor(manager), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	// State untouched, no audit, no outbox, no event.
	assert.Equal(t, domain.StatusSubmitted, env.store.RequestsByID["req1"].Status)
	assert.Empty(t, env.store.AuditLog)
	assert.Empty(t, env.store.OutboxLog)
	assert.Empty(t, *env.published)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	manager := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.RequestStatus("archived"), StaffActor(manager), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestCancelOnlyByReportingResident(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	other := env.seedResident("r2")
	manager := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	// A different resident is denied and nothing is recorded.
	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusCancelled, ResidentActor(other), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
	assert.Equal(t, domain.StatusSubmitted, env.store.RequestsByID["req1"].Status)
	assert.Empty(t, env.store.AuditLog)
	assert.Empty(t, env.store.OutboxLog)

	// Staff may not cancel either.
	_, err = env.lifecycle.Transition(context.Background(), "req1", domain.StatusCancelled, StaffActor(manager), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	// The reporting resident may.
	updated, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusCancelled, ResidentActor(owner), "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)
}

func TestClosePermissions(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	assignee := env.seedStaff("s1", domain.RoleElectrician)
	closer := env.seedStaff("s2", domain.RoleFacilityManager, func(s *domain.StaffProfile) {
		s.CanCloseRequests = true
	})
	bystander := env.seedStaff("s3", domain.RolePlumber)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)

	seed := func(id string) {
		env.seedRequest(id, "r1", "c1", domain.StatusResolved, func(r *domain.MaintenanceRequest) {
			r.AssigneeID = &assignee.ID
		})
	}

	seed("req1")
	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusClosed, StaffActor(bystander), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	updated, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusClosed, ResidentActor(owner), "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, updated.Status)
	require.NotNil(t, updated.ClosedAt)

	seed("req2")
	_, err = env.lifecycle.Transition(context.Background(), "req2", domain.StatusClosed, StaffActor(closer), "")
	require.NoError(t, err)

	seed("req3")
	_, err = env.lifecycle.Transition(context.Background(), "req3", domain.StatusClosed, StaffActor(assignee), "")
	require.NoError(t, err)
}

func TestWorkTransitionsRequireMaintenanceCapableStaff(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	accountant := env.seedStaff("s1", domain.RoleAccountant)
	electrician := env.seedStaff("s2", domain.RoleElectrician)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusAcknowledged, ResidentActor(owner), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	_, err = env.lifecycle.Transition(context.Background(), "req1", domain.StatusAcknowledged, StaffActor(accountant), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	_, err = env.lifecycle.Transition(context.Background(), "req1", domain.StatusAcknowledged, StaffActor(electrician), "")
	require.NoError(t, err)
}

func TestReopenCycleKeepsFirstTimestamps(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	supervisor := env.seedStaff("s1", domain.RoleMaintenanceSupervisor)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusInProgress)

	actor := StaffActor(supervisor)
	ctx := context.Background()

	updated, err := env.lifecycle.Transition(ctx, "req1", domain.StatusResolved, actor, "")
	require.NoError(t, err)
	firstResolved := *updated.ResolvedAt

	_, err = env.lifecycle.Transition(ctx, "req1", domain.StatusInProgress, actor, "not fixed")
	require.NoError(t, err)

	updated, err = env.lifecycle.Transition(ctx, "req1", domain.StatusResolved, actor, "fixed again")
	require.NoError(t, err)
	assert.Equal(t, firstResolved, *updated.ResolvedAt)
}

func TestTransitionRollsBackWhenAuditWriteFails(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	manager := env.seedStaff("s1", domain.RoleFacilityManager)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	env.store.FailAuditWrites = true
	_, err := env.lifecycle.Transition(context.Background(), "req1", domain.StatusAcknowledged, StaffActor(manager), "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "AUDIT_WRITE_FAILED"))

	// The whole mutation rolled back with the audit failure.
	assert.Equal(t, domain.StatusSubmitted, env.store.RequestsByID["req1"].Status)
	assert.Nil(t, env.store.RequestsByID["req1"].AcknowledgedAt)
	assert.Empty(t, env.store.OutboxLog)
	assert.Empty(t, *env.published)
}
