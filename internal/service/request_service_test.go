package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

func TestCreateRequest(t *testing.T) {
	env := newTestEnv()
	resident := env.seedResident("r1")
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)

	env.requests.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	request, err := env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
		CategoryID:  "c1",
		Title:       "Socket sparking",
		Description: "Kitchen socket sparks when plugging in",
		Location:    "Flat A-101",
		Priority:    domain.PriorityHigh,
	})
	require.NoError(t, err)

	assert.Equal(t, "MNT-2026-0001", request.TicketNumber)
	assert.Equal(t, domain.StatusSubmitted, request.Status)
	assert.Equal(t, domain.PriorityHigh, request.Priority)

	require.Len(t, *env.published, 1)
	assert.Equal(t, events.EventRequestCreated, (*env.published)[0].Type)
	require.Len(t, env.store.OutboxLog, 1)
	assert.Equal(t, []string{"status"}, env.auditFields(request.ID))
}

func TestCreateRequestTicketNumbersAreSequential(t *testing.T) {
	env := newTestEnv()
	resident := env.seedResident("r1")
	env.seedCategory("c1", "General", domain.PriorityEmergency, 24)
	env.requests.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	for i := 1; i <= 3; i++ {
		request, err := env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
			CategoryID:  "c1",
			Title:       "Issue",
			Description: "details",
			Location:    "A-101",
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("MNT-2026-%04d", i), request.TicketNumber)
	}
}

func TestCreateRequestClampsPriorityToCategoryCeiling(t *testing.T) {
	env := newTestEnv()
	resident := env.seedResident("r1")
	env.seedCategory("c1", "Gardening", domain.PriorityMedium, 72)

	request, err := env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
		CategoryID:  "c1",
		Title:       "Hedge overgrown",
		Description: "needs trimming",
		Location:    "Block B garden",
		Priority:    domain.PriorityEmergency,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, request.Priority)
}

func TestCreateRequestDefaultsPriorityToMedium(t *testing.T) {
	env := newTestEnv()
	resident := env.seedResident("r1")
	env.seedCategory("c1", "General", domain.PriorityEmergency, 24)

	request, err := env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
		CategoryID:  "c1",
		Title:       "Door creaks",
		Description: "hinge worn",
		Location:    "A-101",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityMedium, request.Priority)
}

func TestCreateRequestValidatesFields(t *testing.T) {
	env := newTestEnv()
	resident := env.seedResident("r1")
	env.seedCategory("c1", "General", domain.PriorityEmergency, 24)

	_, err := env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
		CategoryID: "c1",
		Title:      "  ",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = env.requests.Create(context.Background(), resident.ID, CreateRequestInput{
		CategoryID:  "missing",
		Title:       "x",
		Description: "y",
		Location:    "z",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestListForActorScoping(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	other := env.seedResident("r2")
	assignee := env.seedStaff("s1", domain.RoleElectrician)
	allSeeing := env.seedStaff("s2", domain.RoleFacilityManager, func(s *domain.StaffProfile) {
		s.CanAccessAllMaintenance = true
	})
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)

	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)
	env.seedRequest("req2", "r2", "c1", domain.StatusAssigned, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &assignee.ID
	})

	ctx := context.Background()

	mine, err := env.requests.ListForActor(ctx, repository.RequestFilter{}, ResidentActor(owner))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "req1", mine[0].ID)

	theirs, err := env.requests.ListForActor(ctx, repository.RequestFilter{}, ResidentActor(other))
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "req2", theirs[0].ID)

	assigned, err := env.requests.ListForActor(ctx, repository.RequestFilter{}, StaffActor(assignee))
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "req2", assigned[0].ID)

	everything, err := env.requests.ListForActor(ctx, repository.RequestFilter{}, StaffActor(allSeeing))
	require.NoError(t, err)
	assert.Len(t, everything, 2)
}

func TestResidentFeedback(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	env.seedResident("r2")
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusResolved)
	env.seedRequest("req2", "r1", "c1", domain.StatusInProgress)

	ctx := context.Background()

	// Only accepted after resolution.
	_, err := env.requests.SetResidentFeedback(ctx, "req2", owner.ID, 4, "quick work")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))

	// Only by the reporting resident.
	_, err = env.requests.SetResidentFeedback(ctx, "req1", "r2", 4, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	// Rating bounds.
	_, err = env.requests.SetResidentFeedback(ctx, "req1", owner.ID, 6, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	updated, err := env.requests.SetResidentFeedback(ctx, "req1", owner.ID, 5, "great job")
	require.NoError(t, err)
	require.NotNil(t, updated.ResidentRating)
	assert.Equal(t, 5, *updated.ResidentRating)
	assert.Equal(t, "great job", updated.ResidentFeedback)
	assert.Contains(t, env.auditFields("req1"), "resident_rating")
}

func TestWorkloadCounts(t *testing.T) {
	env := newTestEnv()
	env.seedResident("r1")
	staff := env.seedStaff("s1", domain.RoleElectrician)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)

	env.requests.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }

	env.seedRequest("req1", "r1", "c1", domain.StatusAssigned, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &staff.ID
	})
	env.seedRequest("req2", "r1", "c1", domain.StatusInProgress, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &staff.ID
	})
	resolvedThisMonth := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	env.seedRequest("req3", "r1", "c1", domain.StatusResolved, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &staff.ID
		r.ResolvedAt = &resolvedThisMonth
	})
	resolvedLastMonth := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	env.seedRequest("req4", "r1", "c1", domain.StatusClosed, func(r *domain.MaintenanceRequest) {
		r.AssigneeID = &staff.ID
		r.ResolvedAt = &resolvedLastMonth
	})

	workload, err := env.requests.Workload(context.Background(), staff.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, workload.ActiveCount)
	assert.Equal(t, 1, workload.CompletedThisMonth)
}

func TestGetForActorVisibility(t *testing.T) {
	env := newTestEnv()
	owner := env.seedResident("r1")
	stranger := env.seedResident("r2")
	accountant := env.seedStaff("s1", domain.RoleAccountant)
	electrician := env.seedStaff("s2", domain.RoleElectrician)
	env.seedCategory("c1", "Electrical", domain.PriorityEmergency, 24)
	env.seedRequest("req1", "r1", "c1", domain.StatusSubmitted)

	ctx := context.Background()

	_, err := env.requests.GetForActor(ctx, "req1", ResidentActor(owner))
	require.NoError(t, err)

	_, err = env.requests.GetForActor(ctx, "req1", ResidentActor(stranger))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))

	_, err = env.requests.GetForActor(ctx, "req1", StaffActor(accountant))
	require.Error(t, err)

	_, err = env.requests.GetForActor(ctx, "req1", StaffActor(electrician))
	require.NoError(t, err)
}
