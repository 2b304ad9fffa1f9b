package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository/repositorytest"
)

// testEnv wires the engine services over the in-memory store.
type testEnv struct {
	store         *repositorytest.Store
	dir           *directory.Service
	dispatcher    events.Dispatcher
	published     *[]events.Event
	matcher       *MatcherService
	requests      *RequestService
	lifecycle     *LifecycleService
	assignments   *AssignmentService
	notifications *NotificationService
}

func newTestEnv() *testEnv {
	store := repositorytest.NewStore()
	dir := directory.NewService(store.Staff(), store.Residents())
	logger := zap.NewNop()

	dispatcher := events.NewInMemoryDispatcher(logger)
	var published []events.Event
	record := func(_ context.Context, event events.Event) error {
		published = append(published, event)
		return nil
	}
	for _, eventType := range []events.EventType{
		events.EventRequestCreated,
		events.EventStatusChanged,
		events.EventRequestAssigned,
		events.EventRequestOverdue,
	} {
		dispatcher.Subscribe(eventType, record)
	}

	audit := NewAuditLogger()
	matcher := NewMatcherService(store)

	env := &testEnv{
		store:         store,
		dir:           dir,
		dispatcher:    dispatcher,
		published:     &published,
		matcher:       matcher,
		requests:      NewRequestService(store, dir, audit, dispatcher, logger),
		lifecycle:     NewLifecycleService(store, dir, audit, dispatcher, logger),
		assignments:   NewAssignmentService(store, dir, matcher, audit, dispatcher, logger, 2),
		notifications: NewNotificationService(store, dir, logger),
	}
	return env
}

func (e *testEnv) seedResident(id string) *domain.Resident {
	resident := &domain.Resident{
		ID:                 id,
		Name:               "Resident " + id,
		Email:              id + "@estate.test",
		Phone:              "+100" + id,
		FlatNumber:         "A-101",
		Active:             true,
		EmailNotifications: true,
	}
	e.store.ResidentsByID[id] = resident
	return resident
}

func (e *testEnv) seedStaff(id string, role domain.StaffRole, mutate ...func(*domain.StaffProfile)) *domain.StaffProfile {
	staff := &domain.StaffProfile{
		ID:                 id,
		EmployeeID:         "EMP-" + id,
		Name:               "Staff " + id,
		Email:              id + "@estate.test",
		Phone:              "+200" + id,
		Role:               role,
		Active:             true,
		EmailNotifications: true,
	}
	for _, fn := range mutate {
		fn(staff)
	}
	e.store.StaffByID[id] = staff
	return staff
}

func (e *testEnv) seedCategory(id, name string, ceiling domain.Priority, hours int) *domain.MaintenanceCategory {
	category := &domain.MaintenanceCategory{
		ID:                       id,
		Name:                     name,
		PriorityCeiling:          ceiling,
		EstimatedResolutionHours: hours,
	}
	e.store.CategoriesByID[id] = category
	return category
}

func (e *testEnv) seedRequest(id string, residentID, categoryID string, status domain.RequestStatus, mutate ...func(*domain.MaintenanceRequest)) *domain.MaintenanceRequest {
	request := &domain.MaintenanceRequest{
		ID:           id,
		TicketNumber: "MNT-2026-" + id,
		ResidentID:   residentID,
		CategoryID:   categoryID,
		Title:        "Test request " + id,
		Description:  "something is broken",
		Location:     "Block A",
		Priority:     domain.PriorityMedium,
		Status:       status,
		CreatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(request)
	}
	e.store.RequestsByID[id] = request
	return request
}

// auditFields collects the Field column of every audit entry for a request.
func (e *testEnv) auditFields(requestID string) []string {
	var fields []string
	for _, entry := range e.store.AuditLog {
		if entry.RequestID == requestID {
			fields = append(fields, entry.Field)
		}
	}
	return fields
}
