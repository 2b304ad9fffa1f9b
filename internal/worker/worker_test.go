package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/notify"
	"github.com/spec-kit/estate-ops/internal/repository/repositorytest"
)

// fakeEmailSender records sent mail and can be told to fail.
type fakeEmailSender struct {
	sent []notify.EmailMessage
	fail bool
}

func (f *fakeEmailSender) SendEmail(_ context.Context, msg notify.EmailMessage) error {
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeSMSSender struct {
	sent []notify.SMSMessage
	fail bool
}

func (f *fakeSMSSender) SendSMS(_ context.Context, msg notify.SMSMessage) error {
	if f.fail {
		return errors.New("gateway timeout")
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeInboxWriter struct {
	written []domain.NotificationTask
	fail    bool
}

func (f *fakeInboxWriter) WriteInbox(_ context.Context, _ domain.SubjectType, _ string, task domain.NotificationTask) error {
	if f.fail {
		return errors.New("redis unavailable")
	}
	f.written = append(f.written, task)
	return nil
}

// workerEnv bundles the store, directory and channel fakes the worker tests
// share.
type workerEnv struct {
	store     *repositorytest.Store
	dir       *directory.Service
	email     *fakeEmailSender
	sms       *fakeSMSSender
	inbox     *fakeInboxWriter
	published []events.Event
}

func newWorkerEnv() *workerEnv {
	store := repositorytest.NewStore()
	return &workerEnv{
		store: store,
		dir:   directory.NewService(store.Staff(), store.Residents()),
		email: &fakeEmailSender{},
		sms:   &fakeSMSSender{},
		inbox: &fakeInboxWriter{},
	}
}

func (e *workerEnv) dispatcher() events.Dispatcher {
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	record := func(_ context.Context, event events.Event) error {
		e.published = append(e.published, event)
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
	return dispatcher
}

func (e *workerEnv) seedStaff(id string, role domain.StaffRole, mutate ...func(*domain.StaffProfile)) *domain.StaffProfile {
	staff := &domain.StaffProfile{
		ID:     id,
		Name:   "Staff " + id,
		Email:  id + "@estate.test",
		Phone:  "+200" + id,
		Role:   role,
		Active: true,
	}
	for _, fn := range mutate {
		fn(staff)
	}
	e.store.StaffByID[id] = staff
	return staff
}

func (e *workerEnv) seedResident(id string) *domain.Resident {
	resident := &domain.Resident{
		ID:     id,
		Name:   "Resident " + id,
		Email:  id + "@estate.test",
		Phone:  "+100" + id,
		Active: true,
	}
	e.store.ResidentsByID[id] = resident
	return resident
}

func (e *workerEnv) seedCategory(id, name string, hours int) *domain.MaintenanceCategory {
	category := &domain.MaintenanceCategory{
		ID:                       id,
		Name:                     name,
		PriorityCeiling:          domain.PriorityEmergency,
		EstimatedResolutionHours: hours,
	}
	e.store.CategoriesByID[id] = category
	return category
}

func (e *workerEnv) seedRequest(id, residentID, categoryID string, status domain.RequestStatus, createdAt time.Time, mutate ...func(*domain.MaintenanceRequest)) *domain.MaintenanceRequest {
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
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	for _, fn := range mutate {
		fn(request)
	}
	e.store.RequestsByID[id] = request
	return request
}

func (e *workerEnv) seedTask(id string, recipientType domain.SubjectType, recipientID string, channel domain.NotificationChannel, mutate ...func(*domain.NotificationTask)) *domain.NotificationTask {
	task := &domain.NotificationTask{
		ID:            id,
		RecipientType: recipientType,
		RecipientID:   recipientID,
		Channel:       channel,
		TemplateKey:   "maintenance_update",
		Title:         "Maintenance Update",
		Message:       "status changed",
		Status:        domain.NotificationPending,
		NextAttemptAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	for _, fn := range mutate {
		fn(task)
	}
	e.store.TasksByID[id] = task
	return task
}
