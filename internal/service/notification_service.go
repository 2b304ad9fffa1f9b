package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// Template keys for outbound notifications.
const (
	TemplateNewRequest = "new_maintenance_request"
	TemplateUpdate     = "maintenance_update"
	TemplateAssigned   = "maintenance_assigned"
	TemplateOverdue    = "maintenance_overdue"
)

// recipient is a resolved notification target with its delivery preferences.
type recipient struct {
	kind       domain.SubjectType
	id         string
	email      bool
	sms        bool
	urgentOnly bool
}

func staffRecipient(s domain.StaffProfile) recipient {
	return recipient{
		kind:       domain.SubjectTypeStaff,
		id:         s.ID,
		email:      s.EmailNotifications,
		sms:        s.SMSNotifications,
		urgentOnly: s.UrgentOnly,
	}
}

func residentRecipient(r *domain.Resident) recipient {
	return recipient{
		kind:       domain.SubjectTypeResident,
		id:         r.ID,
		email:      r.EmailNotifications,
		sms:        r.SMSNotifications,
		urgentOnly: r.UrgentOnly,
	}
}

// NotificationService fans lifecycle events out into per-recipient,
// per-channel delivery tasks. Task creation is the durable hand-off point:
// the delivery worker owns everything after that. Handlers confirm the
// originating outbox record once tasks exist, so a crash between commit and
// fan-out is replayed by the relay rather than lost.
type NotificationService struct {
	store  repository.TxStore
	dir    *directory.Service
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService builds the dispatcher.
func NewNotificationService(store repository.TxStore, dir *directory.Service, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, dir: dir, logger: logger, now: time.Now}
}

// Register subscribes the dispatcher to every lifecycle event kind.
func (n *NotificationService) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventRequestCreated, n.HandleEvent)
	dispatcher.Subscribe(events.EventStatusChanged, n.HandleEvent)
	dispatcher.Subscribe(events.EventRequestAssigned, n.HandleEvent)
	dispatcher.Subscribe(events.EventRequestOverdue, n.HandleEvent)
}

// HandleEvent creates the notification tasks for one event and confirms the
// outbox record. Safe to call more than once for relay redelivery: the outbox
// confirmation is conditional, and duplicate tasks are tolerable under the
// at-least-once contract.
func (n *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	tasks, err := n.tasksFor(ctx, event)
	if err != nil {
		return err
	}
	for i := range tasks {
		if err := n.store.Notifications().Create(ctx, &tasks[i]); err != nil {
			return apperrors.MapError(err)
		}
	}
	if err := n.store.Outbox().MarkProcessed(ctx, event.ID, n.now().UTC()); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	n.logger.Debug("notification tasks enqueued",
		zap.String("event_type", string(event.Type)),
		zap.String("request_id", event.RequestID),
		zap.Int("tasks", len(tasks)))
	return nil
}

func (n *NotificationService) tasksFor(ctx context.Context, event events.Event) ([]domain.NotificationTask, error) {
	switch payload := event.Payload.(type) {
	case events.RequestCreatedPayload:
		return n.createdTasks(ctx, event, payload)
	case events.StatusChangedPayload:
		return n.statusChangedTasks(ctx, event, payload)
	case events.RequestAssignedPayload:
		return n.assignedTasks(ctx, event, payload)
	case events.RequestOverduePayload:
		return n.overdueTasks(ctx, event, payload)
	default:
		return nil, nil
	}
}

// createdTasks notifies the maintenance office: staff with the
// access-all flag plus facility managers and supervisors, limited to those
// who opted into email updates.
func (n *NotificationService) createdTasks(ctx context.Context, event events.Event, payload events.RequestCreatedPayload) ([]domain.NotificationTask, error) {
	staff, err := n.managerRecipients(ctx)
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("New Maintenance Request: %s", payload.TicketNumber)
	message := fmt.Sprintf("%s was reported at %s (%s).", payload.Title, payload.Location, payload.CategoryName)

	var tasks []domain.NotificationTask
	for _, r := range staff {
		if !r.email {
			continue
		}
		tasks = append(tasks, n.buildTasks(event, r, payload.Priority, TemplateNewRequest, title, message)...)
	}
	return tasks, nil
}

func (n *NotificationService) statusChangedTasks(ctx context.Context, event events.Event, payload events.StatusChangedPayload) ([]domain.NotificationTask, error) {
	title := fmt.Sprintf("Maintenance Update: %s", payload.TicketNumber)
	message := fmt.Sprintf("Request %s moved from %s to %s.", payload.TicketNumber, payload.OldStatus, payload.NewStatus)

	recipients, err := n.requestParties(ctx, payload.ResidentID, payload.AssigneeID)
	if err != nil {
		return nil, err
	}
	var tasks []domain.NotificationTask
	for _, r := range recipients {
		tasks = append(tasks, n.buildTasks(event, r, payload.Priority, TemplateUpdate, title, message)...)
	}
	return tasks, nil
}

func (n *NotificationService) assignedTasks(ctx context.Context, event events.Event, payload events.RequestAssignedPayload) ([]domain.NotificationTask, error) {
	var tasks []domain.NotificationTask

	assignee, err := n.dir.ResolveStaff(ctx, payload.NewAssigneeID)
	if err != nil {
		return nil, err
	}
	tasks = append(tasks, n.buildTasks(event, staffRecipient(*assignee), payload.Priority,
		TemplateAssigned,
		fmt.Sprintf("Maintenance Assignment: %s", payload.TicketNumber),
		fmt.Sprintf("You have been assigned request %s.", payload.TicketNumber))...)

	resident, err := n.dir.ResolveResident(ctx, payload.ResidentID)
	if err != nil {
		return nil, err
	}
	tasks = append(tasks, n.buildTasks(event, residentRecipient(resident), payload.Priority,
		TemplateAssigned,
		fmt.Sprintf("Maintenance Update: %s", payload.TicketNumber),
		fmt.Sprintf("Your request %s has been assigned to our maintenance team.", payload.TicketNumber))...)
	return tasks, nil
}

// overdueTasks alerts facility managers that a request blew past its
// resolution deadline.
func (n *NotificationService) overdueTasks(ctx context.Context, event events.Event, payload events.RequestOverduePayload) ([]domain.NotificationTask, error) {
	managers, err := n.dir.ActiveStaffWithRoles(ctx, domain.RoleFacilityManager)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	title := fmt.Sprintf("Maintenance Overdue: %s", payload.TicketNumber)
	message := fmt.Sprintf("Request %s is still %s past its %s deadline.",
		payload.TicketNumber, payload.Status, payload.DeadlineAt.Format(time.RFC3339))

	var tasks []domain.NotificationTask
	for _, staff := range managers {
		tasks = append(tasks, n.buildTasks(event, staffRecipient(staff), payload.Priority, TemplateOverdue, title, message)...)
	}
	return tasks, nil
}

// buildTasks expands one recipient into channel tasks. In-app is always
// produced; email follows the recipient's preference; SMS needs both the
// preference and an urgent priority. A recipient on urgent-only mode gets
// sub-urgent traffic downgraded to in-app alone.
func (n *NotificationService) buildTasks(event events.Event, r recipient, priority domain.Priority, templateKey, title, message string) []domain.NotificationTask {
	channels := []domain.NotificationChannel{domain.ChannelInApp}
	if !r.urgentOnly || priority.Urgent() {
		if r.email {
			channels = append(channels, domain.ChannelEmail)
		}
		if r.sms && priority.Urgent() {
			channels = append(channels, domain.ChannelSMS)
		}
	}

	now := n.now().UTC()
	payload := map[string]any{
		"request_id": event.RequestID,
		"event_type": string(event.Type),
		"url":        fmt.Sprintf("/maintenance/requests/%s", event.RequestID),
	}

	tasks := make([]domain.NotificationTask, 0, len(channels))
	for _, channel := range channels {
		tasks = append(tasks, domain.NotificationTask{
			RecipientType: r.kind,
			RecipientID:   r.id,
			Channel:       channel,
			TemplateKey:   templateKey,
			Title:         title,
			Message:       message,
			Payload:       payload,
			Status:        domain.NotificationPending,
			NextAttemptAt: now,
		})
	}
	return tasks
}

func (n *NotificationService) managerRecipients(ctx context.Context) ([]recipient, error) {
	byRole, err := n.dir.ActiveStaffWithRoles(ctx, domain.RoleFacilityManager, domain.RoleMaintenanceSupervisor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	withAccess, err := n.dir.ActiveStaffWithAccessAll(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	seen := map[string]bool{}
	var recipients []recipient
	for _, staff := range append(byRole, withAccess...) {
		if seen[staff.ID] {
			continue
		}
		seen[staff.ID] = true
		recipients = append(recipients, staffRecipient(staff))
	}
	return recipients, nil
}

func (n *NotificationService) requestParties(ctx context.Context, residentID string, assigneeID *string) ([]recipient, error) {
	resident, err := n.dir.ResolveResident(ctx, residentID)
	if err != nil {
		return nil, err
	}
	recipients := []recipient{residentRecipient(resident)}
	if assigneeID != nil {
		assignee, err := n.dir.ResolveStaff(ctx, *assigneeID)
		if err != nil {
			return nil, err
		}
		recipients = append(recipients, staffRecipient(*assignee))
	}
	return recipients, nil
}
