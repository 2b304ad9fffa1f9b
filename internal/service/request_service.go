package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// CreateRequestInput carries resident-supplied fields for a new request.
type CreateRequestInput struct {
	CategoryID          string
	Title               string
	Description         string
	Location            string
	Priority            domain.Priority
	EstimatedCompletion *time.Time
}

// StaffWorkload summarizes a staff member's current load.
type StaffWorkload struct {
	StaffID            string `json:"staff_id"`
	ActiveCount        int    `json:"active_count"`
	CompletedThisMonth int    `json:"completed_this_month"`
}

// RequestService covers intake, reads and resident feedback for maintenance
// requests.
type RequestService struct {
	store      repository.TxStore
	dir        *directory.Service
	audit      *AuditLogger
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewRequestService builds the service.
func NewRequestService(
	store repository.TxStore,
	dir *directory.Service,
	audit *AuditLogger,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		store:      store,
		dir:        dir,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Create files a new maintenance request for the resident. The ticket number
// is allocated from a per-year sequence inside the same transaction as the
// insert, so numbers never repeat even under concurrent intake. Priority is
// clamped to the category's ceiling.
func (s *RequestService) Create(ctx context.Context, residentID string, input CreateRequestInput) (*domain.MaintenanceRequest, error) {
	resident, err := s.dir.ResolveResident(ctx, residentID)
	if err != nil {
		return nil, err
	}
	if !resident.Active {
		return nil, apperrors.NewPermissionDenied("resident account is inactive")
	}
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	category, err := s.store.Categories().GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	priority := input.Priority
	if priority == 0 {
		priority = domain.PriorityMedium
	}
	priority = priority.Clamp(category.PriorityCeiling)

	var (
		request *domain.MaintenanceRequest
		event   events.Event
	)
	err = s.store.InTx(ctx, func(store repository.Store) error {
		now := s.now().UTC()
		seq, err := store.Requests().NextTicketNumber(ctx, now.Year())
		if err != nil {
			return apperrors.MapError(err)
		}

		request = &domain.MaintenanceRequest{
			TicketNumber:        fmt.Sprintf("MNT-%d-%04d", now.Year(), seq),
			ResidentID:          resident.ID,
			CategoryID:          category.ID,
			Title:               strings.TrimSpace(input.Title),
			Description:         strings.TrimSpace(input.Description),
			Location:            strings.TrimSpace(input.Location),
			Priority:            priority,
			Status:              domain.StatusSubmitted,
			EstimatedCompletion: input.EstimatedCompletion,
		}
		if err := store.Requests().Create(ctx, request); err != nil {
			return apperrors.MapError(err)
		}

		event = events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRequestCreated,
			RequestID: request.ID,
			Actor:     events.ResidentActor(resident.ID),
			Timestamp: now,
			Payload: events.RequestCreatedPayload{
				TicketNumber: request.TicketNumber,
				ResidentID:   resident.ID,
				CategoryID:   category.ID,
				CategoryName: category.Name,
				Title:        request.Title,
				Location:     request.Location,
				Priority:     request.Priority,
			},
		}
		if err := s.audit.Record(ctx, store, event); err != nil {
			return apperrors.NewAuditWriteFailed(err)
		}
		if err := store.Outbox().Create(ctx, event); err != nil {
			return apperrors.MapError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request created",
		zap.String("request_id", request.ID),
		zap.String("ticket_number", request.TicketNumber),
		zap.Int("priority", int(request.Priority)))
	s.dispatcher.Publish(ctx, event)
	return request, nil
}

// GetForActor fetches a request visible to the actor: its reporting resident,
// its current assignee, or staff with maintenance access.
func (s *RequestService) GetForActor(ctx context.Context, requestID string, actor Actor) (*domain.MaintenanceRequest, error) {
	request, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !s.canView(request, actor) {
		return nil, apperrors.NewPermissionDenied("actor may not view this request")
	}
	return request, nil
}

// ListForActor lists requests scoped to the actor: residents see their own,
// staff without the access-all flag see their assignments, staff with it see
// everything the filter matches.
func (s *RequestService) ListForActor(ctx context.Context, filter repository.RequestFilter, actor Actor) ([]domain.MaintenanceRequest, error) {
	switch actor.Type {
	case domain.SubjectTypeResident:
		if actor.Resident == nil {
			return nil, apperrors.NewPermissionDenied("unknown resident")
		}
		filter.ResidentID = &actor.Resident.ID
	case domain.SubjectTypeStaff:
		if actor.Staff == nil {
			return nil, apperrors.NewPermissionDenied("unknown staff member")
		}
		if !s.dir.ResolvePermission(actor.Staff, directory.CapabilityAccessAllMaintenance) {
			filter.AssigneeID = &actor.Staff.ID
		}
	default:
		return nil, apperrors.NewPermissionDenied("unknown actor")
	}
	requests, err := s.store.Requests().ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return requests, nil
}

// AuditTrail returns the request's audit entries, newest first, for actors
// allowed to view the request.
func (s *RequestService) AuditTrail(ctx context.Context, requestID string, actor Actor, limit, offset int) ([]domain.AuditEntry, error) {
	if _, err := s.GetForActor(ctx, requestID, actor); err != nil {
		return nil, err
	}
	entries, err := s.store.Audit().ListByRequest(ctx, requestID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// AssignmentHistory returns the append-only assignment records for a request.
func (s *RequestService) AssignmentHistory(ctx context.Context, requestID string, actor Actor) ([]domain.AssignmentRecord, error) {
	if _, err := s.GetForActor(ctx, requestID, actor); err != nil {
		return nil, err
	}
	records, err := s.store.Assignments().ListByRequest(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return records, nil
}

// SetResidentFeedback records the reporting resident's rating (1..5) and
// optional comment once the request has been resolved or closed.
func (s *RequestService) SetResidentFeedback(ctx context.Context, requestID, residentID string, rating int, feedback string) (*domain.MaintenanceRequest, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5",
			map[string]any{"rating": rating})
	}

	var updated *domain.MaintenanceRequest
	err := s.store.InTx(ctx, func(store repository.Store) error {
		request, err := store.Requests().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if request.ResidentID != residentID {
			return apperrors.NewPermissionDenied("only the reporting resident may leave feedback")
		}
		if request.Status != domain.StatusResolved && request.Status != domain.StatusClosed {
			return apperrors.NewConflict("feedback is only accepted on resolved or closed requests",
				map[string]any{"status": request.Status})
		}

		oldRating := request.ResidentRating
		now := s.now().UTC()
		request.ResidentRating = &rating
		request.ResidentFeedback = strings.TrimSpace(feedback)
		request.UpdatedAt = now
		if err := store.Requests().Update(ctx, request); err != nil {
			return apperrors.MapError(err)
		}

		entry := &domain.AuditEntry{
			RequestID: request.ID,
			ActorType: domain.SubjectTypeResident,
			ActorID:   &residentID,
			Field:     "resident_rating",
			OldValue:  map[string]any{"rating": oldRating},
			NewValue:  map[string]any{"rating": rating},
			CreatedAt: now,
		}
		if err := store.Audit().Create(ctx, entry); err != nil {
			return apperrors.NewAuditWriteFailed(err)
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Workload reports a staff member's open assignments and resolutions since
// the start of the current month.
func (s *RequestService) Workload(ctx context.Context, staffID string) (*StaffWorkload, error) {
	if _, err := s.dir.ResolveStaff(ctx, staffID); err != nil {
		return nil, err
	}
	active, err := s.store.Requests().CountOpenByAssignee(ctx, staffID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	completed, err := s.store.Requests().CountResolvedSince(ctx, staffID, monthStart)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &StaffWorkload{StaffID: staffID, ActiveCount: active, CompletedThisMonth: completed}, nil
}

func (s *RequestService) canView(request *domain.MaintenanceRequest, actor Actor) bool {
	if actor.IsResident(request.ResidentID) {
		return true
	}
	if actor.Type != domain.SubjectTypeStaff || actor.Staff == nil {
		return false
	}
	if request.AssigneeID != nil && actor.IsStaff(*request.AssigneeID) {
		return true
	}
	return s.dir.ResolvePermission(actor.Staff, directory.CapabilityHandleMaintenance) ||
		s.dir.ResolvePermission(actor.Staff, directory.CapabilityAccessAllMaintenance)
}

func validateCreateInput(input CreateRequestInput) error {
	details := map[string]any{}
	if strings.TrimSpace(input.Title) == "" {
		details["title"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		details["description"] = "required"
	}
	if strings.TrimSpace(input.Location) == "" {
		details["location"] = "required"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("missing required fields", details)
	}
	return nil
}
