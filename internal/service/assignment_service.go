package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// DefaultMaxConcurrentAssignments caps how many open requests a single staff
// member can hold at once.
const DefaultMaxConcurrentAssignments = 10

// AssignmentService routes requests to eligible staff, enforcing the matcher's
// candidate set and the per-staff workload cap.
type AssignmentService struct {
	store         repository.TxStore
	dir           *directory.Service
	matcher       *MatcherService
	audit         *AuditLogger
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	maxConcurrent int
	now           func() time.Time
}

// NewAssignmentService builds the service. maxConcurrent <= 0 selects the
// default cap.
func NewAssignmentService(
	store repository.TxStore,
	dir *directory.Service,
	matcher *MatcherService,
	audit *AuditLogger,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
	maxConcurrent int,
) *AssignmentService {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentAssignments
	}
	return &AssignmentService{
		store:         store,
		dir:           dir,
		matcher:       matcher,
		audit:         audit,
		dispatcher:    dispatcher,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		now:           time.Now,
	}
}

// Assign routes the request to the given staff member. The assigner needs the
// assign capability; the target must be in the matcher's candidate set for
// the request's category and under the workload cap. The workload check is
// repeated inside the transaction so two racing assignments cannot both land
// on a staff member at the cap.
func (s *AssignmentService) Assign(ctx context.Context, requestID, staffID string, assigner Actor) (*domain.MaintenanceRequest, error) {
	if assigner.Type != domain.SubjectTypeStaff ||
		!s.dir.ResolvePermission(assigner.Staff, directory.CapabilityAssignRequests) {
		return nil, apperrors.NewPermissionDenied("actor may not assign requests")
	}

	staff, err := s.dir.ResolveStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	request, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	category, err := s.store.Categories().GetByID(ctx, request.CategoryID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	eligible, err := s.matcher.IsCandidate(ctx, category, staff.ID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, apperrors.NewIneligibleStaff("staff member is not suitable for this category",
			map[string]any{"staff_id": staff.ID, "category": category.Name})
	}

	var (
		updated *domain.MaintenanceRequest
		event   events.Event
	)
	err = s.store.InTx(ctx, func(store repository.Store) error {
		request, err := store.Requests().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if request.Status.Terminal() {
			return apperrors.NewInvalidTransition("cannot assign a finished request",
				map[string]any{"status": request.Status})
		}

		workload, err := store.Requests().CountOpenByAssignee(ctx, staff.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if workload >= s.maxConcurrent {
			return apperrors.NewWorkloadExceeded("staff member is at the concurrent assignment cap",
				map[string]any{"staff_id": staff.ID, "workload": workload, "cap": s.maxConcurrent})
		}

		oldAssignee := request.AssigneeID
		oldStatus := request.Status
		now := s.now().UTC()

		request.AssigneeID = &staff.ID
		request.AssignedByID = &assigner.Staff.ID
		if oldStatus == domain.StatusSubmitted || oldStatus == domain.StatusAcknowledged {
			request.Status = domain.StatusAssigned
		}
		request.StampStatusTimestamp(domain.StatusAssigned, now)
		request.UpdatedAt = now
		if err := store.Requests().Update(ctx, request); err != nil {
			return apperrors.MapError(err)
		}

		record := &domain.AssignmentRecord{
			RequestID:    request.ID,
			StaffID:      staff.ID,
			AssignedByID: assigner.Staff.ID,
			CreatedAt:    now,
		}
		if err := store.Assignments().Create(ctx, record); err != nil {
			return apperrors.MapError(err)
		}

		event = events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventRequestAssigned,
			RequestID: request.ID,
			Actor:     assigner.EventActor(),
			Timestamp: now,
			Payload: events.RequestAssignedPayload{
				TicketNumber:  request.TicketNumber,
				OldAssigneeID: oldAssignee,
				NewAssigneeID: staff.ID,
				AssignedByID:  assigner.Staff.ID,
				ResidentID:    request.ResidentID,
				Priority:      request.Priority,
				OldStatus:     oldStatus,
				NewStatus:     request.Status,
			},
		}
		if err := s.audit.Record(ctx, store, event); err != nil {
			return apperrors.NewAuditWriteFailed(err)
		}
		if err := store.Outbox().Create(ctx, event); err != nil {
			return apperrors.MapError(err)
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("request assigned",
		zap.String("request_id", updated.ID),
		zap.String("ticket_number", updated.TicketNumber),
		zap.String("staff_id", staff.ID))
	s.dispatcher.Publish(ctx, event)
	return updated, nil
}

// Candidates lists eligible staff for the request's category, best first.
func (s *AssignmentService) Candidates(ctx context.Context, requestID string) ([]Candidate, error) {
	request, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	category, err := s.store.Categories().GetByID(ctx, request.CategoryID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.matcher.FindCandidates(ctx, category)
}
