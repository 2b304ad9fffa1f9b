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

// LifecycleService drives status transitions for maintenance requests. Every
// transition is validated against the lifecycle table, permission-checked per
// edge, and committed atomically with its audit entries and outbox record.
type LifecycleService struct {
	store      repository.TxStore
	dir        *directory.Service
	audit      *AuditLogger
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// NewLifecycleService builds the service.
func NewLifecycleService(
	store repository.TxStore,
	dir *directory.Service,
	audit *AuditLogger,
	dispatcher events.Dispatcher,
	logger *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:      store,
		dir:        dir,
		audit:      audit,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Transition moves a request to the target status on behalf of the actor.
// The row is locked for the duration of the transaction, so concurrent
// transitions serialize and the second caller revalidates against the
// committed state.
func (s *LifecycleService) Transition(ctx context.Context, requestID string, target domain.RequestStatus, actor Actor, comment string) (*domain.MaintenanceRequest, error) {
	if !target.Valid() {
		return nil, apperrors.NewInvalidTransition("unknown target status",
			map[string]any{"target": target})
	}

	var (
		updated *domain.MaintenanceRequest
		event   events.Event
	)
	err := s.store.InTx(ctx, func(store repository.Store) error {
		request, err := store.Requests().GetByIDForUpdate(ctx, requestID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if !request.Status.CanTransitionTo(target) {
			return apperrors.NewInvalidTransition("transition not allowed",
				map[string]any{"from": request.Status, "to": target})
		}
		if err := s.authorizeTransition(request, target, actor); err != nil {
			return err
		}

		oldStatus := request.Status
		now := s.now().UTC()
		request.Status = target
		request.StampStatusTimestamp(target, now)
		request.UpdatedAt = now
		if err := store.Requests().Update(ctx, request); err != nil {
			return apperrors.MapError(err)
		}

		event = events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventStatusChanged,
			RequestID: request.ID,
			Actor:     actor.EventActor(),
			Timestamp: now,
			Payload: events.StatusChangedPayload{
				TicketNumber: request.TicketNumber,
				OldStatus:    oldStatus,
				NewStatus:    target,
				ResidentID:   request.ResidentID,
				AssigneeID:   request.AssigneeID,
				Priority:     request.Priority,
				Comment:      comment,
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

	s.logger.Info("request transitioned",
		zap.String("request_id", updated.ID),
		zap.String("ticket_number", updated.TicketNumber),
		zap.String("status", string(updated.Status)))
	s.dispatcher.Publish(ctx, event)
	return updated, nil
}

// authorizeTransition enforces the per-edge permission rules:
//   - cancelled: only the reporting resident
//   - closed: the reporting resident, staff with close capability, or the
//     current assignee
//   - everything else: maintenance-capable staff
func (s *LifecycleService) authorizeTransition(request *domain.MaintenanceRequest, target domain.RequestStatus, actor Actor) error {
	switch target {
	case domain.StatusCancelled:
		if actor.IsResident(request.ResidentID) {
			return nil
		}
		return apperrors.NewPermissionDenied("only the reporting resident may cancel a request")

	case domain.StatusClosed:
		if actor.IsResident(request.ResidentID) {
			return nil
		}
		if actor.Type == domain.SubjectTypeStaff && actor.Staff != nil {
			if s.dir.ResolvePermission(actor.Staff, directory.CapabilityCloseRequests) {
				return nil
			}
			if request.AssigneeID != nil && actor.IsStaff(*request.AssigneeID) && actor.Staff.Active {
				return nil
			}
		}
		return apperrors.NewPermissionDenied("actor may not close this request")

	default:
		if actor.Type == domain.SubjectTypeStaff &&
			s.dir.ResolvePermission(actor.Staff, directory.CapabilityHandleMaintenance) {
			return nil
		}
		return apperrors.NewPermissionDenied("actor may not perform this transition")
	}
}
