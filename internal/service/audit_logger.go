package service

import (
	"context"

	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
	"github.com/spec-kit/estate-ops/internal/repository"
)

// AuditLogger turns lifecycle events into append-only audit entries. Diffs
// are computed from the before/after values the event payload carries, never
// from a re-read of mutable state. Record runs inside the same transaction
// as the mutation it describes: if the audit write fails, the mutation rolls
// back with it.
type AuditLogger struct{}

// NewAuditLogger builds the logger.
func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

// Record writes the audit entries for an event through the given store.
func (l *AuditLogger) Record(ctx context.Context, store repository.Store, event events.Event) error {
	for _, entry := range l.entriesFor(event) {
		entry := entry
		if err := store.Audit().Create(ctx, &entry); err != nil {
			return err
		}
	}
	return nil
}

func (l *AuditLogger) entriesFor(event events.Event) []domain.AuditEntry {
	base := domain.AuditEntry{
		RequestID: event.RequestID,
		ActorType: event.Actor.Type,
		ActorID:   auditActorID(event.Actor),
		CreatedAt: event.Timestamp,
	}

	switch payload := event.Payload.(type) {
	case events.RequestCreatedPayload:
		entry := base
		entry.Field = "status"
		entry.OldValue = map[string]any{}
		entry.NewValue = map[string]any{
			"status":        domain.StatusSubmitted,
			"ticket_number": payload.TicketNumber,
			"priority":      payload.Priority,
		}
		return []domain.AuditEntry{entry}

	case events.StatusChangedPayload:
		entry := base
		entry.Field = "status"
		entry.OldValue = map[string]any{"status": payload.OldStatus}
		entry.NewValue = map[string]any{"status": payload.NewStatus}
		entry.Note = payload.Comment
		return []domain.AuditEntry{entry}

	case events.RequestAssignedPayload:
		entries := make([]domain.AuditEntry, 0, 2)

		assignee := base
		assignee.Field = "assignee"
		assignee.OldValue = map[string]any{"assignee_id": payload.OldAssigneeID}
		assignee.NewValue = map[string]any{"assignee_id": payload.NewAssigneeID}
		entries = append(entries, assignee)

		if payload.OldStatus != payload.NewStatus {
			status := base
			status.Field = "status"
			status.OldValue = map[string]any{"status": payload.OldStatus}
			status.NewValue = map[string]any{"status": payload.NewStatus}
			entries = append(entries, status)
		}
		return entries

	case events.RequestOverduePayload:
		entry := base
		entry.Field = "escalation"
		entry.OldValue = map[string]any{}
		entry.NewValue = map[string]any{
			"deadline_at": payload.DeadlineAt,
			"status":      payload.Status,
		}
		entry.Note = "resolution deadline passed"
		return []domain.AuditEntry{entry}
	}
	return nil
}

func auditActorID(actor events.Actor) *string {
	switch actor.Type {
	case domain.SubjectTypeResident:
		return actor.ResidentID
	case domain.SubjectTypeStaff:
		return actor.StaffID
	default:
		return nil
	}
}
