package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventRequestCreated  EventType = "request_created"
	EventStatusChanged   EventType = "request_status_changed"
	EventRequestAssigned EventType = "request_assigned"
	EventRequestOverdue  EventType = "request_overdue"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type       domain.SubjectType `json:"type"`
	ResidentID *string            `json:"resident_id,omitempty"`
	StaffID    *string            `json:"staff_id,omitempty"`
}

// ResidentActor builds an actor for a resident.
func ResidentActor(id string) Actor {
	return Actor{Type: domain.SubjectTypeResident, ResidentID: &id}
}

// StaffActor builds an actor for a staff member.
func StaffActor(id string) Actor {
	return Actor{Type: domain.SubjectTypeStaff, StaffID: &id}
}

// SystemActor builds an actor for engine-originated events.
func SystemActor() Actor {
	return Actor{Type: domain.SubjectTypeSystem}
}

// Event represents a domain event emitted by the lifecycle engine. Payloads
// carry the before/after values downstream consumers need, so neither the
// audit logger nor the notification dispatcher re-reads mutable state.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RequestCreatedPayload payload.
type RequestCreatedPayload struct {
	TicketNumber string          `json:"ticket_number"`
	ResidentID   string          `json:"resident_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Title        string          `json:"title"`
	Location     string          `json:"location"`
	Priority     domain.Priority `json:"priority"`
}

// StatusChangedPayload payload.
type StatusChangedPayload struct {
	TicketNumber string               `json:"ticket_number"`
	OldStatus    domain.RequestStatus `json:"old_status"`
	NewStatus    domain.RequestStatus `json:"new_status"`
	ResidentID   string               `json:"resident_id"`
	AssigneeID   *string              `json:"assignee_id,omitempty"`
	Priority     domain.Priority      `json:"priority"`
	Comment      string               `json:"comment,omitempty"`
}

// RequestAssignedPayload payload. Distinct from the generic status change so
// recipients can be told who the work moved from and to.
type RequestAssignedPayload struct {
	TicketNumber  string               `json:"ticket_number"`
	OldAssigneeID *string              `json:"old_assignee_id,omitempty"`
	NewAssigneeID string               `json:"new_assignee_id"`
	AssignedByID  string               `json:"assigned_by_id"`
	ResidentID    string               `json:"resident_id"`
	Priority      domain.Priority      `json:"priority"`
	OldStatus     domain.RequestStatus `json:"old_status"`
	NewStatus     domain.RequestStatus `json:"new_status"`
}

// RequestOverduePayload payload.
type RequestOverduePayload struct {
	TicketNumber string               `json:"ticket_number"`
	ResidentID   string               `json:"resident_id"`
	AssigneeID   *string              `json:"assignee_id,omitempty"`
	Priority     domain.Priority      `json:"priority"`
	Status       domain.RequestStatus `json:"status"`
	DeadlineAt   time.Time            `json:"deadline_at"`
}

// DecodeEvent rebuilds a typed Event from its JSON form. Used by the outbox
// relay, which round-trips events through the database.
func DecodeEvent(data []byte) (Event, error) {
	var raw struct {
		ID        string          `json:"id"`
		Type      EventType       `json:"type"`
		RequestID string          `json:"request_id"`
		Actor     Actor           `json:"actor"`
		Timestamp time.Time       `json:"timestamp"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, err
	}

	event := Event{
		ID:        raw.ID,
		Type:      raw.Type,
		RequestID: raw.RequestID,
		Actor:     raw.Actor,
		Timestamp: raw.Timestamp,
	}

	switch raw.Type {
	case EventRequestCreated:
		var payload RequestCreatedPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	case EventStatusChanged:
		var payload StatusChangedPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	case EventRequestAssigned:
		var payload RequestAssignedPayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	case EventRequestOverdue:
		var payload RequestOverduePayload
		if err := json.Unmarshal(raw.Payload, &payload); err != nil {
			return Event{}, err
		}
		event.Payload = payload
	default:
		return Event{}, fmt.Errorf("unknown event type %q", raw.Type)
	}
	return event, nil
}
