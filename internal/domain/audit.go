package domain

import "time"

// AuditEntry is an immutable record of a single field change on a request.
// ActorID is nil for system-generated entries (e.g. escalation notes).
type AuditEntry struct {
	ID        string
	RequestID string
	ActorType SubjectType
	ActorID   *string
	Field     string
	OldValue  map[string]any
	NewValue  map[string]any
	Note      string
	CreatedAt time.Time
}
