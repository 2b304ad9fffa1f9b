package domain

import "time"

// AssignmentRecord is the append-only fact that a request was handed to a
// staff member. Records are never mutated after creation; they back workload
// accounting and the audit trail.
type AssignmentRecord struct {
	ID           string
	RequestID    string
	StaffID      string
	AssignedByID string
	CreatedAt    time.Time
}
