package dto

import (
	"time"

	"github.com/spec-kit/estate-ops/internal/domain"
)

// CreateRequestRequest payload.
type CreateRequestRequest struct {
	CategoryID          string          `json:"category_id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Location            string          `json:"location"`
	Priority            domain.Priority `json:"priority"`
	EstimatedCompletion *time.Time      `json:"estimated_completion"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status  domain.RequestStatus `json:"status"`
	Comment string               `json:"comment"`
}

// AssignRequest payload.
type AssignRequest struct {
	StaffID string `json:"staff_id"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// RequestSummary response.
type RequestSummary struct {
	ID           string               `json:"id"`
	TicketNumber string               `json:"ticket_number"`
	CategoryID   string               `json:"category_id"`
	Title        string               `json:"title"`
	Location     string               `json:"location"`
	Priority     domain.Priority      `json:"priority"`
	Status       domain.RequestStatus `json:"status"`
	AssigneeID   *string              `json:"assignee_id"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// RequestDetailResponse provides full request info.
type RequestDetailResponse struct {
	ID                  string               `json:"id"`
	TicketNumber        string               `json:"ticket_number"`
	ResidentID          string               `json:"resident_id"`
	CategoryID          string               `json:"category_id"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Location            string               `json:"location"`
	Priority            domain.Priority      `json:"priority"`
	Status              domain.RequestStatus `json:"status"`
	AssigneeID          *string              `json:"assignee_id"`
	AssignedByID        *string              `json:"assigned_by_id"`
	EstimatedCost       *float64             `json:"estimated_cost"`
	ActualCost          *float64             `json:"actual_cost"`
	EstimatedCompletion *time.Time           `json:"estimated_completion"`
	AcknowledgedAt      *time.Time           `json:"acknowledged_at"`
	AssignedAt          *time.Time           `json:"assigned_at"`
	ResolvedAt          *time.Time           `json:"resolved_at"`
	ClosedAt            *time.Time           `json:"closed_at"`
	ResidentRating      *int                 `json:"resident_rating"`
	ResidentFeedback    string               `json:"resident_feedback,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// AuditEntryResponse is one audit trail row.
type AuditEntryResponse struct {
	ID        string             `json:"id"`
	ActorType domain.SubjectType `json:"actor_type"`
	ActorID   *string            `json:"actor_id"`
	Field     string             `json:"field"`
	OldValue  map[string]any     `json:"old_value"`
	NewValue  map[string]any     `json:"new_value"`
	Note      string             `json:"note,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// CandidateResponse is one suitable staff member.
type CandidateResponse struct {
	StaffID  string           `json:"staff_id"`
	Name     string           `json:"name"`
	Role     domain.StaffRole `json:"role"`
	Workload int              `json:"workload"`
}

// AssignmentRecordResponse is one assignment history row.
type AssignmentRecordResponse struct {
	ID           string    `json:"id"`
	StaffID      string    `json:"staff_id"`
	AssignedByID string    `json:"assigned_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}
