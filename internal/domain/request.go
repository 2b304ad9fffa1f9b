package domain

import "time"

// RequestStatus enumerates lifecycle states for maintenance requests.
type RequestStatus string

const (
	StatusSubmitted    RequestStatus = "submitted"
	StatusAcknowledged RequestStatus = "acknowledged"
	StatusAssigned     RequestStatus = "assigned"
	StatusInProgress   RequestStatus = "in_progress"
	StatusResolved     RequestStatus = "resolved"
	StatusClosed       RequestStatus = "closed"
	StatusCancelled    RequestStatus = "cancelled"
)

// Priority is the 1..4 urgency scale (1=Low, 2=Medium, 3=High, 4=Emergency).
type Priority int

const (
	PriorityLow       Priority = 1
	PriorityMedium    Priority = 2
	PriorityHigh      Priority = 3
	PriorityEmergency Priority = 4
)

// Clamp bounds the priority to [1, ceiling].
func (p Priority) Clamp(ceiling Priority) Priority {
	if p < PriorityLow {
		return PriorityLow
	}
	if p > ceiling {
		return ceiling
	}
	return p
}

// Urgent reports whether the priority qualifies for urgent-only delivery.
func (p Priority) Urgent() bool {
	return p >= PriorityHigh
}

var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusSubmitted:    {StatusAcknowledged, StatusCancelled},
	StatusAcknowledged: {StatusAssigned, StatusInProgress, StatusCancelled},
	StatusAssigned:     {StatusInProgress, StatusAcknowledged, StatusCancelled},
	StatusInProgress:   {StatusResolved, StatusAssigned, StatusCancelled},
	StatusResolved:     {StatusClosed, StatusInProgress},
	StatusClosed:       {},
	StatusCancelled:    {},
}

// CanTransitionTo reports whether target is a legal edge from s.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the status has no outgoing edges.
func (s RequestStatus) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Open reports whether the request counts toward an assignee's workload.
func (s RequestStatus) Open() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// MaintenanceRequest is the aggregate for resident maintenance reports.
type MaintenanceRequest struct {
	ID           string
	TicketNumber string
	ResidentID   string
	CategoryID   string
	Title        string
	Description  string
	Location     string
	Priority     Priority
	Status       RequestStatus
	AssigneeID   *string
	AssignedByID *string

	EstimatedCost       *float64
	ActualCost          *float64
	EstimatedCompletion *time.Time

	AcknowledgedAt  *time.Time
	AssignedAt      *time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	LastEscalatedAt *time.Time

	ResidentRating   *int
	ResidentFeedback string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StampStatusTimestamp records the first entry into a status. Timestamps are
// historical markers: re-entering a status (e.g. a reopen cycle) never
// rewrites them.
func (r *MaintenanceRequest) StampStatusTimestamp(status RequestStatus, at time.Time) {
	switch status {
	case StatusAcknowledged:
		if r.AcknowledgedAt == nil {
			r.AcknowledgedAt = &at
		}
	case StatusAssigned:
		if r.AssignedAt == nil {
			r.AssignedAt = &at
		}
	case StatusResolved:
		if r.ResolvedAt == nil {
			r.ResolvedAt = &at
		}
	case StatusClosed:
		if r.ClosedAt == nil {
			r.ClosedAt = &at
		}
	}
}

// DeadlineAt returns the target-resolution deadline: an explicit estimate when
// set, otherwise created_at plus the category's expected resolution window.
func (r *MaintenanceRequest) DeadlineAt(category *MaintenanceCategory) time.Time {
	if r.EstimatedCompletion != nil {
		return *r.EstimatedCompletion
	}
	hours := 24
	if category != nil && category.EstimatedResolutionHours > 0 {
		hours = category.EstimatedResolutionHours
	}
	return r.CreatedAt.Add(time.Duration(hours) * time.Hour)
}
