package domain

import "time"

// NotificationChannel enumerates delivery channels.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationStatus tracks delivery progress for a task.
type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationExhausted NotificationStatus = "exhausted"
)

// NotificationTask is one recipient/channel delivery unit. Tasks are created
// by the dispatcher and mutated only by delivery attempts; an exhausted task
// is surfaced for manual review, never silently dropped.
type NotificationTask struct {
	ID            string
	RecipientType SubjectType
	RecipientID   string
	Channel       NotificationChannel
	TemplateKey   string
	Title         string
	Message       string
	Payload       map[string]any
	Status        NotificationStatus
	AttemptCount  int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
