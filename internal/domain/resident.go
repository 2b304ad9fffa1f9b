package domain

import "time"

// Resident models a housing-complex resident account.
type Resident struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	FlatNumber   string
	Block        string

	IsCommitteeMember bool
	Active            bool

	// Notification preferences.
	EmailNotifications bool
	SMSNotifications   bool
	UrgentOnly         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
