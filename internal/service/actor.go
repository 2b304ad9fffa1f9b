package service

import (
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/events"
)

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	Type     domain.SubjectType
	Resident *domain.Resident
	Staff    *domain.StaffProfile
}

// ResidentActor wraps a resident caller.
func ResidentActor(resident *domain.Resident) Actor {
	return Actor{Type: domain.SubjectTypeResident, Resident: resident}
}

// StaffActor wraps a staff caller.
func StaffActor(staff *domain.StaffProfile) Actor {
	return Actor{Type: domain.SubjectTypeStaff, Staff: staff}
}

// EventActor converts the caller into event actor metadata.
func (a Actor) EventActor() events.Actor {
	switch a.Type {
	case domain.SubjectTypeResident:
		if a.Resident != nil {
			return events.ResidentActor(a.Resident.ID)
		}
	case domain.SubjectTypeStaff:
		if a.Staff != nil {
			return events.StaffActor(a.Staff.ID)
		}
	}
	return events.SystemActor()
}

// IsResident reports whether the caller is the given resident.
func (a Actor) IsResident(residentID string) bool {
	return a.Type == domain.SubjectTypeResident && a.Resident != nil && a.Resident.ID == residentID
}

// IsStaff reports whether the caller is the given staff member.
func (a Actor) IsStaff(staffID string) bool {
	return a.Type == domain.SubjectTypeStaff && a.Staff != nil && a.Staff.ID == staffID
}
