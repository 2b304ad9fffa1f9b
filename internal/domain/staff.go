package domain

import "time"

// StaffRole enumerates the fixed specialist roles on the estate payroll.
type StaffRole string

const (
	RoleFacilityManager       StaffRole = "facility_manager"
	RoleMaintenanceSupervisor StaffRole = "maintenance_supervisor"
	RoleAccountant            StaffRole = "accountant"
	RoleSecurityHead          StaffRole = "security_head"
	RoleElectrician           StaffRole = "electrician"
	RolePlumber               StaffRole = "plumber"
	RoleCleaner               StaffRole = "cleaner"
	RoleGardener              StaffRole = "gardener"
)

// Every role the matcher can propose for a category must be in this set, or
// an assigned request could never be worked by its assignee.
var maintenanceCapableRoles = map[StaffRole]struct{}{
	RoleFacilityManager:       {},
	RoleMaintenanceSupervisor: {},
	RoleSecurityHead:          {},
	RoleElectrician:           {},
	RolePlumber:               {},
	RoleCleaner:               {},
	RoleGardener:              {},
}

// StaffProfile models an estate staff member and their capabilities.
type StaffProfile struct {
	ID           string
	EmployeeID   string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         StaffRole

	CanAccessAllMaintenance bool
	CanAssignRequests       bool
	CanCloseRequests        bool

	Active        bool
	ReportingToID *string

	// Notification preferences.
	EmailNotifications bool
	SMSNotifications   bool
	UrgentOnly         bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanHandleMaintenance reports whether the staff member may work maintenance
// requests: either via the access-all flag or a maintenance-capable role.
func (s *StaffProfile) CanHandleMaintenance() bool {
	if s.CanAccessAllMaintenance {
		return true
	}
	_, ok := maintenanceCapableRoles[s.Role]
	return ok
}
