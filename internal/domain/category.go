package domain

// MaintenanceCategory is a lookup describing a class of maintenance work.
// PriorityCeiling caps the priority residents may report for the category.
type MaintenanceCategory struct {
	ID                       string
	Name                     string
	PriorityCeiling          Priority
	EstimatedResolutionHours int
}
