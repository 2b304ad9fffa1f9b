package domain

// SubjectType identifies the kind of actor performing an operation.
type SubjectType string

const (
	SubjectTypeResident SubjectType = "RESIDENT"
	SubjectTypeStaff    SubjectType = "STAFF"
	SubjectTypeSystem   SubjectType = "SYSTEM"
)
