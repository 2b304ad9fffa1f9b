package dto

// WorkloadResponse summarizes a staff member's load.
type WorkloadResponse struct {
	StaffID            string `json:"staff_id"`
	ActiveCount        int    `json:"active_count"`
	CompletedThisMonth int    `json:"completed_this_month"`
}

// SetReportingRequest payload for re-parenting a staff member.
type SetReportingRequest struct {
	ReportingToID *string `json:"reporting_to_id"`
}
