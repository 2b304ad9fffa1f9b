package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/estate-ops/internal/api/dto"
	"github.com/spec-kit/estate-ops/internal/auth"
	"github.com/spec-kit/estate-ops/internal/directory"
	"github.com/spec-kit/estate-ops/internal/service"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// StaffHandler manages staff directory endpoints.
type StaffHandler struct {
	requests *service.RequestService
	dir      *directory.Service
}

// NewStaffHandler constructs handler.
func NewStaffHandler(requests *service.RequestService, dir *directory.Service) *StaffHandler {
	return &StaffHandler{requests: requests, dir: dir}
}

// Workload GET /api/staff/:id/workload.
func (h *StaffHandler) Workload(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	workload, err := h.requests.Workload(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.WorkloadResponse{
		StaffID:            workload.StaffID,
		ActiveCount:        workload.ActiveCount,
		CompletedThisMonth: workload.CompletedThisMonth,
	}})
}

// SetReporting PUT /api/staff/:id/reporting.
func (h *StaffHandler) SetReporting(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	if !h.dir.ResolvePermission(principal.Staff, directory.CapabilityAccessAllMaintenance) {
		return apperrors.NewForbidden("insufficient permissions")
	}
	var req dto.SetReportingRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	staff, err := h.dir.SetReportingTo(c.Context(), c.Params("id"), req.ReportingToID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"staff_id":        staff.ID,
		"reporting_to_id": staff.ReportingToID,
	}})
}
