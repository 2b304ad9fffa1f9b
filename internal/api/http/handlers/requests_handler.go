package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/estate-ops/internal/api/dto"
	"github.com/spec-kit/estate-ops/internal/auth"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/repository"
	"github.com/spec-kit/estate-ops/internal/service"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// RequestsHandler manages maintenance request endpoints.
type RequestsHandler struct {
	requests    *service.RequestService
	lifecycle   *service.LifecycleService
	assignments *service.AssignmentService
}

// NewRequestsHandler constructs handler.
func NewRequestsHandler(
	requests *service.RequestService,
	lifecycle *service.LifecycleService,
	assignments *service.AssignmentService,
) *RequestsHandler {
	return &RequestsHandler{requests: requests, lifecycle: lifecycle, assignments: assignments}
}

// Create POST /api/requests.
func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Resident == nil {
		return apperrors.NewUnauthorized("resident required")
	}
	var req dto.CreateRequestRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CategoryID == "" {
		return apperrors.NewValidationError("category_id required", nil)
	}

	request, err := h.requests.Create(c.Context(), principal.Resident.ID, service.CreateRequestInput{
		CategoryID:          req.CategoryID,
		Title:               req.Title,
		Description:         req.Description,
		Location:            req.Location,
		Priority:            req.Priority,
		EstimatedCompletion: req.EstimatedCompletion,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestDetail(request)})
}

// List GET /api/requests.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	requests, err := h.requests.ListForActor(c.Context(), parseRequestQuery(c), principalActor(principal))
	if err != nil {
		return err
	}
	items := make([]dto.RequestSummary, 0, len(requests))
	for i := range requests {
		items = append(items, requestSummary(&requests[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/requests/:id.
func (h *RequestsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	request, err := h.requests.GetForActor(c.Context(), c.Params("id"), principalActor(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request)})
}

// Transition POST /api/requests/:id/transition.
func (h *RequestsHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	request, err := h.lifecycle.Transition(c.Context(), c.Params("id"), req.Status, principalActor(principal), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request)})
}

// Assign POST /api/requests/:id/assign.
func (h *RequestsHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.StaffID == "" {
		return apperrors.NewValidationError("staff_id required", nil)
	}
	request, err := h.assignments.Assign(c.Context(), c.Params("id"), req.StaffID, principalActor(principal))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request)})
}

// Candidates GET /api/requests/:id/candidates.
func (h *RequestsHandler) Candidates(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return apperrors.NewUnauthorized("staff required")
	}
	candidates, err := h.assignments.Candidates(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.CandidateResponse, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, dto.CandidateResponse{
			StaffID:  candidate.Staff.ID,
			Name:     candidate.Staff.Name,
			Role:     candidate.Staff.Role,
			Workload: candidate.Workload,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Audit GET /api/requests/:id/audit.
func (h *RequestsHandler) Audit(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	entries, err := h.requests.AuditTrail(c.Context(), c.Params("id"), principalActor(principal), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	items := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.AuditEntryResponse{
			ID:        entry.ID,
			ActorType: entry.ActorType,
			ActorID:   entry.ActorID,
			Field:     entry.Field,
			OldValue:  entry.OldValue,
			NewValue:  entry.NewValue,
			Note:      entry.Note,
			CreatedAt: entry.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Assignments GET /api/requests/:id/assignments.
func (h *RequestsHandler) Assignments(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	records, err := h.requests.AssignmentHistory(c.Context(), c.Params("id"), principalActor(principal))
	if err != nil {
		return err
	}
	items := make([]dto.AssignmentRecordResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.AssignmentRecordResponse{
			ID:           record.ID,
			StaffID:      record.StaffID,
			AssignedByID: record.AssignedByID,
			CreatedAt:    record.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}

// Feedback POST /api/requests/:id/feedback.
func (h *RequestsHandler) Feedback(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Resident == nil {
		return apperrors.NewUnauthorized("resident required")
	}
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	request, err := h.requests.SetResidentFeedback(c.Context(), c.Params("id"), principal.Resident.ID, req.Rating, req.Feedback)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestDetail(request)})
}

func parseRequestQuery(c *fiber.Ctx) repository.RequestFilter {
	filter := repository.RequestFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.RequestStatus(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			if parsed, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				filter.Priorities = append(filter.Priorities, domain.Priority(parsed))
			}
		}
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		filter.CategoryID = &categoryID
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func requestSummary(request *domain.MaintenanceRequest) dto.RequestSummary {
	return dto.RequestSummary{
		ID:           request.ID,
		TicketNumber: request.TicketNumber,
		CategoryID:   request.CategoryID,
		Title:        request.Title,
		Location:     request.Location,
		Priority:     request.Priority,
		Status:       request.Status,
		AssigneeID:   request.AssigneeID,
		CreatedAt:    request.CreatedAt,
		UpdatedAt:    request.UpdatedAt,
	}
}

func requestDetail(request *domain.MaintenanceRequest) dto.RequestDetailResponse {
	return dto.RequestDetailResponse{
		ID:                  request.ID,
		TicketNumber:        request.TicketNumber,
		ResidentID:          request.ResidentID,
		CategoryID:          request.CategoryID,
		Title:               request.Title,
		Description:         request.Description,
		Location:            request.Location,
		Priority:            request.Priority,
		Status:              request.Status,
		AssigneeID:          request.AssigneeID,
		AssignedByID:        request.AssignedByID,
		EstimatedCost:       request.EstimatedCost,
		ActualCost:          request.ActualCost,
		EstimatedCompletion: request.EstimatedCompletion,
		AcknowledgedAt:      request.AcknowledgedAt,
		AssignedAt:          request.AssignedAt,
		ResolvedAt:          request.ResolvedAt,
		ClosedAt:            request.ClosedAt,
		ResidentRating:      request.ResidentRating,
		ResidentFeedback:    request.ResidentFeedback,
		CreatedAt:           request.CreatedAt,
		UpdatedAt:           request.UpdatedAt,
	}
}
