package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/estate-ops/internal/api/dto"
	"github.com/spec-kit/estate-ops/internal/auth"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/service"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// AuthHandler manages registration and login endpoints.
type AuthHandler struct {
	identity *service.IdentityService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(identity *service.IdentityService) *AuthHandler {
	return &AuthHandler{identity: identity}
}

// RegisterResident POST /auth/residents/register.
func (h *AuthHandler) RegisterResident(c *fiber.Ctx) error {
	var req dto.ResidentRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	resident, err := h.identity.RegisterResident(c.Context(), service.ResidentRegistrationInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		FlatNumber: req.FlatNumber,
		Block:      req.Block,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"id":    resident.ID,
		"name":  resident.Name,
		"email": resident.Email,
	}})
}

// LoginResident POST /auth/residents/login.
func (h *AuthHandler) LoginResident(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.identity.LoginResident(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt}})
}

// LoginStaff POST /auth/staff/login.
func (h *AuthHandler) LoginStaff(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.identity.LoginStaff(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{Token: result.Token, ExpiresAt: result.ExpiresAt}})
}

// ChangePassword POST /auth/password/change.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.identity.ChangePassword(c.Context(), principalActor(principal), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"changed": true}})
}

// principalActor converts an authenticated principal into a service actor.
func principalActor(p *auth.Principal) service.Actor {
	switch p.SubjectType {
	case domain.SubjectTypeResident:
		return service.ResidentActor(p.Resident)
	case domain.SubjectTypeStaff:
		return service.StaffActor(p.Staff)
	default:
		return service.Actor{Type: p.SubjectType}
	}
}
