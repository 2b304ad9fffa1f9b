package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/estate-ops/internal/auth"
	"github.com/spec-kit/estate-ops/internal/domain"
	"github.com/spec-kit/estate-ops/internal/repository"
	apperrors "github.com/spec-kit/estate-ops/pkg/util"
)

// ResidentRegistrationInput carries fields for a new resident account.
type ResidentRegistrationInput struct {
	Name       string
	Email      string
	Phone      string
	Password   string
	FlatNumber string
	Block      string
}

// AuthResult is a signed token plus its expiry and subject.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Resident  *domain.Resident
	Staff     *domain.StaffProfile
}

// IdentityService handles resident registration and resident/staff login.
type IdentityService struct {
	store      repository.TxStore
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(store repository.TxStore, tokens *auth.TokenManager, bcryptCost int, logger *zap.Logger) *IdentityService {
	return &IdentityService{store: store, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

// RegisterResident creates a resident account with a hashed password.
func (s *IdentityService) RegisterResident(ctx context.Context, input ResidentRegistrationInput) (*domain.Resident, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || strings.TrimSpace(input.Name) == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email, password required", nil)
	}

	if _, err := s.store.Residents().GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	resident := &domain.Resident{
		Name:               strings.TrimSpace(input.Name),
		Email:              email,
		Phone:              strings.TrimSpace(input.Phone),
		PasswordHash:       hash,
		FlatNumber:         strings.TrimSpace(input.FlatNumber),
		Block:              strings.TrimSpace(input.Block),
		Active:             true,
		EmailNotifications: true,
	}
	if err := s.store.Residents().Create(ctx, resident); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("resident registered", zap.String("resident_id", resident.ID))
	return resident, nil
}

// LoginResident verifies credentials and issues a token.
func (s *IdentityService) LoginResident(ctx context.Context, email, password string) (*AuthResult, error) {
	resident, err := s.store.Residents().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !resident.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(resident.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(resident.ID, domain.SubjectTypeResident, nil)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Resident: resident}, nil
}

// LoginStaff verifies credentials and issues a token carrying the role.
func (s *IdentityService) LoginStaff(ctx context.Context, email, password string) (*AuthResult, error) {
	staff, err := s.store.Staff().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if !staff.Active {
		return nil, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(staff.ID, domain.SubjectTypeStaff, &staff.Role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Staff: staff}, nil
}

// ChangePassword rotates the caller's password after verifying the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, actor Actor, current, next string) error {
	if next == "" {
		return apperrors.NewValidationError("new password required", nil)
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.MapError(err)
	}

	switch actor.Type {
	case domain.SubjectTypeResident:
		if actor.Resident == nil {
			return apperrors.NewUnauthorized("resident required")
		}
		if err := auth.ComparePassword(actor.Resident.PasswordHash, current); err != nil {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		actor.Resident.PasswordHash = hash
		return apperrors.MapError(s.store.Residents().Update(ctx, actor.Resident))

	case domain.SubjectTypeStaff:
		if actor.Staff == nil {
			return apperrors.NewUnauthorized("staff required")
		}
		if err := auth.ComparePassword(actor.Staff.PasswordHash, current); err != nil {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		actor.Staff.PasswordHash = hash
		return apperrors.MapError(s.store.Staff().Update(ctx, actor.Staff))

	default:
		return apperrors.NewUnauthorized("unknown subject")
	}
}
