package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pharmaprep/platform-api/internal/api/dto"
	"github.com/pharmaprep/platform-api/internal/auth"
	"github.com/pharmaprep/platform-api/internal/domain"
	"github.com/pharmaprep/platform-api/internal/service"
	apperrors "github.com/pharmaprep/platform-api/pkg/util"
)

// AccountHandler exposes endpoints operating on the authenticated account.
type AccountHandler struct {
	auth *service.AuthService
}

// NewAccountHandler constructs handler.
func NewAccountHandler(authService *service.AuthService) *AccountHandler {
	return &AccountHandler{auth: authService}
}

// Me handles GET /api/auth/me.
func (h *AccountHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthenticated")
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":        accountResponse(principal.Account),
			"redirect_to": domain.RedirectFor(principal.Account.Role),
		},
	})
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AccountHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthenticated")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	account, err := h.auth.UpdateProfile(c.Context(), principal.Account.ID, req.Name)
	if err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{"user": accountResponse(account)},
	})
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AccountHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthenticated")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.Context(), principal.Account.ID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}

	return c.SendStatus(http.StatusNoContent)
}
