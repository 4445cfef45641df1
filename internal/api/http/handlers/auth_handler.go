package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/api/dto"
	"github.com/pharmaprep/platform-api/internal/domain"
	"github.com/pharmaprep/platform-api/internal/service"
	apperrors "github.com/pharmaprep/platform-api/pkg/util"
)

// AuthHandler exposes the public auth endpoints.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	account, token, exp, err := h.auth.Register(c.Context(), req.Name, req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return apperrors.NewConflict("email already registered", nil)
		}
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return apperrors.NewValidationError("invalid role", nil)
		}
		return apperrors.MapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user":        accountResponse(account),
			"auth":        dto.AuthResponse{Token: token, ExpiresAt: exp},
			"redirect_to": domain.RedirectFor(account.Role),
		},
	})
}

// Login handles POST /api/auth/login. Wrong password, unknown email and
// suspended account all collapse to the same 401.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	account, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) || errors.Is(err, domain.ErrAccountSuspended) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":        accountResponse(account),
			"auth":        dto.AuthResponse{Token: token, ExpiresAt: exp},
			"redirect_to": domain.RedirectFor(account.Role),
		},
	})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is the
// same whether or not the address belongs to an account.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	if err := h.auth.RequestPasswordReset(c.Context(), req.Email); err != nil {
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"message": "If an account exists for that address, a reset link has been sent.",
		},
	})
}

// ResetPassword handles POST /api/auth/reset-password. Invalid and expired
// tokens produce an identical response body.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := validateStruct(&req); err != nil {
		return err
	}

	if err := h.auth.ResetPassword(c.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, domain.ErrInvalidResetToken) || errors.Is(err, domain.ErrExpiredResetToken) {
			// The kinds stay distinct in logs only.
			h.logger.Info("reset token redemption refused", zap.Error(err))
			return apperrors.NewInvalidOrExpiredToken()
		}
		return apperrors.MapError(err)
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"message": "Password updated. You can now log in with your new password.",
		},
	})
}

func accountResponse(account *domain.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:        account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      string(account.Role),
		CreatedAt: account.CreatedAt,
	}
}
