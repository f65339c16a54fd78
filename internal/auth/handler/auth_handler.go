package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/dto"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service"
)

type AuthHandler struct {
	auth *service.AuthService
	log  *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, log: log}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	resp, err := h.auth.Login(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *AuthHandler) GoogleLogin(c *fiber.Ctx) error {
	var input dto.GoogleLoginInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	resp, err := h.auth.LoginWithGoogle(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *AuthHandler) GoogleAuthURL(c *fiber.Ctx) error {
	resp, err := h.auth.GoogleAuthURL()
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	resp, err := h.auth.Refresh(c.UserContext(), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// Logout runs behind RequireAuth.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, _ := PrincipalFrom(c)

	var input dto.LogoutInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.auth.Logout(c.UserContext(), principal, input); err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, _ := PrincipalFrom(c)

	out, err := h.auth.Me(c.UserContext(), principal)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// Health pings the account store.
func (h *AuthHandler) Health(c *fiber.Ctx) error {
	if err := h.auth.Ping(c.UserContext()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
