package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/dto"
	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/service"
)

// AccountHandler serves the /accounts administration routes. Every route is
// mounted behind RequireAuth and a permission guard.
type AccountHandler struct {
	accounts *service.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *service.AccountService, log *zap.Logger) *AccountHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountHandler{accounts: accounts, log: log}
}

func (h *AccountHandler) Create(c *fiber.Ctx) error {
	actor, _ := PrincipalFrom(c)

	var input dto.CreateAccountInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	out, err := h.accounts.CreateAccount(c.UserContext(), actor, input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (h *AccountHandler) List(c *fiber.Ctx) error {
	out, err := h.accounts.ListAccounts(c.UserContext())
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

func (h *AccountHandler) UpdateRole(c *fiber.Ctx) error {
	actor, _ := PrincipalFrom(c)

	var input dto.UpdateRoleInput
	if err := bind(c, &input); err != nil {
		return respondError(c, h.log, err)
	}

	out, err := h.accounts.UpdateRole(c.UserContext(), actor, c.Params("id"), input)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

func (h *AccountHandler) Deactivate(c *fiber.Ctx) error {
	actor, _ := PrincipalFrom(c)
	if err := h.accounts.Deactivate(c.UserContext(), actor, c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AccountHandler) Activate(c *fiber.Ctx) error {
	actor, _ := PrincipalFrom(c)
	if err := h.accounts.Activate(c.UserContext(), actor, c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *AccountHandler) ListSessions(c *fiber.Ctx) error {
	out, err := h.accounts.ListSessions(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(out)
}

// RevokeSessions force-logs the account out of every session.
func (h *AccountHandler) RevokeSessions(c *fiber.Ctx) error {
	actor, _ := PrincipalFrom(c)
	if err := h.accounts.RevokeSessions(c.UserContext(), actor, c.Params("id")); err != nil {
		return respondError(c, h.log, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
