package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	authconstant "github.com/minuradeSilva2000/Employee-Register-App-sub000/pkg/constant"
)

// PrincipalFrom returns the principal RequireAuth attached to the request.
func PrincipalFrom(c *fiber.Ctx) (domain.Principal, bool) {
	p, ok := c.Locals(authconstant.LocalsPrincipal).(domain.Principal)
	return p, ok
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	header := c.Get(authconstant.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, authconstant.DefaultTokenType) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireAuth resolves the bearer token into a principal. Expired tokens get
// the token_expired code so clients know to refresh; every other failure is
// token_invalid.
func (h *AuthHandler) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return respondError(c, h.log, autherror.ErrTokenMalformed)
		}

		principal, err := h.auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return respondError(c, h.log, err)
		}

		c.Locals(authconstant.LocalsPrincipal, principal)
		return c.Next()
	}
}

// RequireRole must run after RequireAuth.
func (h *AuthHandler) RequireRole(roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return respondError(c, h.log, autherror.ErrTokenMalformed)
		}
		if !principal.HasAnyRole(roles...) {
			return respondError(c, h.log, autherror.ErrForbidden)
		}
		return c.Next()
	}
}

// RequirePermission passes only principals holding every listed permission.
func (h *AuthHandler) RequirePermission(perms ...domain.Permission) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFrom(c)
		if !ok {
			return respondError(c, h.log, autherror.ErrTokenMalformed)
		}
		if !principal.HasAllPermissions(perms...) {
			return respondError(c, h.log, autherror.ErrForbidden)
		}
		return c.Next()
	}
}
