package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

const (
	// HeaderApiKey carries the admin key used by interactive tooling.
	HeaderApiKey = "X-API-Key"
	// HeaderAutomationSecret carries the shared secret used by scheduled triggers.
	HeaderAutomationSecret = "X-Automation-Secret"
)

// Role is the privilege level resolved for a request.
type Role string

const (
	RoleNone       Role = ""
	RoleAdmin      Role = "admin"
	RoleAutomation Role = "automation"
)

const localsKey = "auth_role"

// Config holds the credentials accepted by the middleware.
type Config struct {
	// ApiKey grants the admin role.
	ApiKey string
	// AutomationSecret grants the automation role. Empty disables it.
	AutomationSecret string
}

// New returns a middleware that resolves the caller's role and stores it in the context.
// It never rejects on its own; routes guard themselves with Require.
func New(cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := RoleNone
		if key := c.Get(HeaderApiKey); key != "" && equal(key, cfg.ApiKey) {
			role = RoleAdmin
		} else if secret := c.Get(HeaderAutomationSecret); secret != "" && equal(secret, cfg.AutomationSecret) {
			role = RoleAutomation
		}
		c.Locals(localsKey, role)
		return c.Next()
	}
}

// Require rejects requests whose role is not in allowed.
func Require(allowed ...Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := RoleFromCtx(c)
		if role == RoleNone {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		for _, r := range allowed {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}
}

// RequireAdmin guards elevated endpoints (bootstrap, diagnostics).
func RequireAdmin() fiber.Handler {
	return Require(RoleAdmin)
}

// RequireSync guards recurring sync endpoints, which also accept the automation secret.
func RequireSync() fiber.Handler {
	return Require(RoleAdmin, RoleAutomation)
}

// RoleFromCtx returns the role resolved by New.
func RoleFromCtx(c *fiber.Ctx) Role {
	if r, ok := c.Locals(localsKey).(Role); ok {
		return r
	}
	return RoleNone
}

func equal(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
