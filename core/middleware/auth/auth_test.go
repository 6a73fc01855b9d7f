package auth_test

import (
	"net/http/httptest"
	"testing"

	"channel-manager/core/middleware/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(auth.New(auth.Config{ApiKey: "admin-key", AutomationSecret: "cron-secret"}))
	ok := func(c *fiber.Ctx) error { return c.SendString(string(auth.RoleFromCtx(c))) }
	app.Post("/bootstrap", auth.RequireAdmin(), ok)
	app.Post("/sync/pull", auth.RequireSync(), ok)
	return app
}

func TestAuth(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		path   string
		header string
		value  string
		want   int
	}{
		{"Admin Bootstrap", "/bootstrap", auth.HeaderApiKey, "admin-key", 200},
		{"Automation Bootstrap Forbidden", "/bootstrap", auth.HeaderAutomationSecret, "cron-secret", 403},
		{"Automation Pull", "/sync/pull", auth.HeaderAutomationSecret, "cron-secret", 200},
		{"Admin Pull", "/sync/pull", auth.HeaderApiKey, "admin-key", 200},
		{"Wrong Key", "/sync/pull", auth.HeaderApiKey, "nope", 401},
		{"No Credentials", "/bootstrap", "", "", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tt.path, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuth_EmptySecretDisablesAutomation(t *testing.T) {
	app := fiber.New()
	app.Use(auth.New(auth.Config{ApiKey: "admin-key"}))
	app.Post("/sync/pull", auth.RequireSync(), func(c *fiber.Ctx) error { return nil })

	req := httptest.NewRequest("POST", "/sync/pull", nil)
	req.Header.Set(auth.HeaderAutomationSecret, "")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}
