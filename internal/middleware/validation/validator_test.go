package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/api/v1/search", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func postJSON(t *testing.T, app *fiber.App, body string) int {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/v1/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestMiddleware_SearchValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"Valid_Query", `{"query":"business hours","tenantId":"t1"}`, fiber.StatusOK},
		{"Missing_Query", `{"tenantId":"t1"}`, fiber.StatusBadRequest},
		{"Malformed_JSON", `{"query":`, fiber.StatusBadRequest},
		{"Script_Injection", `{"query":"<script>alert(1)</script>"}`, fiber.StatusBadRequest},
	}

	app := newTestApp(Config{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postJSON(t, app, tt.body); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

// The zero-value Config must be usable as-is, including the XSS branch
// that writes to the logger.
func TestMiddleware_ZeroConfigDoesNotPanic(t *testing.T) {
	app := newTestApp(Config{})

	if got := postJSON(t, app, `{"query":"javascript:alert(1)"}`); got != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", got, fiber.StatusBadRequest)
	}
}
