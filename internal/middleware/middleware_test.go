package middleware

import (
	jwtPkg "RiseAndShine/pkg/jwt"
	"RiseAndShine/pkg/utils"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestApp(t *testing.T, cfg Config) *fiber.App {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := New(logger, utils.New(), cfg)

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware())
	app.Get("/whoami", m.NewRateLimiter, m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		client, err := jwtPkg.GetClientLoginData(c)
		if err != nil {
			return c.SendString("anonymous")
		}
		return c.SendString(client.ID)
	})
	return app
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	app := newTestApp(t, Config{})

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(RequestIDKey) == "" {
		t.Fatal("expected generated request id header")
	}

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(RequestIDKey, "req-123")
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(RequestIDKey); got != "req-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestTokenOptionalWithoutSecret(t *testing.T) {
	app := newTestApp(t, Config{})

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestTokenRequiredWithSecret(t *testing.T) {
	app := newTestApp(t, Config{TokenSecret: "s3cret"})

	resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status without token = %d", resp.StatusCode)
	}

	token, _, err := jwtPkg.Sign("s3cret", map[string]interface{}{"sub": "bedside"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status with token = %d", resp.StatusCode)
	}
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	app := newTestApp(t, Config{RateLimit: 0.001, RateBurst: 1})

	first, err := app.Test(httptest.NewRequest("GET", "/whoami", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if first.StatusCode != fiber.StatusOK {
		t.Fatalf("first status = %d", first.StatusCode)
	}
	second, err := app.Test(httptest.NewRequest("GET", "/whoami", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if second.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("second status = %d", second.StatusCode)
	}
}

func TestSanitizeRequestBody(t *testing.T) {
	got := sanitizeRequestBody([]byte(`{"label":"work","api_key":"abc"}`))
	if got != `{"api_key":"[SECRET]","label":"work"}` {
		t.Fatalf("sanitized = %s", got)
	}
	if sanitizeRequestBody([]byte("not json")) != "[non-JSON body]" {
		t.Fatal("expected non-JSON marker")
	}
}
