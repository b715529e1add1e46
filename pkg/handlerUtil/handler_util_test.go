package handlerUtil

import (
	"RiseAndShine/pkg/response"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestHandleMapsErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := New(logger)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"domain", response.NewError(fiber.StatusConflict, "session already dismissed"), fiber.StatusConflict, "session already dismissed"},
		{"wrapped domain", fmt.Errorf("stop: %w", response.NewError(fiber.StatusNotFound, "session not found")), fiber.StatusNotFound, "stop: session not found"},
		{"fiber", fiber.ErrUpgradeRequired, fiber.StatusUpgradeRequired, "Upgrade Required"},
		{"deadline", context.DeadlineExceeded, fiber.StatusRequestTimeout, "Request Timeout"},
		{"unexpected", errors.New("disk on fire"), fiber.StatusInternalServerError, "trace_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return h.Handle(c, "01REQ", tt.err, c.Path(), "test")
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
			if err != nil {
				t.Fatal(err)
			}
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Fatalf("body = %s", body)
			}
		})
	}
}
