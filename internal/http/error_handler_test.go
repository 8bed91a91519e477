package handlers_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	html "github.com/gofiber/template/html/v2"

	"shopfront/internal/http/handlers"
)

// friendly error surface, no internal leakage
func TestErrorHandlerFriendlyMessage(t *testing.T) {
	engine := html.New("../../web/templates", ".html")
	app := fiber.New(fiber.Config{Views: engine, ErrorHandler: handlers.ErrorHandler})
	app.Use(requestid.New())

	// Route that triggers an internal error
	app.Get("/err", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusInternalServerError, "db timeout: secret trace")
	})

	var resp *httptestResponse
	logs := captureLogs(t, func() {
		r, err := app.Test(httptest.NewRequest("GET", "/err", nil))
		if err != nil {
			t.Fatalf("test request failed: %v", err)
		}
		body, _ := io.ReadAll(r.Body)
		resp = &httptestResponse{status: r.StatusCode, body: string(body)}
	})
	if resp.status != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.status)
	}
	if !strings.Contains(resp.body, "Something went wrong") {
		t.Fatalf("friendly message missing; body=%s", resp.body)
	}
	if strings.Contains(resp.body, "db timeout") || strings.Contains(resp.body, "secret") {
		t.Fatalf("internal details leaked to user; body=%s", resp.body)
	}
	if _, ok := findLog(logs, "server.error"); !ok {
		t.Fatal("server.error log not found")
	}
}

type httptestResponse struct {
	status int
	body   string
}

func TestUnknownRouteRendersNotFound(t *testing.T) {
	h := newHarness(t)
	b := h.browser(t)
	resp := b.get("/no/such/page")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(bodyOf(t, resp), "Page not found") {
		t.Fatal("not-found page missing message")
	}
	if hz := b.get("/healthz"); hz.StatusCode != fiber.StatusOK {
		t.Fatalf("healthz: %d", hz.StatusCode)
	}
}
