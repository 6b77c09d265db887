package ratelimit

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/taskboard/domain/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// countingLimiter allows the first limit calls per key.
type countingLimiter struct {
	limit int
	seen  map[string]int
	err   error
}

func newCountingLimiter(limit int) *countingLimiter {
	return &countingLimiter{limit: limit, seen: make(map[string]int)}
}

func (l *countingLimiter) Allow(_ context.Context, key string) (*ratelimit.Result, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.seen[key]++
	n := l.seen[key]
	if n > l.limit {
		return &ratelimit.Result{Allowed: false, ResetAt: time.Now().Add(time.Minute), RetryAfter: 30 * time.Second}, nil
	}
	return &ratelimit.Result{Allowed: true, Remaining: l.limit - n, ResetAt: time.Now().Add(time.Minute)}, nil
}

func (l *countingLimiter) Limit() int {
	return l.limit
}

func setupTestApp(limiter ratelimit.Limiter) *fiber.App {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Post("/auth/login", NewMiddleware(limiter).IPRateLimit(), func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func doLogin(t *testing.T, app *fiber.App, ip string) (int, string, map[string]string) {
	t.Helper()
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.Header.Set("X-Forwarded-For", ip)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	headers := map[string]string{
		"limit":       resp.Header.Get("X-RateLimit-Limit"),
		"remaining":   resp.Header.Get("X-RateLimit-Remaining"),
		"retry-after": resp.Header.Get("Retry-After"),
	}
	return resp.StatusCode, string(body), headers
}

func TestMiddleware_IPRateLimit(t *testing.T) {
	app := setupTestApp(newCountingLimiter(2))

	for i := 0; i < 2; i++ {
		status, _, headers := doLogin(t, app, "10.0.0.1")
		if status != 200 {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, status)
		}
		if headers["limit"] != "2" {
			t.Errorf("Expected X-RateLimit-Limit=2, got %s", headers["limit"])
		}
	}

	status, body, headers := doLogin(t, app, "10.0.0.1")
	if status != fiber.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", status)
	}
	if headers["retry-after"] != "30" {
		t.Errorf("Expected Retry-After=30, got %s", headers["retry-after"])
	}
	if !strings.Contains(body, `"error"`) {
		t.Errorf("Expected error body, got %s", body)
	}

	// Another client keeps its own budget.
	if status, _, _ := doLogin(t, app, "10.0.0.2"); status != 200 {
		t.Errorf("Other IP: expected status 200, got %d", status)
	}
}

func TestMiddleware_NilLimiterPassesThrough(t *testing.T) {
	app := setupTestApp(nil)
	for i := 0; i < 5; i++ {
		status, _, headers := doLogin(t, app, "10.0.0.1")
		if status != 200 {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, status)
		}
		if headers["limit"] != "" {
			t.Errorf("Expected no rate limit headers, got limit %q", headers["limit"])
		}
	}
}

func TestMiddleware_FailsOpen(t *testing.T) {
	limiter := newCountingLimiter(1)
	limiter.err = errors.New("connection refused")
	app := setupTestApp(limiter)

	for i := 0; i < 3; i++ {
		if status, _, _ := doLogin(t, app, "10.0.0.1"); status != 200 {
			t.Fatalf("Request %d: expected status 200 when limiter fails, got %d", i+1, status)
		}
	}
}

func TestModule_DisabledWithoutRedis(t *testing.T) {
	m := NewModule("", ratelimit.Config{})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer m.Stop(ctx)

	if m.Enabled() {
		t.Error("Enabled() = true, want false")
	}
	if err := m.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v, want nil", err)
	}
	if h := m.Health(ctx); !h.Healthy || h.Message != "disabled" {
		t.Errorf("Health() = %+v, want healthy/disabled", h)
	}
	if m.config != ratelimit.DefaultAuthConfig() {
		t.Errorf("config = %+v, want default", m.config)
	}

	app := fiber.New()
	app.Get("/auth/login", m.Middleware().IPRateLimit(), func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/auth/login", nil))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}
