package ratelimit

import (
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/example/taskboard/domain/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// Middleware limits requests per client IP.
type Middleware struct {
	mu      sync.RWMutex
	limiter ratelimit.Limiter
}

// NewMiddleware wraps limiter. A nil limiter lets every request through.
func NewMiddleware(limiter ratelimit.Limiter) *Middleware {
	return &Middleware{limiter: limiter}
}

func (m *Middleware) setLimiter(limiter ratelimit.Limiter) {
	m.mu.Lock()
	m.limiter = limiter
	m.mu.Unlock()
}

func (m *Middleware) current() ratelimit.Limiter {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limiter
}

// IPRateLimit returns a handler keyed by c.IP(). Limiter failures are logged
// and the request proceeds.
func (m *Middleware) IPRateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limiter := m.current()
		if limiter == nil {
			return c.Next()
		}

		ip := c.IP()
		if ip == "" {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Unable to determine client IP address",
			})
		}

		result, err := limiter.Allow(c.UserContext(), ip)
		if err != nil {
			log.Printf("[ratelimit] check failed for %s, allowing request: %v", ip, err)
			return c.Next()
		}

		setRateLimitHeaders(c, result, limiter.Limit())

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, result *ratelimit.Result, limit int) {
	c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func sendRateLimitExceeded(c *fiber.Ctx, result *ratelimit.Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fmt.Sprintf("Too many requests. Please retry after %d seconds.", retryAfter),
	})
}
