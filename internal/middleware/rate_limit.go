package middleware

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimit creates a per-identity rate limiter used on the submission route.
// Requests are keyed by the submitting email when present, falling back to
// the client IP.
func RateLimit(identifier string, max int, window time.Duration) fiber.Handler {
	if max <= 0 {
		max = 10
	}
	if window <= 0 {
		window = time.Second
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			identity := strings.TrimSpace(c.Get("X-Student-Email"))
			if identity == "" {
				identity = c.IP()
			}
			return fmt.Sprintf("%s:%s", identifier, identity)
		},
	})
}
