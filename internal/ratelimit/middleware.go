package ratelimit

import (
	"github.com/gofiber/fiber/v2"
)

// CallerHeader lets trusted clients identify themselves; requests without it
// are accounted per client IP.
const CallerHeader = "X-Caller-ID"

// CallerID identifies the requester for rate accounting: an explicit header
// when present, the client IP otherwise.
func CallerID(c *fiber.Ctx) string {
	if caller := c.Get(CallerHeader); caller != "" {
		return caller
	}
	return c.IP()
}

// Middleware gates a route group with the limiter on the given channel,
// answering 429 with the structured rate-limit shape.
func Middleware(limiter *Limiter, channel string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.CheckLimit(CallerID(c), channel) {
			return c.Status(fiber.StatusTooManyRequests).JSON(Result{
				Success: false,
				Error: &ErrorInfo{
					Message: rateLimitMessage,
					Code:    CodeRateLimitExceeded,
				},
			})
		}
		return c.Next()
	}
}
