package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Pinger is an interface for health check ping operations.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool  Pinger
	redis Pinger
}

// NewHealthHandler creates a new HealthHandler. redis may be nil when the
// resend throttle is disabled.
func NewHealthHandler(pool Pinger, redis Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, redis: redis}
}

// Check performs a health check by pinging the database.
// Returns 200 OK with {"status": "healthy"} when database is reachable.
// Returns 503 Service Unavailable with {"status": "unhealthy", "error": "..."} when database is unreachable.
// Redis only degrades the report: OTP throttling fails open without it.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	if err := h.pool.Ping(c.Context()); err != nil {
		log.Error().Err(err).Msg("health check failed: database unreachable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  "database connection failed",
		})
	}

	resp := fiber.Map{"status": "healthy"}
	if h.redis != nil {
		if err := h.redis.Ping(c.Context()); err != nil {
			log.Warn().Err(err).Msg("health check degraded: redis unreachable")
			resp["redis"] = "unavailable"
		} else {
			resp["redis"] = "ok"
		}
	}
	return c.JSON(resp)
}
