package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Paths the gateway middleware lets through unauthenticated.
const (
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

func SetupHealthRoutes(app fiber.Router, registry *prometheus.Registry) {
	app.Get(HealthPath, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if registry != nil {
		app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}
}
