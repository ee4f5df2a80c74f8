package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-console/internal/config"
	"fleet-console/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler, hub *Hub) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.GET("/alerts", h.GetAlerts)
		api.GET("/alerts/count", h.GetAlertCount)
		api.POST("/alerts/acknowledge", h.AcknowledgeAlert)
		api.DELETE("/alerts", h.ClearAlerts)

		// Jobs
		api.POST("/jobs/:id/status/otw", h.StartTrip)

		// Settings
		api.GET("/settings/alerts", h.GetSettings)
	}

	r.GET("/ws", hub.HandleWS)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
