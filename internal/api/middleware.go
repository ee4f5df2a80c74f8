package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"fleet-console/internal/logging"
)

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Infof("Request %s: %s %s, Status: %d, Latency: %v", requestID, method, path, status, latency)
	}
}
