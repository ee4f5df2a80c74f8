package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet-console/internal/backend"
	"fleet-console/internal/logging"
	"fleet-console/internal/monitor"
	"fleet-console/internal/store"
)

type Handler struct {
	store   *store.Store
	monitor *monitor.Monitor
	logger  *logging.Logger
}

func NewHandler(st *store.Store, mon *monitor.Monitor, logger *logging.Logger) *Handler {
	return &Handler{store: st, monitor: mon, logger: logger}
}

// GetAlerts returns the store's current snapshot plus the unread count and
// the last poll error, if any, for banner display.
func (h *Handler) GetAlerts(c *gin.Context) {
	lastErr, lastErrAt := h.monitor.LastError()
	resp := gin.H{
		"alerts":       h.store.Alerts(),
		"unread_count": h.store.UnreadCount(),
	}
	if lastErr != "" {
		resp["last_error"] = lastErr
		resp["last_error_at"] = lastErrAt
	}
	c.JSON(http.StatusOK, resp)
}

// GetAlertCount serves the badge counts from the store.
func (h *Handler) GetAlertCount(c *gin.Context) {
	alerts := h.store.Alerts()
	c.JSON(http.StatusOK, gin.H{
		"active_count": h.store.UnreadCount(),
		"total_count":  len(alerts),
	})
}

// AcknowledgeAlert dismisses an alert locally and confirms it upstream. The
// local dismissal stands even when the upstream call fails; the error body
// tells the operator to retry.
func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	var req struct {
		AlertID int64 `json:"alert_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid acknowledge request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.monitor.Dismiss(c.Request.Context(), req.AlertID); err != nil {
		c.JSON(upstreamStatus(err), gin.H{
			"error":           err.Error(),
			"local_dismissed": true,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert acknowledged", "alert_id": req.AlertID})
}

// StartTrip moves a job to on-the-way. The matching alert is dismissed only
// after the backend confirms.
func (h *Handler) StartTrip(c *gin.Context) {
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		h.logger.Errorf("Invalid job id %s: %v", c.Param("id"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job id"})
		return
	}

	if err := h.monitor.StartTrip(c.Request.Context(), jobID); err != nil {
		c.JSON(upstreamStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Trip started", "job_id": jobID})
}

// GetSettings returns the cached alert settings snapshot.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, ok := h.monitor.Settings()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Settings not loaded yet"})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// ClearAlerts empties the store. Used on logout, never by reconciliation.
func (h *Handler) ClearAlerts(c *gin.Context) {
	h.store.ClearAll()
	h.logger.Infof("Alert store cleared")
	c.Status(http.StatusNoContent)
}

// upstreamStatus maps a backend error onto the response status: transport
// failures become 502, upstream rejections keep their status.
func upstreamStatus(err error) int {
	var be *backend.BackendError
	if errors.As(err, &be) {
		return be.Status
	}
	return http.StatusBadGateway
}
