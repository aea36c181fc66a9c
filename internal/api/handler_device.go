package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/parse"
	"fish-feeder-backend/internal/store"
)

type heartbeatRequest struct {
	DeviceID      string `json:"deviceId" binding:"required"`
	LastSeen      *int64 `json:"lastSeen"`
	WifiState     string `json:"wifiState"`
	UptimeSeconds int64  `json:"uptimeSeconds" binding:"min=0"`
}

// PostHeartbeat records the device's telemetry.
func (h *Handler) PostHeartbeat(c *gin.Context) {
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.store.RecordTelemetry(c.Request.Context(), store.Telemetry{
		DeviceID:      parse.DeviceID(req.DeviceID),
		LastSeen:      req.LastSeen,
		WifiState:     req.WifiState,
		UptimeSeconds: req.UptimeSeconds,
		UpdatedAt:     h.clock.Now(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCommand tells the device whether it should dispense.
func (h *Handler) GetCommand(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": snap.Status == model.StatusDispensing})
}

// PostAck is sent by the device once it has dispensed.
func (h *Handler) PostAck(c *gin.Context) {
	if err := h.store.SetStatus(c.Request.Context(), model.StatusIdle); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
