package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/parse"
	"fish-feeder-backend/internal/store"
)

type timerRequest struct {
	Hours   *int `json:"hours" binding:"required,min=0,max=168"`
	Minutes *int `json:"minutes" binding:"required,min=0,max=59"`
	// FastingDay accepts 0..6 or a day name; null clears it.
	FastingDay any `json:"fastingDay"`
}

// PutTimer replaces the cooldown config and reschedules the queue.
func (h *Handler) PutTimer(c *gin.Context) {
	var req timerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := store.CooldownConfig{Hours: *req.Hours, Minutes: *req.Minutes}
	if cfg.Duration() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cooldown must be longer than zero"})
		return
	}
	if req.FastingDay != nil && req.FastingDay != "" {
		day, err := parse.Weekday(fmt.Sprint(req.FastingDay))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		cfg.FastingDay = &day
	}

	recomputed, err := h.reservations.UpdateCooldown(c.Request.Context(), cfg)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]reservationView, len(recomputed))
	for i, r := range recomputed {
		views[i] = newReservationView(r, i+1)
	}
	c.JSON(http.StatusOK, gin.H{
		"cooldown":     newCooldownView(cfg),
		"reservations": views,
	})
}

type priorityRequest struct {
	ReservationDelayMinutes int `json:"reservationDelayMinutes" binding:"min=0,max=1440"`
	AutoFeedDelayMinutes    int `json:"autoFeedDelayMinutes" binding:"min=0,max=1440"`
}

// PutPriority sets how long after cooldown end reservations and the
// unattended timer may fire.
func (h *Handler) PutPriority(c *gin.Context) {
	var req priorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := store.PriorityConfig{
		ReservationDelayMinutes: req.ReservationDelayMinutes,
		AutoFeedDelayMinutes:    req.AutoFeedDelayMinutes,
	}
	if err := h.reservations.UpdatePriority(c.Request.Context(), cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"priority":         req,
		"reservationDelay": cfg.ReservationDelay().String(),
		"autoFeedDelay":    cfg.AutoFeedDelay().String(),
	})
}
