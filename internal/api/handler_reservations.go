package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/parse"
	"fish-feeder-backend/internal/queue"
)

type reservationView struct {
	ID          string    `json:"id"`
	Requester   string    `json:"requester"`
	Position    int       `json:"position"`
	ScheduledAt time.Time `json:"scheduledAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newReservationView(r queue.Reservation, pos int) reservationView {
	return reservationView{
		ID:          r.ID,
		Requester:   r.Requester,
		Position:    pos,
		ScheduledAt: r.ScheduledAt,
		CreatedAt:   r.CreatedAt,
	}
}

type identityRequest struct {
	DeviceID string `json:"deviceId"`
	Contact  string `json:"contact"`
}

func (r identityRequest) identity() queue.Identity {
	return queue.Identity{DeviceID: parse.DeviceID(r.DeviceID), Contact: parse.Contact(r.Contact)}
}

type enqueueRequest struct {
	identityRequest
	Requester string `json:"requester"`
}

// ListReservations returns the queue in feeding order. Identities are not exposed.
func (h *Handler) ListReservations(c *gin.Context) {
	entries, err := h.reservations.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]reservationView, len(entries))
	for i, e := range entries {
		views[i] = newReservationView(e.Reservation, e.Position)
	}
	c.JSON(http.StatusOK, views)
}

// PostReservation reserves the next feeding slot. Repeating the request with
// the same identity returns the existing reservation.
func (h *Handler) PostReservation(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	p, err := h.reservations.Enqueue(c.Request.Context(), parse.Requester(req.Requester, "Guest"), req.identity())
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if p.Existing {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"position":    p.Position,
		"scheduledAt": p.Reservation.ScheduledAt,
		"reservation": newReservationView(p.Reservation, p.Position),
	})
}

// DeleteReservation cancels the reservation held by the given identity.
func (h *Handler) DeleteReservation(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.reservations.Cancel(c.Request.Context(), req.identity()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

