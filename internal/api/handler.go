package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
)

// Decider makes feeding decisions.
type Decider interface {
	Check(ctx context.Context) (feeder.Outcome, error)
	Feed(ctx context.Context, requester string) (model.FeedRecord, error)
}

// Reservations manages the reservation queue and the configuration it depends on.
type Reservations interface {
	Enqueue(ctx context.Context, requester string, id queue.Identity) (feeder.Placement, error)
	Cancel(ctx context.Context, id queue.Identity) error
	List(ctx context.Context) ([]feeder.Entry, error)
	UpdateCooldown(ctx context.Context, cfg store.CooldownConfig) ([]queue.Reservation, error)
	UpdatePriority(ctx context.Context, cfg store.PriorityConfig) error
}

// Options are the read-side settings the handlers need.
type Options struct {
	Location     *time.Location
	OnlineWindow time.Duration
	HistoryLimit int
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	decider      Decider
	reservations Reservations
	store        store.Store
	clock        clock.Clock
	webpush      *webpush.Options
	opts         Options
}

// NewHandler creates a new API handler.
func NewHandler(d Decider, rs Reservations, s store.Store, clk clock.Clock, webpushOptions *webpush.Options, opts Options) *Handler {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Handler{
		decider:      d,
		reservations: rs,
		store:        s,
		clock:        clk,
		webpush:      webpushOptions,
		opts:         opts,
	}
}

var reasonStatus = map[string]int{
	feeder.ReasonFastingDay:        http.StatusForbidden,
	feeder.ReasonDeviceOffline:     http.StatusServiceUnavailable,
	feeder.ReasonAlreadyFeeding:    http.StatusConflict,
	feeder.ReasonCooldownActive:    http.StatusTooManyRequests,
	feeder.ReasonReservationsExist: http.StatusConflict,
	feeder.ReasonQueueFull:         http.StatusTooManyRequests,
	feeder.ReasonInvalidSchedule:   http.StatusUnprocessableEntity,
	feeder.ReasonNotFound:          http.StatusNotFound,
	feeder.ReasonMissingIdentity:   http.StatusBadRequest,
	feeder.ReasonTimeout:           http.StatusGatewayTimeout,
}

// statusFor maps a feeder reason code to an HTTP status.
func statusFor(reason string) int {
	if s, ok := reasonStatus[reason]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// respondError writes err as a JSON error. Rejections carry their reason
// code; anything else is logged and hidden from the client.
func respondError(c *gin.Context, err error) {
	reason := feeder.Reason(err)
	status := statusFor(reason)
	switch {
	case feeder.IsRejection(err):
		c.JSON(status, gin.H{"error": err.Error(), "reason": reason})
	case errors.Is(err, store.ErrTimeout):
		log.Printf("Store timeout serving %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "storage timed out", "reason": reason})
	default:
		log.Printf("Error serving %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, gin.H{"error": "internal error", "reason": reason})
	}
}
