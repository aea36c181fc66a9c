package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fish-feeder-backend/internal/cooldown"
	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/parse"
	"fish-feeder-backend/internal/store"
)

// PostCheck runs one feeding decision on demand.
func (h *Handler) PostCheck(c *gin.Context) {
	out, err := h.decider.Check(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(out.Reason), out)
		return
	}
	c.JSON(http.StatusOK, out)
}

type feedRequest struct {
	Requester string `json:"requester"`
	DeviceID  string `json:"deviceId"`
	Contact   string `json:"contact"`
}

// PostFeed dispatches an operator feed.
func (h *Handler) PostFeed(c *gin.Context) {
	var req feedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	rec, err := h.decider.Feed(c.Request.Context(), parse.Requester(req.Requester, "Operator"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fedAt": rec.FedAt, "requester": rec.Requester})
}

type cooldownView struct {
	Hours          int    `json:"hours"`
	Minutes        int    `json:"minutes"`
	FastingDay     *int   `json:"fastingDay"`
	FastingDayName string `json:"fastingDayName,omitempty"`
}

type deviceView struct {
	DeviceID      string `json:"deviceId"`
	Online        bool   `json:"online"`
	LastSeen      *int64 `json:"lastSeen"`
	WifiState     string `json:"wifiState"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

type statusResponse struct {
	Status              string            `json:"status"`
	LastFeed            *time.Time        `json:"lastFeed"`
	LastFeedDetail      *store.FeedDetail `json:"lastFeedDetail"`
	Cooldown            cooldownView      `json:"cooldown"`
	Priority            priorityRequest   `json:"priority"`
	CooldownRemainingMs int64             `json:"cooldownRemainingMs"`
	QueueLength         int               `json:"queueLength"`
	Device              *deviceView       `json:"device"`
}

func statusName(s model.FeederStatus) string {
	if s == model.StatusDispensing {
		return "dispensing"
	}
	return "idle"
}

func newCooldownView(cfg store.CooldownConfig) cooldownView {
	v := cooldownView{Hours: cfg.Hours, Minutes: cfg.Minutes}
	if cfg.FastingDay != nil {
		d := int(*cfg.FastingDay)
		v.FastingDay = &d
		v.FastingDayName = cfg.FastingDay.String()
	}
	return v
}

// GetStatus returns the current feeder state.
func (h *Handler) GetStatus(c *gin.Context) {
	snap, err := h.store.Snapshot(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	now := h.clock.Now()

	resp := statusResponse{
		Status:         statusName(snap.Status),
		LastFeed:       cooldown.Valid(snap.LastFeed),
		LastFeedDetail: snap.LastFeedDetail,
		Cooldown:       newCooldownView(snap.Cooldown),
		Priority: priorityRequest{
			ReservationDelayMinutes: snap.Priority.ReservationDelayMinutes,
			AutoFeedDelayMinutes:    snap.Priority.AutoFeedDelayMinutes,
		},
		CooldownRemainingMs: cooldown.Remaining(snap.LastFeed, snap.Cooldown.Duration(), now).Milliseconds(),
		QueueLength:         len(snap.Queue),
	}
	if tel := snap.Telemetry; tel != nil {
		resp.Device = &deviceView{
			DeviceID:      tel.DeviceID,
			Online:        feeder.Online(tel, now, h.opts.OnlineWindow, true),
			LastSeen:      tel.LastSeen,
			WifiState:     tel.WifiState,
			UptimeSeconds: tel.UptimeSeconds,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// GetHistory returns the most recent feeds, newest first.
func (h *Handler) GetHistory(c *gin.Context) {
	records, err := h.store.History(c.Request.Context(), h.opts.HistoryLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []model.FeedRecord{}
	}
	c.JSON(http.StatusOK, records)
}
