package store

import (
	"errors"
	"time"

	"fish-feeder-backend/internal/cooldown"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/queue"
)

var (
	ErrTimeout  = errors.New("store operation timed out")
	ErrConflict = errors.New("feeder state changed concurrently")
	ErrNotFound = errors.New("record not found")
)

// CooldownConfig is the minimum gap between feeds plus the optional fasting day.
type CooldownConfig struct {
	Hours      int
	Minutes    int
	FastingDay *time.Weekday
}

// Duration returns the configured cooldown.
func (c CooldownConfig) Duration() time.Duration {
	return cooldown.Duration(c.Hours, c.Minutes)
}

// PriorityConfig decides how long after cooldown end each trigger may fire.
type PriorityConfig struct {
	ReservationDelayMinutes int
	AutoFeedDelayMinutes    int
}

// ReservationDelay is the configured grace for reservations. It is stored and
// reported but does not move queue schedules.
func (p PriorityConfig) ReservationDelay() time.Duration {
	return time.Duration(p.ReservationDelayMinutes) * time.Minute
}

// AutoFeedDelay is added to cooldown end before an unattended feed may fire.
func (p PriorityConfig) AutoFeedDelay() time.Duration {
	return time.Duration(p.AutoFeedDelayMinutes) * time.Minute
}

// Claim is one compare-and-swap feed: the last feed instant, the dispensing
// status and, for a reservation feed, the removal of that reservation are
// written together or not at all.
type Claim struct {
	ExpectedVersion int64
	At              time.Time
	// ReservationID is the reservation being served, empty otherwise.
	ReservationID string
}

// FeedDetail is the display copy of the last feed.
type FeedDetail struct {
	At     time.Time `json:"at"`
	Hour   int       `json:"hour"`
	Minute int       `json:"minute"`
	Second int       `json:"second"`
}

// Telemetry is the latest heartbeat of the feeder device.
type Telemetry struct {
	DeviceID      string
	LastSeen      *int64
	WifiState     string
	UptimeSeconds int64
	UpdatedAt     time.Time
}

// Snapshot is a typed, validated view of everything a feeding decision reads.
type Snapshot struct {
	Status         model.FeederStatus
	LastFeed       *time.Time
	LastFeedDetail *FeedDetail
	Cooldown       CooldownConfig
	Priority       PriorityConfig
	Version        int64
	Queue          []queue.Reservation
	Telemetry      *Telemetry
}
