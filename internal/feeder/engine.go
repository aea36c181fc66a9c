// Package feeder decides when the fish get fed. Three triggers compete for
// the same cooldown window: operator requests, reservations whose slot has
// arrived, and the unattended timer. Every decision reads a fresh snapshot
// and the store's compare-and-swap guarantees at most one feed per window.
package feeder

import (
	"context"
	"errors"
	"log"
	"time"

	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/cooldown"
	"fish-feeder-backend/internal/metrics"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
)

// SystemRequester is recorded for unattended feeds.
const SystemRequester = "System"

const offlineAlertKey = "device_offline"

// Options tune the engine.
type Options struct {
	Location           *time.Location
	OnlineWindow       time.Duration
	StrictOnlineWindow time.Duration
	// OfflineAlerts limits how often a periodic check announces that the
	// device is offline. Nil disables the announcement.
	OfflineAlerts *notification.Throttle
}

// Engine evaluates the feeding triggers.
type Engine struct {
	store        Store
	clock        clock.Clock
	dispatcher   *Dispatcher
	reservations *ReservationService
	notifier     notification.Notifier
	opts         Options
}

// NewEngine creates a decision engine.
func NewEngine(s Store, clk clock.Clock, d *Dispatcher, rs *ReservationService, notifier notification.Notifier, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Engine{
		store:        s,
		clock:        clk,
		dispatcher:   d,
		reservations: rs,
		notifier:     notifier,
		opts:         opts,
	}
}

// Check runs one periodic evaluation. Rejections come back as an Outcome of
// kind none with a reason; the error is only set when the store failed.
func (e *Engine) Check(ctx context.Context) (Outcome, error) {
	out, err := e.check(ctx)
	metrics.RecordDecision(string(out.Kind), out.Reason)
	return out, err
}

func (e *Engine) check(ctx context.Context) (Outcome, error) {
	now := e.clock.Now()
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return none(Reason(err)), err
	}
	metrics.SetQueueLength(len(snap.Queue))

	err = e.guard(snap, now, e.opts.OnlineWindow, true)
	if errors.Is(err, ErrDeviceOffline) {
		e.alertOffline()
	} else {
		e.rearmOfflineAlert(snap, now)
	}
	if err != nil {
		return none(Reason(err)), nil
	}

	c := snap.Cooldown.Duration()

	if ready, _, ok := queue.Ready(snap.Queue, now); ok {
		claim := store.Claim{ExpectedVersion: snap.Version, At: now, ReservationID: ready.ID}
		if _, err := e.dispatcher.Dispatch(ctx, model.OriginReservation, ready.Requester, claim); err != nil {
			return dispatchFailed(err)
		}
		e.reservations.served(snap.Queue, ready, c, now)
		return Outcome{Kind: KindReservation, Requester: ready.Requester}, nil
	}

	autoRemaining := autoFeedRemaining(snap, c, now)
	if len(snap.Queue) == 0 && autoRemaining == 0 {
		if _, err := e.dispatcher.Dispatch(ctx, model.OriginUnattended, SystemRequester, store.Claim{ExpectedVersion: snap.Version, At: now}); err != nil {
			return dispatchFailed(err)
		}
		return Outcome{Kind: KindTimer, Requester: SystemRequester}, nil
	}

	out := none(ReasonNoFeedNeeded)
	out.Diagnostics = &Diagnostics{
		QueueLength:         len(snap.Queue),
		CooldownRemainingMs: cooldown.Remaining(snap.LastFeed, c, now).Milliseconds(),
		AutoFeedRemainingMs: autoRemaining.Milliseconds(),
	}
	return out, nil
}

// Feed dispatches an operator feed. It never jumps the reservation queue.
func (e *Engine) Feed(ctx context.Context, requester string) (model.FeedRecord, error) {
	rec, err := e.feed(ctx, requester)
	if err != nil {
		metrics.RecordDecision(string(KindNone), Reason(err))
	} else {
		metrics.RecordDecision(string(model.OriginOperator), "")
	}
	return rec, err
}

func (e *Engine) feed(ctx context.Context, requester string) (model.FeedRecord, error) {
	now := e.clock.Now()
	snap, err := e.store.Snapshot(ctx)
	if err != nil {
		return model.FeedRecord{}, err
	}
	if err := e.guard(snap, now, e.opts.StrictOnlineWindow, false); err != nil {
		return model.FeedRecord{}, err
	}
	if len(snap.Queue) > 0 {
		return model.FeedRecord{}, ErrReservationsExist
	}
	return e.dispatcher.Dispatch(ctx, model.OriginOperator, requester, store.Claim{ExpectedVersion: snap.Version, At: now})
}

// guard applies the checks shared by every trigger, in priority order.
func (e *Engine) guard(snap *store.Snapshot, now time.Time, window time.Duration, fallback bool) error {
	switch {
	case fastingDay(snap.Cooldown, now, e.opts.Location):
		return ErrFastingDay
	case !Online(snap.Telemetry, now, window, fallback):
		return ErrDeviceOffline
	case snap.Status == model.StatusDispensing:
		return ErrAlreadyFeeding
	case !cooldown.CanDispatch(snap.LastFeed, snap.Cooldown.Duration(), now):
		return ErrCooldownActive
	}
	return nil
}

// autoFeedRemaining is the time until the unattended timer may fire. Without
// a trustworthy last feed it may fire at once.
func autoFeedRemaining(snap *store.Snapshot, c time.Duration, now time.Time) time.Duration {
	end := cooldown.End(snap.LastFeed, c)
	if end == nil {
		return 0
	}
	due := end.Add(snap.Priority.AutoFeedDelay())
	if !now.Before(due) {
		return 0
	}
	return due.Sub(now)
}

func dispatchFailed(err error) (Outcome, error) {
	if errors.Is(err, ErrAlreadyFeeding) {
		return none(ReasonAlreadyFeeding), nil
	}
	return none(Reason(err)), err
}

func (e *Engine) alertOffline() {
	if e.opts.OfflineAlerts == nil || !e.opts.OfflineAlerts.Allow(offlineAlertKey) {
		return
	}
	log.Println("Feeder device is offline")
	e.notifier.Notify(notification.Message{
		Title: "Feeder offline",
		Body:  "The feeder has not checked in recently. Scheduled feeds are on hold.",
	})
}

// rearmOfflineAlert lets the next outage be announced as soon as the device
// is seen online again.
func (e *Engine) rearmOfflineAlert(snap *store.Snapshot, now time.Time) {
	if e.opts.OfflineAlerts == nil || !Online(snap.Telemetry, now, e.opts.OnlineWindow, true) {
		return
	}
	e.opts.OfflineAlerts.Reset(offlineAlertKey)
}
