package feeder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/cooldown"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/task"
)

// Placement is where a reservation sits in the queue.
type Placement struct {
	Reservation queue.Reservation
	Position    int
	// Existing is set when the identity already held this reservation.
	Existing bool
}

// ReservationService owns every change to the reservation queue. Changes are
// serialized so that two requests for the same identity cannot both append.
type ReservationService struct {
	mu sync.Mutex

	store    Store
	clock    clock.Clock
	detach   task.Detacher
	notifier notification.Notifier
	loc      *time.Location
	newID    func() string
}

// NewReservationService creates the queue service. Fasting days are evaluated in loc.
func NewReservationService(s Store, clk clock.Clock, detach task.Detacher, notifier notification.Notifier, loc *time.Location) *ReservationService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReservationService{
		store:    s,
		clock:    clk,
		detach:   detach,
		notifier: notifier,
		loc:      loc,
		newID:    uuid.NewString,
	}
}

// Enqueue reserves the next free feeding slot for id. An identity that
// already holds a reservation gets it back unchanged.
func (s *ReservationService) Enqueue(ctx context.Context, requester string, id queue.Identity) (Placement, error) {
	if id.IsZero() {
		return Placement{}, ErrMissingIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Placement{}, err
	}
	if fastingDay(snap.Cooldown, now, s.loc) {
		return Placement{}, ErrFastingDay
	}
	if r, pos, ok := queue.Find(snap.Queue, id); ok {
		return Placement{Reservation: r, Position: pos, Existing: true}, nil
	}

	c := snap.Cooldown.Duration()
	at, err := queue.Next(snap.Queue, c, anchor(snap, c, now), now)
	if err != nil {
		return Placement{}, err
	}

	r := queue.Reservation{
		ID:          s.newID(),
		Requester:   requester,
		Identity:    id,
		ScheduledAt: at,
		CreatedAt:   createdAfter(snap.Queue, now),
	}
	if err := s.store.AddReservation(ctx, r); err != nil {
		return Placement{}, err
	}

	pos := len(snap.Queue) + 1
	s.notifier.Notify(notification.Message{
		Title: "Feeding reserved",
		Body:  fmt.Sprintf("%s is number %d in line, due at %s.", requester, pos, at.In(s.loc).Format("15:04")),
	})
	return Placement{Reservation: r, Position: pos}, nil
}

// createdAfter keeps creation instants strictly increasing so FIFO order
// never falls back to the ID tie-break for entries added in the same instant.
func createdAfter(rs []queue.Reservation, now time.Time) time.Time {
	ordered := queue.Ordered(rs)
	if n := len(ordered); n > 0 && !now.After(ordered[n-1].CreatedAt) {
		return ordered[n-1].CreatedAt.Add(time.Microsecond)
	}
	return now
}

// Cancel removes the reservation held by id and moves everyone behind it forward.
func (s *ReservationService) Cancel(ctx context.Context, id queue.Identity) error {
	if id.IsZero() {
		return ErrMissingIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	r, _, ok := queue.Find(snap.Queue, id)
	if !ok {
		return ErrNotFound
	}
	if err := s.store.DeleteReservation(ctx, r.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	c := snap.Cooldown.Duration()
	remaining := queue.Recompute(queue.Remove(snap.Queue, r.ID), anchor(snap, c, now), c, now)
	if err := s.store.SaveSchedules(ctx, remaining); err != nil {
		log.Printf("Error rescheduling reservations after cancelling %s: %v", r.ID, err)
	}

	s.notifier.Notify(notification.Message{
		Title: "Reservation cancelled",
		Body:  fmt.Sprintf("%s left the queue; %d still waiting.", r.Requester, len(remaining)),
	})
	return nil
}

// Entry is a reservation with its 1-based queue position.
type Entry struct {
	queue.Reservation
	Position int
}

// List returns the queue in FIFO order.
func (s *ReservationService) List(ctx context.Context) ([]Entry, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	ordered := queue.Ordered(snap.Queue)
	entries := make([]Entry, len(ordered))
	for i, r := range ordered {
		entries[i] = Entry{Reservation: r, Position: i + 1}
	}
	return entries, nil
}

// UpdateCooldown stores a new cooldown config and re-anchors the queue from
// the last feed under the new cooldown.
func (s *ReservationService) UpdateCooldown(ctx context.Context, cfg store.CooldownConfig) ([]queue.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	c := cfg.Duration()
	if c <= 0 {
		return nil, ErrInvalidSchedule
	}
	recomputed := queue.Recompute(snap.Queue, anchor(snap, c, now), c, now)
	if err := s.store.UpdateCooldown(ctx, cfg, recomputed); err != nil {
		return nil, err
	}
	log.Printf("Cooldown set to %s, %d reservations rescheduled", c, len(recomputed))
	return recomputed, nil
}

// UpdatePriority stores the reservation and auto-feed delays.
func (s *ReservationService) UpdatePriority(ctx context.Context, cfg store.PriorityConfig) error {
	return s.store.UpdatePriority(ctx, cfg)
}

// served re-anchors the queue one cooldown after a reservation feed. The
// served entry itself was removed together with the claim.
func (s *ReservationService) served(q []queue.Reservation, r queue.Reservation, c time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remaining := queue.Recompute(queue.Remove(q, r.ID), at.Add(c), c, at)
	s.detach.Go("persist reservation schedules", func(ctx context.Context) error {
		return s.store.SaveSchedules(ctx, remaining)
	})
}

// anchor is where the head of the queue is scheduled when no feed is being
// served: the end of the current cooldown, or now without a valid last feed.
func anchor(snap *store.Snapshot, c time.Duration, now time.Time) time.Time {
	if end := cooldown.End(snap.LastFeed, c); end != nil {
		return *end
	}
	return now
}

func fastingDay(c store.CooldownConfig, now time.Time, loc *time.Location) bool {
	return c.FastingDay != nil && now.In(loc).Weekday() == *c.FastingDay
}
