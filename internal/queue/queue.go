// Package queue holds the ordering and scheduling rules of the reservation
// queue. It is pure: callers load reservations from the store, apply these
// functions, and persist the result.
//
// FIFO order is defined by CreatedAt, never by slice position, so a queue
// reloaded from storage in arbitrary row order still dispatches the oldest
// request first.
package queue

import (
	"errors"
	"sort"
	"time"
)

// MaxLength is the largest number of pending reservations.
const MaxLength = 20

var (
	ErrFull            = errors.New("reservation queue is full")
	ErrInvalidSchedule = errors.New("computed schedule is not after the previous reservation")
)

// Identity identifies who holds a reservation.
type Identity struct {
	DeviceID string
	Contact  string
}

// IsZero reports whether neither identity field is set.
func (i Identity) IsZero() bool {
	return i.DeviceID == "" && i.Contact == ""
}

// Reservation is a pending request to feed at ScheduledAt.
type Reservation struct {
	ID          string
	Requester   string
	Identity    Identity
	ScheduledAt time.Time
	CreatedAt   time.Time
}

// Ordered returns a copy of rs sorted by creation time, ties broken by ID.
func Ordered(rs []Reservation) []Reservation {
	out := make([]Reservation, len(rs))
	copy(out, rs)
	sort.SliceStable(out, func(i, j int) bool { return older(out[i], out[j]) })
	return out
}

func older(a, b Reservation) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Find returns the reservation held by id along with its 1-based position.
// A device ID match wins over a contact match.
func Find(rs []Reservation, id Identity) (Reservation, int, bool) {
	ordered := Ordered(rs)
	if id.DeviceID != "" {
		for i, r := range ordered {
			if r.Identity.DeviceID == id.DeviceID {
				return r, i + 1, true
			}
		}
	}
	if id.Contact != "" {
		for i, r := range ordered {
			if r.Identity.Contact == id.Contact {
				return r, i + 1, true
			}
		}
	}
	return Reservation{}, 0, false
}

// Next computes when a reservation appended to rs becomes eligible.
// An empty queue starts at base; otherwise the new entry follows the last one
// by one cooldown. The result is never earlier than now.
func Next(rs []Reservation, cooldown time.Duration, base, now time.Time) (time.Time, error) {
	if len(rs) >= MaxLength {
		return time.Time{}, ErrFull
	}

	ordered := Ordered(rs)
	at := base
	if len(ordered) > 0 {
		at = ordered[len(ordered)-1].ScheduledAt.Add(cooldown)
	}
	if at.Before(now) {
		at = now
	}
	if len(ordered) > 0 && !at.After(ordered[len(ordered)-1].ScheduledAt) {
		return time.Time{}, ErrInvalidSchedule
	}
	return at, nil
}

// Ready returns the oldest reservation whose schedule has arrived, and how
// many reservations are eligible in total.
func Ready(rs []Reservation, now time.Time) (Reservation, int, bool) {
	var (
		picked Reservation
		count  int
	)
	for _, r := range rs {
		if r.ScheduledAt.After(now) {
			continue
		}
		if count == 0 || older(r, picked) {
			picked = r
		}
		count++
	}
	return picked, count, count > 0
}

// Remove returns the queue in FIFO order without the reservation with the given ID.
func Remove(rs []Reservation, id string) []Reservation {
	out := make([]Reservation, 0, len(rs))
	for _, r := range Ordered(rs) {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// Recompute re-anchors every reservation in FIFO order: the first at anchor,
// each following one a cooldown after its predecessor, none before now.
func Recompute(rs []Reservation, anchor time.Time, cooldown time.Duration, now time.Time) []Reservation {
	out := Ordered(rs)
	for i := range out {
		at := anchor
		if i > 0 {
			at = out[i-1].ScheduledAt.Add(cooldown)
		}
		if at.Before(now) {
			at = now
		}
		out[i].ScheduledAt = at
	}
	return out
}

// Position returns the 1-based FIFO position of the reservation with the given ID, or 0.
func Position(rs []Reservation, id string) int {
	for i, r := range Ordered(rs) {
		if r.ID == id {
			return i + 1
		}
	}
	return 0
}
