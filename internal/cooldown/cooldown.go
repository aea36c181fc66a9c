// Package cooldown computes the minimum gap between two feeds.
//
// The feeder's hardware clock is not monotonic and has written timestamps
// from 1970 into the last-feed field before. Every caller that reads a
// last-feed instant goes through Valid, which discards anything older than
// EpochFloor so a corrupt value can never hold the cooldown open.
package cooldown

import "time"

// EpochFloor is the oldest last-feed instant that is trusted.
var EpochFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Duration converts a configured interval into a duration.
func Duration(hours, minutes int) time.Duration {
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
}

// IsCorrupt reports whether t is present but older than EpochFloor.
func IsCorrupt(t *time.Time) bool {
	return t != nil && t.Before(EpochFloor)
}

// Valid returns t when it is present and not corrupt, nil otherwise.
func Valid(t *time.Time) *time.Time {
	if t == nil || IsCorrupt(t) {
		return nil
	}
	return t
}

// End returns the instant the cooldown started at last expires, or nil when
// there is no trustworthy last feed.
func End(last *time.Time, cooldown time.Duration) *time.Time {
	v := Valid(last)
	if v == nil {
		return nil
	}
	end := v.Add(cooldown)
	return &end
}

// CanDispatch reports whether a feed is allowed at now.
func CanDispatch(last *time.Time, cooldown time.Duration, now time.Time) bool {
	end := End(last, cooldown)
	return end == nil || !now.Before(*end)
}

// Remaining returns how long until a feed is allowed, zero when it already is.
func Remaining(last *time.Time, cooldown time.Duration, now time.Time) time.Duration {
	end := End(last, cooldown)
	if end == nil || !now.Before(*end) {
		return 0
	}
	return end.Sub(now)
}
