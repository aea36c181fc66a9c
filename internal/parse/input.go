package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MaxRequesterLength bounds display names stored with reservations and feed records.
const MaxRequesterLength = 32

// millisThreshold separates epoch seconds from epoch milliseconds. Seconds
// will not reach it until the year 2286.
const millisThreshold = 10_000_000_000

var spaceRe = regexp.MustCompile(`\s+`)

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Requester normalizes a display name: control characters are dropped,
// whitespace is collapsed and the result is cut to MaxRequesterLength runes.
// An empty result yields fallback.
func Requester(raw, fallback string) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, raw)
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if s == "" {
		return fallback
	}
	if runes := []rune(s); len(runes) > MaxRequesterLength {
		s = strings.TrimSpace(string(runes[:MaxRequesterLength]))
	}
	return s
}

// DeviceID trims a device identifier.
func DeviceID(raw string) string {
	return strings.TrimSpace(raw)
}

// Contact normalizes a contact address so lookups are case-insensitive.
func Contact(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Weekday parses a fasting day given as 0..6 (0 = Sunday) or an English day name.
func Weekday(raw string) (time.Weekday, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("day of week out of range: %d", n)
		}
		return time.Weekday(n), nil
	}
	if d, ok := weekdays[s]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unable to parse day of week: %q", raw)
}

// EpochAuto converts a device timestamp that may be in seconds or milliseconds.
func EpochAuto(raw int64) time.Time {
	if raw > millisThreshold {
		return time.UnixMilli(raw).UTC()
	}
	return time.Unix(raw, 0).UTC()
}
