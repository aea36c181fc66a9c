package notification

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Throttle lets one alert per key through per window.
type Throttle struct {
	seen   *cache.Cache
	window time.Duration
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{
		seen:   cache.New(window, 2*window),
		window: window,
	}
}

// Allow reports whether an alert for key may be sent now and, if so, starts
// a new window for it.
func (t *Throttle) Allow(key string) bool {
	return t.seen.Add(key, struct{}{}, t.window) == nil
}

// Reset forgets key so the next alert goes through immediately.
func (t *Throttle) Reset(key string) {
	t.seen.Delete(key)
}
