package feeder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fish-feeder-backend/internal/store"
)

func TestOnline(t *testing.T) {
	window := 60 * time.Second
	tests := []struct {
		name     string
		tel      *store.Telemetry
		fallback bool
		want     bool
	}{
		{"no telemetry", nil, true, false},
		{"fresh millis", &store.Telemetry{LastSeen: ptr(t0.Add(-30 * time.Second).UnixMilli())}, false, true},
		{"fresh seconds", &store.Telemetry{LastSeen: ptr(t0.Add(-30 * time.Second).Unix())}, false, true},
		{"edge of window", &store.Telemetry{LastSeen: ptr(t0.Add(-window).UnixMilli())}, false, true},
		{"stale", &store.Telemetry{LastSeen: ptr(t0.Add(-90 * time.Second).UnixMilli())}, true, false},
		{"stale wins over uptime", &store.Telemetry{LastSeen: ptr(t0.Add(-90 * time.Second).UnixMilli()), UptimeSeconds: 10, WifiState: "connected"}, true, false},
		{"fallback connected", &store.Telemetry{UptimeSeconds: 10, WifiState: "Connected"}, true, true},
		{"fallback disabled", &store.Telemetry{UptimeSeconds: 10, WifiState: "connected"}, false, false},
		{"fallback disconnected", &store.Telemetry{UptimeSeconds: 10, WifiState: "disconnected"}, true, false},
		{"fallback no uptime", &store.Telemetry{WifiState: "connected"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Online(tt.tel, t0, window, tt.fallback))
		})
	}
}
