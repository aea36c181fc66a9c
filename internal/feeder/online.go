package feeder

import (
	"strings"
	"time"

	"fish-feeder-backend/internal/parse"
	"fish-feeder-backend/internal/store"
)

const wifiConnected = "connected"

// Online reports whether the device sent a heartbeat within window. When the
// device never reported lastSeen and fallback is set, a positive uptime on a
// connected wifi counts as online.
func Online(tel *store.Telemetry, now time.Time, window time.Duration, fallback bool) bool {
	if tel == nil {
		return false
	}
	if tel.LastSeen != nil && *tel.LastSeen > 0 {
		seen := parse.EpochAuto(*tel.LastSeen)
		return now.Sub(seen) <= window
	}
	return fallback && tel.UptimeSeconds > 0 && strings.EqualFold(strings.TrimSpace(tel.WifiState), wifiConnected)
}
