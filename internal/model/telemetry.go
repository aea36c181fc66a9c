package model

import "time"

// DeviceTelemetry is the latest heartbeat reported by a feeder device.
type DeviceTelemetry struct {
	DeviceID string `gorm:"primaryKey;size:128"`
	// LastSeen is whatever the device sent: epoch seconds or milliseconds.
	LastSeen      *int64
	WifiState     string `gorm:"size:32"`
	UptimeSeconds int64
	UpdatedAt     time.Time `gorm:"index"`
}
