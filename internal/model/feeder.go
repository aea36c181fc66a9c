package model

import "time"

// FeederStateID is the primary key of the singleton feeder row.
const FeederStateID = 1

// FeederStatus is the actuator request flag. The wire encoding is 0/1.
type FeederStatus int

const (
	StatusIdle       FeederStatus = 0
	StatusDispensing FeederStatus = 1
)

// FeederState is the single mutable feeder record.
type FeederState struct {
	ID     uint         `gorm:"primaryKey"`
	Status FeederStatus `gorm:"not null;default:0"`

	// LastFeedMs is stored raw so that corrupt device-clock values survive
	// the round trip and can be recognized by the cooldown calculator.
	LastFeedMs *int64

	// Display-only copy of the last feed, in the configured timezone.
	LastFeedAt     *time.Time
	LastFeedHour   int `gorm:"not null;default:0"`
	LastFeedMinute int `gorm:"not null;default:0"`
	LastFeedSecond int `gorm:"not null;default:0"`

	CooldownHours   int  `gorm:"not null;default:0"`
	CooldownMinutes int  `gorm:"not null;default:0"`
	FastingDay      *int // 0 = Sunday .. 6 = Saturday

	ReservationDelayMinutes int `gorm:"not null;default:0"`
	AutoFeedDelayMinutes    int `gorm:"not null;default:0"`

	// Version is bumped on every feed claim and is the compare-and-swap token.
	Version   int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
