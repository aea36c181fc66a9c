package model

import "time"

// Reservation is a queued feed request.
type Reservation struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Requester   string    `gorm:"size:64;not null"`
	DeviceID    string    `gorm:"size:128;index"`
	Contact     string    `gorm:"size:256;index"`
	ScheduledAt time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}
