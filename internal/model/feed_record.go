package model

import "time"

// FeedOrigin tells which trigger caused a feed.
type FeedOrigin string

const (
	OriginOperator    FeedOrigin = "operator"
	OriginReservation FeedOrigin = "reservation"
	OriginUnattended  FeedOrigin = "unattended"
)

// FeedRecord is one entry of the bounded feed history.
type FeedRecord struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	FedAt     time.Time  `gorm:"not null;index" json:"fedAt"`
	Origin    FeedOrigin `gorm:"size:16;not null" json:"origin"`
	Requester string     `gorm:"size:64;not null" json:"requester"`
}
