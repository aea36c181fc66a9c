package feeder

import (
	"context"

	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
)

// Store is the part of store.Store the feeding logic depends on.
type Store interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
	ClaimFeed(ctx context.Context, claim store.Claim) error
	SetFeedDetail(ctx context.Context, detail store.FeedDetail) error
	AppendHistory(ctx context.Context, record model.FeedRecord, limit int) error

	AddReservation(ctx context.Context, r queue.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
	SaveSchedules(ctx context.Context, rs []queue.Reservation) error
	UpdateCooldown(ctx context.Context, cfg store.CooldownConfig, recomputed []queue.Reservation) error
	UpdatePriority(ctx context.Context, cfg store.PriorityConfig) error
}
