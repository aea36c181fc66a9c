package feeder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"fish-feeder-backend/internal/metrics"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/task"
)

// Dispatcher performs the write sequence that makes the device dispense.
type Dispatcher struct {
	store        Store
	detach       task.Detacher
	notifier     notification.Notifier
	loc          *time.Location
	historyLimit int
}

// NewDispatcher creates a dispatcher. Feed times are displayed in loc.
func NewDispatcher(s Store, detach task.Detacher, notifier notification.Notifier, loc *time.Location, historyLimit int) *Dispatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Dispatcher{
		store:        s,
		detach:       detach,
		notifier:     notifier,
		loc:          loc,
		historyLimit: historyLimit,
	}
}

// Dispatch claims a feed for requester and requests actuation.
//
// The claim is the only write awaited for correctness: it stores the feed
// instant, flips the feeder to dispensing and removes the served reservation
// in one transaction. Everything after it outlives the caller's context, so a
// disconnecting client or a shutdown cannot leave a claimed feed half written.
func (d *Dispatcher) Dispatch(ctx context.Context, origin model.FeedOrigin, requester string, claim store.Claim) (model.FeedRecord, error) {
	if err := d.store.ClaimFeed(ctx, claim); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.FeedRecord{}, ErrAlreadyFeeding
		}
		metrics.RecordDispatchFailure("claim")
		return model.FeedRecord{}, fmt.Errorf("failed to claim feed: %w", err)
	}
	ctx = context.WithoutCancel(ctx)

	local := claim.At.In(d.loc)
	detail := store.FeedDetail{At: claim.At, Hour: local.Hour(), Minute: local.Minute(), Second: local.Second()}
	if err := d.store.SetFeedDetail(ctx, detail); err != nil {
		metrics.RecordDispatchFailure("detail")
		log.Printf("Error writing feed detail for feed at %s: %v", local.Format(time.DateTime), err)
	}

	record := model.FeedRecord{FedAt: claim.At, Origin: origin, Requester: requester}
	d.detach.Go("append feed history", func(ctx context.Context) error {
		return d.store.AppendHistory(ctx, record, d.historyLimit)
	})
	d.notifier.Notify(feedMessage(record, local))

	metrics.RecordDispatch(string(origin))
	log.Printf("Dispatched %s feed for %s at %s", origin, requester, local.Format(time.DateTime))
	return record, nil
}

func feedMessage(r model.FeedRecord, local time.Time) notification.Message {
	var body string
	switch r.Origin {
	case model.OriginReservation:
		body = fmt.Sprintf("Reserved feed for %s at %s.", r.Requester, local.Format("15:04:05"))
	case model.OriginUnattended:
		body = fmt.Sprintf("Automatic feed at %s.", local.Format("15:04:05"))
	default:
		body = fmt.Sprintf("%s fed the fish at %s.", r.Requester, local.Format("15:04:05"))
	}
	return notification.Message{Title: "Fish fed", Body: body}
}
