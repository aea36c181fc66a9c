package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"fish-feeder-backend/internal/model"
)

// PushClient defines the interface for sending a web push notification.
type PushClient interface {
	Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushClient is a real implementation of PushClient using the webpush library.
type WebPushClient struct{}

// Send sends a notification using the webpush library.
func (WebPushClient) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotificationWithContext(ctx, payload, sub, options)
}

// SubscriptionStore is the part of the store the push sender needs.
type SubscriptionStore interface {
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// maxConcurrentPushes bounds the outbound requests of one fan-out.
const maxConcurrentPushes = 8

// PushSender fans a message out to every browser push subscription.
type PushSender struct {
	store   SubscriptionStore
	options *webpush.Options
	client  PushClient
}

// NewPushSender creates a sender using the real web push client.
func NewPushSender(store SubscriptionStore, options *webpush.Options) *PushSender {
	return &PushSender{store: store, options: options, client: WebPushClient{}}
}

func (p *PushSender) Channel() string { return "webpush" }

// Send delivers msg to all subscriptions and deletes expired ones.
func (p *PushSender) Send(ctx context.Context, msg Message) error {
	subs, err := p.store.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	g.SetLimit(maxConcurrentPushes)
	for _, sub := range subs {
		g.Go(func() error {
			if err := p.sendOne(ctx, sub, payload); err != nil {
				log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d push deliveries failed", n, len(subs))
	}
	return nil
}

func (p *PushSender) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := p.client.Send(ctx, payload, wpSub, p.options)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := p.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return nil
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
	return nil
}
