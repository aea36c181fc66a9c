package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fish-feeder-backend/internal/model"
)

// mockPushClient is a mock implementation of the PushClient interface.
type mockPushClient struct {
	SendFunc func(payload []byte, sub *webpush.Subscription) (*http.Response, error)
}

func (m *mockPushClient) Send(ctx context.Context, payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub)
}

type fakeSubscriptions struct {
	mu      sync.Mutex
	subs    []model.PushSubscription
	deleted []string
	listErr error
}

func (f *fakeSubscriptions) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs, f.listErr
}

func (f *fakeSubscriptions) DeleteSubscription(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewBufferString(""))}
}

// recordingSender captures every message it is asked to send.
type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	err  error
	wg   *sync.WaitGroup
}

func (r *recordingSender) Channel() string { return "test" }

func (r *recordingSender) Send(ctx context.Context, msg Message) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	if r.wg != nil {
		r.wg.Done()
	}
	return r.err
}

func TestWorkerPool_Notify(t *testing.T) {
	wp := NewWorkerPool(1, 1, time.Second)

	wp.Notify(Message{Title: "Fed"})
	// The queue holds one message; the second is dropped instead of blocking.
	wp.Notify(Message{Title: "Dropped"})

	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "Fed", job.Title)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
	assert.Len(t, wp.Jobs(), 0)
}

func TestWorkerPool_DeliversToAllSenders(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	failing := &recordingSender{err: errors.New("down"), wg: &wg}
	ok := &recordingSender{wg: &wg}

	wp := NewWorkerPool(1, 4, time.Second, failing, ok)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Notify(Message{Title: "Fed", Body: "Reservation for Ann"})
	wg.Wait()

	assert.Equal(t, "Reservation for Ann", ok.msgs[0].Body, "a failing channel must not stop the others")
	assert.Len(t, failing.msgs, 1)
}

func TestPushSender(t *testing.T) {
	t.Run("sends notification for one subscription", func(t *testing.T) {
		store := &fakeSubscriptions{subs: []model.PushSubscription{{Endpoint: "https://example.com/push", P256DH: "k", Auth: "a"}}}
		sender := NewPushSender(store, &webpush.Options{})
		sender.client = &mockPushClient{
			SendFunc: func(payload []byte, sub *webpush.Subscription) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				var msg Message
				require.NoError(t, json.Unmarshal(payload, &msg))
				assert.Equal(t, "Fed", msg.Title)
				return response(http.StatusCreated), nil
			},
		}

		assert.NoError(t, sender.Send(context.Background(), Message{Title: "Fed"}))
		assert.Empty(t, store.deleted)
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		store := &fakeSubscriptions{subs: []model.PushSubscription{{Endpoint: "https://example.com/expired"}}}
		sender := NewPushSender(store, &webpush.Options{})
		sender.client = &mockPushClient{
			SendFunc: func(payload []byte, sub *webpush.Subscription) (*http.Response, error) {
				return response(http.StatusGone), nil
			},
		}

		assert.NoError(t, sender.Send(context.Background(), Message{Title: "Fed"}))
		assert.Equal(t, []string{"https://example.com/expired"}, store.deleted)
	})

	t.Run("reports failed deliveries", func(t *testing.T) {
		store := &fakeSubscriptions{subs: []model.PushSubscription{{Endpoint: "a"}, {Endpoint: "b"}}}
		sender := NewPushSender(store, &webpush.Options{})
		sender.client = &mockPushClient{
			SendFunc: func(payload []byte, sub *webpush.Subscription) (*http.Response, error) {
				if sub.Endpoint == "a" {
					return nil, errors.New("connection refused")
				}
				return response(http.StatusCreated), nil
			},
		}

		assert.ErrorContains(t, sender.Send(context.Background(), Message{Title: "Fed"}), "1 of 2")
	})

	t.Run("fans out to every subscription", func(t *testing.T) {
		var subs []model.PushSubscription
		for _, e := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			subs = append(subs, model.PushSubscription{Endpoint: e})
		}
		store := &fakeSubscriptions{subs: subs}
		sender := NewPushSender(store, &webpush.Options{})
		var (
			mu   sync.Mutex
			seen []string
		)
		sender.client = &mockPushClient{
			SendFunc: func(payload []byte, sub *webpush.Subscription) (*http.Response, error) {
				mu.Lock()
				seen = append(seen, sub.Endpoint)
				mu.Unlock()
				if sub.Endpoint == "j" {
					return response(http.StatusNotFound), nil
				}
				return response(http.StatusCreated), nil
			},
		}

		require.NoError(t, sender.Send(context.Background(), Message{Title: "Fed"}))
		assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}, seen)
		assert.Equal(t, []string{"j"}, store.deleted)
	})

	t.Run("list failure", func(t *testing.T) {
		store := &fakeSubscriptions{listErr: errors.New("db down")}
		sender := NewPushSender(store, &webpush.Options{})
		assert.ErrorContains(t, sender.Send(context.Background(), Message{}), "failed to list subscriptions")
	})
}

func TestChatSender(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sender := NewChatSender(server.URL)
	require.NoError(t, sender.Send(context.Background(), Message{Title: "Fed", Body: "by Ann"}))
	assert.Equal(t, "Fed\nby Ann", got["text"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	assert.ErrorContains(t, NewChatSender(failing.URL).Send(context.Background(), Message{Body: "x"}), "500")
}

func TestChatSender_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewChatSender(server.URL).Send(ctx, Message{Body: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(time.Hour)
	assert.True(t, th.Allow("device_offline"))
	assert.False(t, th.Allow("device_offline"))
	assert.True(t, th.Allow("other"))

	th.Reset("device_offline")
	assert.True(t, th.Allow("device_offline"))
}

func TestInline_Notify(t *testing.T) {
	rec := &recordingSender{}
	Inline{Senders: []Sender{rec}, Timeout: time.Second}.Notify(Message{Title: "Fed"})
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "Fed", rec.msgs[0].Title)
}
