package notification

import (
	"context"
	"log"
	"time"

	"fish-feeder-backend/internal/metrics"
)

// Message is a human-readable announcement. It is not a machine contract.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Notifier accepts announcements without blocking the caller.
type Notifier interface {
	Notify(msg Message)
}

// Sender delivers a message over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, msg Message) error
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Message
	senders []Sender
	timeout time.Duration
}

// NewWorkerPool creates a new worker pool. Each send is bounded by timeout.
func NewWorkerPool(size, queueSize int, timeout time.Duration, senders ...Sender) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Message, queueSize),
		senders: senders,
		timeout: timeout,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case msg := <-wp.jobs:
			wp.deliver(ctx, msg)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Notify queues a message. A full queue drops the message; notifications
// never hold up a feeding decision.
func (wp *WorkerPool) Notify(msg Message) {
	select {
	case wp.jobs <- msg:
	default:
		log.Printf("Notification queue full, dropping %q", msg.Title)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}

// deliver sends msg over every channel, each with its own timeout.
func (wp *WorkerPool) deliver(ctx context.Context, msg Message) {
	deliver(ctx, wp.timeout, wp.senders, msg)
}

// Inline delivers every message synchronously in the caller. It is used by
// one-shot commands that exit right after the decision.
type Inline struct {
	Senders []Sender
	Timeout time.Duration
}

// Notify sends msg over every channel before returning.
func (i Inline) Notify(msg Message) {
	deliver(context.Background(), i.Timeout, i.Senders, msg)
}

func deliver(ctx context.Context, timeout time.Duration, senders []Sender, msg Message) {
	for _, s := range senders {
		sendCtx := ctx
		cancel := func() {}
		if timeout > 0 {
			sendCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := s.Send(sendCtx, msg)
		cancel()

		metrics.RecordNotification(s.Channel(), err)
		if err != nil {
			log.Printf("Error sending %s notification %q: %v", s.Channel(), msg.Title, err)
		}
	}
}
