package scheduler

import (
	"context"
	"log"
	"time"

	"fish-feeder-backend/internal/feeder"
)

// Checker runs one feeding decision.
type Checker interface {
	Check(ctx context.Context) (feeder.Outcome, error)
}

// Service triggers a feeding decision on a fixed interval.
type Service struct {
	checker  Checker
	interval time.Duration
}

// NewService creates a periodic check service.
func NewService(checker Checker, interval time.Duration) *Service {
	return &Service{checker: checker, interval: interval}
}

// Run checks once immediately and then every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if s.interval <= 0 {
		log.Println("Periodic checks are disabled. Not starting.")
		return
	}
	log.Printf("Starting periodic feeder checks every %s...", s.interval)

	s.CheckOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler shutting down.")
			return
		case <-timer.C:
			s.CheckOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

// CheckOnce performs a single decision and logs what it did. A failed check
// is not retried; the next tick evaluates a fresh snapshot.
func (s *Service) CheckOnce(ctx context.Context) feeder.Outcome {
	out, err := s.checker.Check(ctx)
	switch {
	case err != nil:
		log.Printf("Error during feeder check (%s): %v", out.Reason, err)
	case out.Kind == feeder.KindNone:
		log.Printf("Feeder check: no feed (%s)", out.Reason)
	default:
		log.Printf("Feeder check: %s feed for %s", out.Kind, out.Requester)
	}
	return out
}
