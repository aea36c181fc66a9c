package feeder

import (
	"context"
	"sync"
	"testing"
	"time"

	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/queue"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/task"
)

var t0 = time.Date(2025, 6, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

// memStore is an in-memory Store with the same compare-and-swap rule as the
// database implementation.
type memStore struct {
	mu sync.Mutex

	status    model.FeederStatus
	lastFeed  *time.Time
	detail    *store.FeedDetail
	cooldown  store.CooldownConfig
	priority  store.PriorityConfig
	version   int64
	queue     []queue.Reservation
	telemetry *store.Telemetry
	history   []model.FeedRecord

	snapshotErr error
	claimErr    error
	detailErr   error
	deleteErr   error
	beforeClaim func(s *memStore)
	afterClaim  func()
	claims      int
}

func (m *memStore) Snapshot(ctx context.Context) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	snap := &store.Snapshot{
		Status:         m.status,
		LastFeed:       m.lastFeed,
		LastFeedDetail: m.detail,
		Cooldown:       m.cooldown,
		Priority:       m.priority,
		Version:        m.version,
		Queue:          append([]queue.Reservation(nil), m.queue...),
	}
	if m.telemetry != nil {
		tel := *m.telemetry
		snap.Telemetry = &tel
	}
	return snap, nil
}

func (m *memStore) ClaimFeed(ctx context.Context, claim store.Claim) error {
	if m.beforeClaim != nil {
		m.beforeClaim(m)
	}
	if err := m.claim(claim); err != nil {
		return err
	}
	if m.afterClaim != nil {
		m.afterClaim()
	}
	return nil
}

func (m *memStore) claim(claim store.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return m.claimErr
	}
	if m.version != claim.ExpectedVersion || m.status != model.StatusIdle {
		return store.ErrConflict
	}
	if claim.ReservationID != "" {
		i := m.indexOf(claim.ReservationID)
		if i < 0 {
			return store.ErrConflict
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
	}
	at := claim.At
	m.lastFeed = &at
	m.status = model.StatusDispensing
	m.version++
	m.claims++
	return nil
}

func (m *memStore) indexOf(id string) int {
	for i, r := range m.queue {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// SetFeedDetail fails on a cancelled context like the database would.
func (m *memStore) SetFeedDetail(ctx context.Context, detail store.FeedDetail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detailErr != nil {
		return m.detailErr
	}
	m.detail = &detail
	return nil
}

func (m *memStore) AppendHistory(ctx context.Context, record model.FeedRecord, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append([]model.FeedRecord{record}, m.history...)
	if len(m.history) > limit {
		m.history = m.history[:limit]
	}
	return nil
}

func (m *memStore) AddReservation(ctx context.Context, r queue.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, r)
	return nil
}

func (m *memStore) DeleteReservation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	i := m.indexOf(id)
	if i < 0 {
		return store.ErrNotFound
	}
	m.queue = append(m.queue[:i], m.queue[i+1:]...)
	return nil
}

func (m *memStore) SaveSchedules(ctx context.Context, rs []queue.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveSchedules(rs)
	return nil
}

func (m *memStore) saveSchedules(rs []queue.Reservation) {
	for _, r := range rs {
		for i := range m.queue {
			if m.queue[i].ID == r.ID {
				m.queue[i].ScheduledAt = r.ScheduledAt
			}
		}
	}
}

func (m *memStore) UpdateCooldown(ctx context.Context, cfg store.CooldownConfig, recomputed []queue.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldown = cfg
	m.saveSchedules(recomputed)
	return nil
}

func (m *memStore) UpdatePriority(ctx context.Context, cfg store.PriorityConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priority = cfg
	return nil
}

func (m *memStore) queueByID(id string) (queue.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.queue {
		if r.ID == id {
			return r, true
		}
	}
	return queue.Reservation{}, false
}

// recordingNotifier keeps every message it was asked to announce.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (r *recordingNotifier) Notify(msg notification.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingNotifier) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Title)
	}
	return out
}

type harness struct {
	store        *memStore
	clock        *clock.Fixed
	notes        *recordingNotifier
	engine       *Engine
	reservations *ReservationService
}

// newHarness wires an engine over an idle feeder with an online device, a
// one-hour cooldown and no history.
func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFixed(t0)
	seen := t0.UnixMilli()
	st := &memStore{
		cooldown:  store.CooldownConfig{Hours: 1},
		telemetry: &store.Telemetry{DeviceID: "feeder-1", LastSeen: &seen, WifiState: "connected", UptimeSeconds: 100},
	}
	notes := &recordingNotifier{}
	detach := task.Inline{Timeout: time.Second}

	rs := NewReservationService(st, clk, detach, notes, time.UTC)
	n := 0
	rs.newID = func() string {
		n++
		return string(rune('a'+n-1)) + "-id"
	}
	d := NewDispatcher(st, detach, notes, time.UTC, 20)
	engine := NewEngine(st, clk, d, rs, notes, Options{
		Location:           time.UTC,
		OnlineWindow:       60 * time.Second,
		StrictOnlineWindow: 120 * time.Second,
		OfflineAlerts:      notification.NewThrottle(30 * time.Minute),
	})
	return &harness{store: st, clock: clk, notes: notes, engine: engine, reservations: rs}
}

// heartbeat marks the device as seen at the current clock.
func (h *harness) heartbeat() {
	seen := h.clock.Now().UnixMilli()
	h.store.mu.Lock()
	h.store.telemetry.LastSeen = &seen
	h.store.mu.Unlock()
}

func ptr[T any](v T) *T { return &v }
