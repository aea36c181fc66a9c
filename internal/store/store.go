package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fish-feeder-backend/internal/model"
	"fish-feeder-backend/internal/queue"
)

// Store defines the interface for all feeder persistence. Every method is
// bounded by the store timeout and reports a deadline as ErrTimeout.
type Store interface {
	Snapshot(ctx context.Context) (*Snapshot, error)

	// ClaimFeed records a feed and requests actuation if the feeder row still
	// carries the expected version and is idle, and the served reservation (if
	// any) is still queued. It returns ErrConflict otherwise.
	ClaimFeed(ctx context.Context, claim Claim) error
	SetFeedDetail(ctx context.Context, detail FeedDetail) error
	SetStatus(ctx context.Context, status model.FeederStatus) error

	AppendHistory(ctx context.Context, record model.FeedRecord, limit int) error
	History(ctx context.Context, limit int) ([]model.FeedRecord, error)

	AddReservation(ctx context.Context, r queue.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
	SaveSchedules(ctx context.Context, rs []queue.Reservation) error

	UpdateCooldown(ctx context.Context, cfg CooldownConfig, recomputed []queue.Reservation) error
	UpdatePriority(ctx context.Context, cfg PriorityConfig) error

	RecordTelemetry(ctx context.Context, t Telemetry) error

	UpsertSubscription(ctx context.Context, sub model.PushSubscription) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormStore creates a new GORM-backed store. A zero timeout leaves
// operations bounded only by the caller's context.
func NewGormStore(db *gorm.DB, timeout time.Duration) Store {
	return &gormStore{db: db, timeout: timeout}
}

func (s *gormStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// wrap classifies a database error. The context is consulted as well because
// drivers report an expired deadline in their own words.
func wrap(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// Snapshot loads the feeder row, the reservation queue and the latest telemetry.
func (s *gormStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	db := s.db.WithContext(ctx)

	var state model.FeederState
	if err := db.First(&state, model.FeederStateID).Error; err != nil {
		return nil, wrap(ctx, "load feeder state", err)
	}

	var rows []model.Reservation
	if err := db.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, wrap(ctx, "load reservations", err)
	}

	var tel *Telemetry
	var row model.DeviceTelemetry
	err := db.Order("updated_at DESC").First(&row).Error
	switch {
	case err == nil:
		tel = &Telemetry{
			DeviceID:      row.DeviceID,
			LastSeen:      row.LastSeen,
			WifiState:     row.WifiState,
			UptimeSeconds: row.UptimeSeconds,
			UpdatedAt:     row.UpdatedAt,
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, wrap(ctx, "load device telemetry", err)
	}

	return buildSnapshot(state, rows, tel), nil
}

// buildSnapshot is the validation boundary: malformed rows are dropped here
// so the decision logic can trust every value it sees.
func buildSnapshot(state model.FeederState, rows []model.Reservation, tel *Telemetry) *Snapshot {
	snap := &Snapshot{
		Status:    state.Status,
		Cooldown:  CooldownConfig{Hours: state.CooldownHours, Minutes: state.CooldownMinutes},
		Priority:  PriorityConfig{ReservationDelayMinutes: state.ReservationDelayMinutes, AutoFeedDelayMinutes: state.AutoFeedDelayMinutes},
		Version:   state.Version,
		Telemetry: tel,
	}
	if snap.Status != model.StatusIdle && snap.Status != model.StatusDispensing {
		log.Printf("Warning: unknown feeder status %d, treating as dispensing", snap.Status)
		snap.Status = model.StatusDispensing
	}
	if state.LastFeedMs != nil {
		t := time.UnixMilli(*state.LastFeedMs).UTC()
		snap.LastFeed = &t
	}
	if state.LastFeedAt != nil {
		snap.LastFeedDetail = &FeedDetail{
			At:     state.LastFeedAt.UTC(),
			Hour:   state.LastFeedHour,
			Minute: state.LastFeedMinute,
			Second: state.LastFeedSecond,
		}
	}
	if state.FastingDay != nil {
		if d := *state.FastingDay; d >= 0 && d <= 6 {
			wd := time.Weekday(d)
			snap.Cooldown.FastingDay = &wd
		} else {
			log.Printf("Warning: ignoring out-of-range fasting day %d", d)
		}
	}

	for _, row := range rows {
		r, ok := fromModelReservation(row)
		if !ok {
			log.Printf("Warning: dropping malformed reservation %q", row.ID)
			continue
		}
		snap.Queue = append(snap.Queue, r)
	}
	return snap
}

func fromModelReservation(m model.Reservation) (queue.Reservation, bool) {
	r := queue.Reservation{
		ID:          m.ID,
		Requester:   m.Requester,
		Identity:    queue.Identity{DeviceID: m.DeviceID, Contact: m.Contact},
		ScheduledAt: m.ScheduledAt.UTC(),
		CreatedAt:   m.CreatedAt.UTC(),
	}
	if r.ID == "" || r.Identity.IsZero() || r.CreatedAt.IsZero() || r.ScheduledAt.IsZero() {
		return queue.Reservation{}, false
	}
	return r, true
}

func toModelReservation(r queue.Reservation) model.Reservation {
	return model.Reservation{
		ID:          r.ID,
		Requester:   r.Requester,
		DeviceID:    r.Identity.DeviceID,
		Contact:     r.Identity.Contact,
		ScheduledAt: r.ScheduledAt,
		CreatedAt:   r.CreatedAt,
	}
}

// ClaimFeed is a compare-and-swap on the feeder row. The served reservation
// is deleted in the same transaction.
func (s *gormStore) ClaimFeed(ctx context.Context, claim Claim) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.FeederState{}).
			Where("id = ? AND version = ? AND status = ?", model.FeederStateID, claim.ExpectedVersion, model.StatusIdle).
			Updates(map[string]any{
				"last_feed_ms": claim.At.UnixMilli(),
				"status":       model.StatusDispensing,
				"version":      gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if claim.ReservationID == "" {
			return nil
		}
		res = tx.Where("id = ?", claim.ReservationID).Delete(&model.Reservation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return nil
	})
	if errors.Is(err, ErrConflict) {
		return ErrConflict
	}
	if err != nil {
		return wrap(ctx, "claim feed", err)
	}
	return nil
}

func (s *gormStore) SetFeedDetail(ctx context.Context, detail FeedDetail) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).
		Model(&model.FeederState{}).
		Where("id = ?", model.FeederStateID).
		Updates(map[string]any{
			"last_feed_at":     detail.At,
			"last_feed_hour":   detail.Hour,
			"last_feed_minute": detail.Minute,
			"last_feed_second": detail.Second,
		}).Error
	if err != nil {
		return wrap(ctx, "write feed detail", err)
	}
	return nil
}

func (s *gormStore) SetStatus(ctx context.Context, status model.FeederStatus) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).
		Model(&model.FeederState{}).
		Where("id = ?", model.FeederStateID).
		Update("status", status).Error
	if err != nil {
		return wrap(ctx, "set feeder status", err)
	}
	return nil
}

// AppendHistory inserts a record and drops everything beyond the newest limit entries.
func (s *gormStore) AppendHistory(ctx context.Context, record model.FeedRecord, limit int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		newest := tx.Session(&gorm.Session{NewDB: true}).
			Model(&model.FeedRecord{}).
			Select("id").
			Order("fed_at DESC, id DESC").
			Limit(limit)
		return tx.Where("id NOT IN (?)", newest).Delete(&model.FeedRecord{}).Error
	})
	if err != nil {
		return wrap(ctx, "append feed history", err)
	}
	return nil
}

// History returns the most recent feed records, newest first.
func (s *gormStore) History(ctx context.Context, limit int) ([]model.FeedRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var records []model.FeedRecord
	if err := s.db.WithContext(ctx).Order("fed_at DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, wrap(ctx, "load feed history", err)
	}
	return records, nil
}

func (s *gormStore) AddReservation(ctx context.Context, r queue.Reservation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := toModelReservation(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrap(ctx, "add reservation", err)
	}
	return nil
}

func (s *gormStore) DeleteReservation(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Reservation{})
	if res.Error != nil {
		return wrap(ctx, "delete reservation", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete reservation %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSchedules persists the scheduled instant of every given reservation.
func (s *gormStore) SaveSchedules(ctx context.Context, rs []queue.Reservation) error {
	if len(rs) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveSchedules(tx, rs)
	})
	if err != nil {
		return wrap(ctx, "save reservation schedules", err)
	}
	return nil
}

func saveSchedules(tx *gorm.DB, rs []queue.Reservation) error {
	for _, r := range rs {
		if err := tx.Model(&model.Reservation{}).Where("id = ?", r.ID).Update("scheduled_at", r.ScheduledAt).Error; err != nil {
			return fmt.Errorf("failed to reschedule reservation %s: %w", r.ID, err)
		}
	}
	return nil
}

// UpdateCooldown stores a new cooldown config together with the reservation
// schedules recomputed for it.
func (s *gormStore) UpdateCooldown(ctx context.Context, cfg CooldownConfig, recomputed []queue.Reservation) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var fasting any
	if cfg.FastingDay != nil {
		fasting = int(*cfg.FastingDay)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.FeederState{}).
			Where("id = ?", model.FeederStateID).
			Updates(map[string]any{
				"cooldown_hours":   cfg.Hours,
				"cooldown_minutes": cfg.Minutes,
				"fasting_day":      fasting,
			}).Error; err != nil {
			return err
		}
		return saveSchedules(tx, recomputed)
	})
	if err != nil {
		return wrap(ctx, "update cooldown config", err)
	}
	return nil
}

func (s *gormStore) UpdatePriority(ctx context.Context, cfg PriorityConfig) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).
		Model(&model.FeederState{}).
		Where("id = ?", model.FeederStateID).
		Updates(map[string]any{
			"reservation_delay_minutes": cfg.ReservationDelayMinutes,
			"auto_feed_delay_minutes":   cfg.AutoFeedDelayMinutes,
		}).Error
	if err != nil {
		return wrap(ctx, "update priority config", err)
	}
	return nil
}

// RecordTelemetry upserts the heartbeat of a device.
func (s *gormStore) RecordTelemetry(ctx context.Context, t Telemetry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := model.DeviceTelemetry{
		DeviceID:      t.DeviceID,
		LastSeen:      t.LastSeen,
		WifiState:     t.WifiState,
		UptimeSeconds: t.UptimeSeconds,
		UpdatedAt:     t.UpdatedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seen", "wifi_state", "uptime_seconds", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return wrap(ctx, "record telemetry", err)
	}
	return nil
}

func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
	}).Create(&sub).Error
	if err != nil {
		return wrap(ctx, "upsert subscription", err)
	}
	return nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return wrap(ctx, "delete subscription", err)
	}
	return nil
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, wrap(ctx, "load subscription", err)
	}
	return &sub, nil
}

func (s *gormStore) ListSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, wrap(ctx, "list subscriptions", err)
	}
	return subs, nil
}
