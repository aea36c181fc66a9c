package main

import (
	"fmt"
	"log"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fish-feeder-backend/config"
	"fish-feeder-backend/internal/clock"
	"fish-feeder-backend/internal/db"
	"fish-feeder-backend/internal/feeder"
	"fish-feeder-backend/internal/notification"
	"fish-feeder-backend/internal/store"
	"fish-feeder-backend/internal/task"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}
	log.Printf("configuration loaded successfully from %s", configPath)
	return cfg, nil
}

// openStore initializes the database. A broken store configuration is fatal:
// nothing can be decided without it and retrying will not fix it.
func openStore(cfg *config.Config) (*gorm.DB, store.Store) {
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.Seed(gormDB, &cfg.Feeder); err != nil {
		log.Fatalf("failed to seed database: %v", err)
	}
	log.Println("database initialized successfully")
	return gormDB, store.NewGormStore(gormDB, cfg.Feeder.StoreTimeout)
}

func webpushOptions(cfg *config.Config) *webpush.Options {
	return &webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}
}

// senders returns the configured announcement channels.
func senders(cfg *config.Config, st store.Store) []notification.Sender {
	var out []notification.Sender
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		out = append(out, notification.NewPushSender(st, webpushOptions(cfg)))
	} else {
		log.Println("Warning: VAPID keys are not configured; web push is disabled")
	}
	if cfg.Chat.WebhookURL != "" {
		out = append(out, notification.NewChatSender(cfg.Chat.WebhookURL))
	}
	return out
}

// components are the feeding services shared by every command.
type components struct {
	engine       *feeder.Engine
	reservations *feeder.ReservationService
}

func newComponents(cfg *config.Config, st store.Store, clk clock.Clock, detach task.Detacher, notifier notification.Notifier) components {
	f := cfg.Feeder
	rs := feeder.NewReservationService(st, clk, detach, notifier, f.Location)
	d := feeder.NewDispatcher(st, detach, notifier, f.Location, f.HistoryLimit)
	engine := feeder.NewEngine(st, clk, d, rs, notifier, feeder.Options{
		Location:           f.Location,
		OnlineWindow:       f.OnlineWindow(),
		StrictOnlineWindow: f.StrictOnlineWindow(),
		OfflineAlerts:      notification.NewThrottle(f.OfflineAlertThrottle()),
	})
	return components{engine: engine, reservations: rs}
}
