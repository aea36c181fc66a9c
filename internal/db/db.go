package db

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fish-feeder-backend/config"
	"fish-feeder-backend/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is not configured")
	}
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates every table the feeder uses.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.FeederState{},
		&model.Reservation{},
		&model.FeedRecord{},
		&model.DeviceTelemetry{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// Seed creates the singleton feeder row from configured defaults when it does
// not exist yet. An existing row is left untouched.
func Seed(db *gorm.DB, cfg *config.FeederConfig) error {
	defaults := model.FeederState{
		ID:                      model.FeederStateID,
		Status:                  model.StatusIdle,
		CooldownHours:           cfg.DefaultCooldownHours,
		CooldownMinutes:         cfg.DefaultCooldownMinutes,
		ReservationDelayMinutes: cfg.DefaultReservationDelayMinutes,
		AutoFeedDelayMinutes:    cfg.DefaultAutoFeedDelayMinutes,
	}

	var state model.FeederState
	if err := db.Where(model.FeederState{ID: model.FeederStateID}).Attrs(defaults).FirstOrCreate(&state).Error; err != nil {
		return fmt.Errorf("failed to seed feeder state: %w", err)
	}
	return nil
}
