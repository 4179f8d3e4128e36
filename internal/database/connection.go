// internal/database/connection.go
package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	// Connect to database
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	if cfg.Driver == "sqlite" {
		// A single writer avoids SQLITE_BUSY under concurrent requests.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithField("driver", cfg.Driver).Info("Database connection established")
	return db, nil
}

func openDialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite":
		dsn := cfg.DSN()
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return sqlite.Open(dsn + sep + "_foreign_keys=on&_busy_timeout=5000"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Error getting underlying sql.DB")
		return
	}

	if err := sqlDB.Close(); err != nil {
		logrus.WithError(err).Error("Error closing database connection")
	} else {
		logrus.Info("Database connection closed")
	}
}

func RunMigrations(db *gorm.DB) error {
	logrus.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Account{},
		&models.Specialization{},
		&models.Provider{},
		&models.Service{},
		&models.ServiceImage{},
		&models.Booking{},
		&models.BookingStatusEvent{},
		&models.Review{},
		&models.ReviewImage{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logrus.Info("Database migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Search
		"CREATE INDEX IF NOT EXISTS idx_accounts_location ON accounts(latitude, longitude)",
		"CREATE INDEX IF NOT EXISTS idx_providers_rating ON providers(avg_rating DESC, total_reviews DESC)",
		"CREATE INDEX IF NOT EXISTS idx_specializations_slug_lower ON specializations(LOWER(slug))",

		// Services
		"CREATE INDEX IF NOT EXISTS idx_services_provider_name ON services(provider_id, name)",

		// Bookings
		"CREATE INDEX IF NOT EXISTS idx_bookings_customer_created ON bookings(customer_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_provider_created ON bookings(provider_account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_booking_status_events_booking ON booking_status_events(booking_id, created_at)",

		// Reviews
		"CREATE INDEX IF NOT EXISTS idx_reviews_provider_created ON reviews(provider_account_id, created_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			logrus.WithError(err).WithField("index", index).Warn("Failed to create index")
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// DefaultSpecializations is the canonical catalogue shown to customers.
var DefaultSpecializations = []string{
	"Blouse Tailoring",
	"Lehenga Tailoring",
	"Kurti Tailoring",
	"Dress Tailoring",
	"Skirt Tailoring",
	"Saree Stitching",
	"Fall Pico Work",
	"Top Western Wear Tailoring",
}

// SeedInitialData inserts the specialization catalogue when missing.
func SeedInitialData(db *gorm.DB) error {
	logrus.Info("Seeding initial data...")

	for _, name := range DefaultSpecializations {
		spec := models.Specialization{Name: name, Slug: models.Slugify(name)}
		err := db.Where("slug = ?", spec.Slug).FirstOrCreate(&spec).Error
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to seed specialization %s: %w", name, err)
		}
	}

	logrus.Info("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
