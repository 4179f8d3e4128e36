package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tailorly/marketplace-backend/internal/config"
	"github.com/tailorly/marketplace-backend/internal/models"
)

func TestMigrateAndSeedSQLite(t *testing.T) {
	db, err := Initialize(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, SeedInitialData(db))
	// Seeding twice must not duplicate the catalogue.
	require.NoError(t, SeedInitialData(db))

	var count int64
	require.NoError(t, db.Model(&models.Specialization{}).Count(&count).Error)
	assert.Equal(t, int64(len(DefaultSpecializations)), count)

	var spec models.Specialization
	require.NoError(t, db.Where("slug = ?", "blouse-tailoring").First(&spec).Error)
	assert.Equal(t, "Blouse Tailoring", spec.Name)
}

func TestWithTransactionRollsBack(t *testing.T) {
	db, err := Initialize(config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	defer Close(db)
	require.NoError(t, RunMigrations(db))

	err = WithTransaction(db, func(tx *gorm.DB) error {
		if err := tx.Create(&models.Specialization{Name: "Alterations", Slug: "alterations"}).Error; err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, db.Model(&models.Specialization{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := Initialize(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
