package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"billiard-admin-backend/config"
	"billiard-admin-backend/internal/model"
)

func TestDialector(t *testing.T) {
	assert.Equal(t, "postgres", Dialector("postgres://u:p@localhost:5432/billiard").Name())
	assert.Equal(t, "postgres", Dialector("host=localhost user=u dbname=billiard").Name())
	assert.Equal(t, "sqlite", Dialector("file::memory:").Name())
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, LogLevel("silent"))
	assert.Equal(t, logger.Info, LogLevel("INFO"))
	assert.Equal(t, logger.Warn, LogLevel(""))
}

func TestInit_SQLite(t *testing.T) {
	gormDB, err := Init(&config.DatabaseConfig{
		DSN:                       "file:dbinit?mode=memory&cache=shared",
		LogLevel:                  "silent",
		EnableExclusionConstraint: true,
	})
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	assert.True(t, gormDB.Migrator().HasTable(&model.Table{}))
	assert.True(t, gormDB.Migrator().HasTable(&model.Booking{}))
	assert.True(t, gormDB.Migrator().HasTable(&model.PushSubscription{}))
	assert.True(t, gormDB.Migrator().HasTable("subscription_table_mapping"))
}
