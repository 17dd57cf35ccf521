package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yurica-pos/internal/config"
	"yurica-pos/internal/database"
	"yurica-pos/internal/logger"
)

func TestOpenSQLiteAppliesBusyTimeout(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file::memory:",
		BusyTimeout:  3 * time.Second,
		MaxOpenConns: 1,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	var timeout int
	require.NoError(t, db.NewRaw("PRAGMA busy_timeout").Scan(ctx, &timeout))
	assert.Equal(t, 3000, timeout)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}, logger.NewNop())
	assert.Error(t, err)
}
