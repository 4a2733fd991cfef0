package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fdm/internal/config"
	"fdm/internal/types"
)

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, newLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("info").Enabled(ctx, slog.LevelDebug))
	assert.False(t, newLogger("warn").Enabled(ctx, slog.LevelInfo))
	assert.False(t, newLogger("error").Enabled(ctx, slog.LevelWarn))
	assert.True(t, newLogger("bogus").Enabled(ctx, slog.LevelInfo))
}

func TestOpenStore_SQLite(t *testing.T) {
	ctx := context.Background()
	store, err := openStore(ctx, config.StoreConfig{
		Driver:     config.DriverSQLite,
		SQLitePath: ":memory:",
	}, slog.Default())
	require.NoError(t, err)
	defer store.close()

	require.NoError(t, store.pinger.Ping(ctx))
	msgs, err := store.reader.List(ctx, types.MessageFilter{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
