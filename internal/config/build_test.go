package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()

	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "none", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
}

func TestBuildInfo_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("starting", "build", BuildInfo{Version: "1.2.3", Commit: "abc123", BuildTime: "2024-01-01T00:00:00Z"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	build, ok := entry["build"].(map[string]any)
	require.True(t, ok, "build should be logged as a group, got %v", entry["build"])
	assert.Equal(t, "1.2.3", build["version"])
	assert.Equal(t, "abc123", build["commit"])
	assert.Equal(t, "2024-01-01T00:00:00Z", build["build_time"])
}
