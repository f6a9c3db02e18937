package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Bridge.Host)
	assert.Equal(t, 9876, cfg.Bridge.Port)
	assert.Equal(t, "localhost:9876", cfg.Bridge.Addr())
	assert.Equal(t, 15*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, 16, cfg.Bridge.MaxClients)
	assert.Equal(t, 16<<20, cfg.Bridge.MaxMessageBytes)
	assert.Equal(t, time.Second, cfg.Bridge.StopTimeout)
	assert.Equal(t, 64, cfg.OwnerQueueSize)
	assert.Empty(t, cfg.WSListen)
	assert.Empty(t, cfg.HTTPListen)
	assert.False(t, cfg.Advertise)
	assert.Equal(t, "hostbridge", cfg.Instance)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Log.Format)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HOSTBRIDGE_BRIDGE_PORT", "7001")
	t.Setenv("HOSTBRIDGE_BRIDGE_TIMEOUT", "250ms")
	t.Setenv("HOSTBRIDGE_LOG_LEVEL", "debug")
	t.Setenv("HOSTBRIDGE_MDNS_ADVERTISE", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7001, cfg.Bridge.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Bridge.Timeout)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.True(t, cfg.Advertise)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostbridge.yaml")
	data := "bridge:\n  host: 0.0.0.0\n  port: 7002\nhttp:\n  listen: 127.0.0.1:8080\nlog:\n  format: text\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:7002", cfg.Bridge.Addr())
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPListen)
	assert.Equal(t, FormatText, cfg.Log.Format)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostbridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"bridge":{"port":7003}}`), 0o600))
	t.Setenv("HOSTBRIDGE_BRIDGE_PORT", "7004")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7004, cfg.Bridge.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	_, err = Load(t.TempDir())
	require.ErrorContains(t, err, "is a directory")
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HOSTBRIDGE_BRIDGE_PORT", "70000")
	t.Setenv("HOSTBRIDGE_LOG_FORMAT", "xml")
	t.Setenv("HOSTBRIDGE_OWNER_QUEUE_SIZE", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorContains(t, err, BridgePortKey)
	assert.ErrorContains(t, err, LogFormatKey)
	assert.ErrorContains(t, err, OwnerQueueSizeKey)
}

func TestLoad_InvalidLevel(t *testing.T) {
	t.Setenv("HOSTBRIDGE_LOG_LEVEL", "loud")
	_, err := Load("")
	require.ErrorContains(t, err, "invalid log level")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: slog.LevelWarn, Format: FormatJSON, Output: &buf})
	logger.Info("hidden")
	logger.Warn("Client disconnected", "addr", "127.0.0.1:5000")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"Client disconnected"`)
	assert.Contains(t, out, `"addr":"127.0.0.1:5000"`)

	buf.Reset()
	NewLogger(LogConfig{Level: slog.LevelInfo, Format: FormatText, Output: &buf}).Info("Started", "port", 9876)
	assert.Contains(t, buf.String(), "msg=Started port=9876")
}

func TestLogConfigPresets(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, DefaultLogConfig().Level)
	assert.Equal(t, slog.LevelWarn, QuietLogConfig().Level)

	prev := slog.Default()
	defer slog.SetDefault(prev)
	logger := SetupLogger(SuppressedLogConfig())
	assert.Same(t, logger, slog.Default())
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
