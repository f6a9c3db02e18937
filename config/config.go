// Package config loads bridge settings from defaults, an optional config
// file, HOSTBRIDGE_* environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "HOSTBRIDGE"

const (
	BridgeHostKey            = "bridge.host"
	BridgePortKey            = "bridge.port"
	BridgeTimeoutKey         = "bridge.timeout"
	BridgeMaxClientsKey      = "bridge.max_clients"
	BridgeMaxMessageBytesKey = "bridge.max_message_bytes"
	BridgeStopTimeoutKey     = "bridge.stop_timeout"
	OwnerQueueSizeKey        = "owner.queue_size"
	WSListenKey              = "ws.listen"
	HTTPListenKey            = "http.listen"
	MDNSAdvertiseKey         = "mdns.advertise"
	MDNSInstanceKey          = "mdns.instance"
	HostNameKey              = "host.name"
	SceneNameKey             = "scene.name"
	LogLevelKey              = "log.level"
	LogFormatKey             = "log.format"
)

type BridgeConfig struct {
	Host            string
	Port            int           // 0 binds a free port
	Timeout         time.Duration // Client read timeout
	MaxClients      int
	MaxMessageBytes int
	StopTimeout     time.Duration
}

// Addr is the host:port the bridge listens on and clients dial.
func (b BridgeConfig) Addr() string {
	return net.JoinHostPort(b.Host, strconv.Itoa(b.Port))
}

type Config struct {
	Bridge         BridgeConfig
	OwnerQueueSize int
	WSListen       string // Empty disables the WebSocket transport
	HTTPListen     string // Empty disables the status server
	Advertise      bool
	Instance       string
	HostName       string
	SceneName      string
	Log            LogConfig
}

// SetDefaults installs every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(BridgeHostKey, "localhost")
	v.SetDefault(BridgePortKey, 9876)
	v.SetDefault(BridgeTimeoutKey, 15*time.Second)
	v.SetDefault(BridgeMaxClientsKey, 16)
	v.SetDefault(BridgeMaxMessageBytesKey, 16<<20)
	v.SetDefault(BridgeStopTimeoutKey, time.Second)
	v.SetDefault(OwnerQueueSizeKey, 64)
	v.SetDefault(WSListenKey, "")
	v.SetDefault(HTTPListenKey, "")
	v.SetDefault(MDNSAdvertiseKey, false)
	v.SetDefault(MDNSInstanceKey, "hostbridge")
	v.SetDefault(HostNameKey, "hostbridge")
	v.SetDefault(SceneNameKey, "")
	v.SetDefault(LogLevelKey, "info")
	v.SetDefault(LogFormatKey, "json")
}

// NewViper returns a viper instance with defaults and environment lookup
// configured. bridge.port is read from HOSTBRIDGE_BRIDGE_PORT.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile merges a YAML, JSON or TOML config file into v. An empty path does
// nothing.
func ReadFile(v *viper.Viper, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(home, path[2:])
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config file %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config file %q is a directory", path)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %q: %w", path, err)
	}
	return nil
}

// FromViper reads and validates the settings held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Bridge: BridgeConfig{
			Host:            v.GetString(BridgeHostKey),
			Port:            v.GetInt(BridgePortKey),
			Timeout:         v.GetDuration(BridgeTimeoutKey),
			MaxClients:      v.GetInt(BridgeMaxClientsKey),
			MaxMessageBytes: v.GetInt(BridgeMaxMessageBytesKey),
			StopTimeout:     v.GetDuration(BridgeStopTimeoutKey),
		},
		OwnerQueueSize: v.GetInt(OwnerQueueSizeKey),
		WSListen:       v.GetString(WSListenKey),
		HTTPListen:     v.GetString(HTTPListenKey),
		Advertise:      v.GetBool(MDNSAdvertiseKey),
		Instance:       v.GetString(MDNSInstanceKey),
		HostName:       v.GetString(HostNameKey),
		SceneName:      v.GetString(SceneNameKey),
	}

	level, err := ParseLevel(v.GetString(LogLevelKey))
	if err != nil {
		return nil, err
	}
	cfg.Log = LogConfig{Level: level, Format: strings.ToLower(v.GetString(LogFormatKey))}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds a Config from defaults, the environment and an optional file.
func Load(path string) (*Config, error) {
	v := NewViper()
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Bridge.Port < 0 || c.Bridge.Port > 65535 {
		errs = append(errs, fmt.Errorf("%s must be between 0 and 65535, got %d", BridgePortKey, c.Bridge.Port))
	}
	if c.Bridge.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", BridgeTimeoutKey))
	}
	if c.Bridge.MaxClients < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", BridgeMaxClientsKey))
	}
	if c.Bridge.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", BridgeMaxMessageBytesKey))
	}
	if c.OwnerQueueSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", OwnerQueueSizeKey))
	}
	switch c.Log.Format {
	case FormatJSON, FormatText:
	default:
		errs = append(errs, fmt.Errorf("%s must be %q or %q, got %q", LogFormatKey, FormatJSON, FormatText, c.Log.Format))
	}
	return errors.Join(errs...)
}
