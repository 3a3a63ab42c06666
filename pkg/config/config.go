// Package config loads and validates netmount configuration from file,
// environment variables, and built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/netmount/netmount/internal/bytesize"
)

// Config is the top-level configuration for both the netmountd server
// and the netmount client.
type Config struct {
	// Logging controls structured log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing and profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls the Prometheus metrics HTTP endpoint.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the netmountd RPC server.
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Client configures the netmount mount client.
	Client ClientConfig `mapstructure:"client" yaml:"client"`

	// Retry configures the bounded exponential backoff retry policy (C3).
	Retry RetryConfig `mapstructure:"retry" yaml:"retry"`
}

// LoggingConfig controls structured logging via log/slog.
type LoggingConfig struct {
	// Level is the minimum log level.
	// Valid values: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	// Default: false (opt-in)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ServerConfig configures netmountd, the stateless RPC server that backs
// the exported namespace with a real on-disk directory.
type ServerConfig struct {
	// ListenAddress is the "host:port" the RPC transport listens on.
	// Default: ":50051"
	ListenAddress string `mapstructure:"listen_address" validate:"required" yaml:"listen_address"`

	// BackingDir is the local directory that materializes the exported
	// namespace. Created with mode 0777 if absent.
	// Default: "./remoteStore"
	BackingDir string `mapstructure:"backing_dir" validate:"required" yaml:"backing_dir"`

	// ShutdownTimeout bounds how long the server waits for in-flight
	// requests to finish during a graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// MaxWriteLogEntrySize caps the payload of a single buffered WRITE
	// the server-side write-log (C6) will accept for one path.
	MaxWriteLogEntrySize bytesize.ByteSize `mapstructure:"max_write_log_entry_size" yaml:"max_write_log_entry_size,omitempty"`
}

// ClientConfig configures netmount, the FUSE mount client.
type ClientConfig struct {
	// ServerAddress is the "host:port" of the netmountd endpoint to dial.
	ServerAddress string `mapstructure:"server_address" validate:"required" yaml:"server_address"`

	// MountPoint is the local directory the remote namespace is mounted on.
	MountPoint string `mapstructure:"mount_point" validate:"required" yaml:"mount_point"`

	// AsyncWrites selects whether WRITE upcalls go through the client
	// write buffer (C5, buffered/async) or are issued synchronously.
	// This mirrors the SET_RUN_SYNC mode-switch ioctl. nil means unset;
	// defaults to true (buffered/async).
	AsyncWrites *bool `mapstructure:"async_writes" yaml:"async_writes,omitempty"`

	// MaxReadWriteSize bounds the size of a single READ or WRITE upcall
	// forwarded to the server in one RPC.
	MaxReadWriteSize bytesize.ByteSize `mapstructure:"max_read_write_size" yaml:"max_read_write_size,omitempty"`
}

// RetryConfig configures C3, the bounded exponential backoff retry policy
// applied around every unary RPC call.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts for a single call (N=3).
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,min=1" yaml:"max_attempts"`

	// InitialBackoff is the delay before the second attempt (1s); it
	// doubles on every subsequent retry.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"required,gt=0" yaml:"initial_backoff"`

	// PerAttemptTimeout bounds a single attempt's RPC deadline (1s).
	PerAttemptTimeout time.Duration `mapstructure:"per_attempt_timeout" validate:"required,gt=0" yaml:"per_attempt_timeout"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NETMOUNT_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys that the configuration file
// sets. When no configuration file is found, the built-in defaults are
// returned as they are and the environment is not consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration, providing a helpful error if no config
// file exists at the default location and none was specified explicitly.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			cfg := GetDefaultConfig()
			return cfg, nil
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file
// search settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("NETMOUNT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns the combined mapstructure decode hook for
// ByteSize and time.Duration custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "1MB" or "64Ki".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling config
// files to use human-readable durations like "1s" or "500ms".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "netmount")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "netmount")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
