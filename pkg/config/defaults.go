package config

import (
	"strings"
	"time"

	"github.com/netmount/netmount/internal/bytesize"
)

// GetDefaultConfig returns a fully-populated configuration using built-in
// defaults, used when no config file is present.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets default values for any unspecified configuration
// fields. Called after loading from file and environment.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
	applyClientDefaults(&cfg.Client)
	applyRetryDefaults(&cfg.Retry)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":50051"
	}
	if cfg.BackingDir == "" {
		cfg.BackingDir = "./remoteStore"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MaxWriteLogEntrySize == 0 {
		cfg.MaxWriteLogEntrySize = 64 * bytesize.MiB
	}
}

func applyClientDefaults(cfg *ClientConfig) {
	if cfg.ServerAddress == "" {
		cfg.ServerAddress = "localhost:50051"
	}
	if cfg.MaxReadWriteSize == 0 {
		cfg.MaxReadWriteSize = 1 * bytesize.MiB
	}
	// AsyncWrites defaults to true: the write-buffer/commit protocol (C5)
	// is the steady-state path, synchronous writes are a diagnostic mode.
	if cfg.AsyncWrites == nil {
		async := true
		cfg.AsyncWrites = &async
	}
}

func applyRetryDefaults(cfg *RetryConfig) {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	if cfg.PerAttemptTimeout == 0 {
		cfg.PerAttemptTimeout = 1 * time.Second
	}
}
