package config

import "testing"

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default log level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Server.ListenAddress != ":50051" {
		t.Errorf("expected default listen address :50051, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.BackingDir != "./remoteStore" {
		t.Errorf("expected default backing dir ./remoteStore, got %q", cfg.Server.BackingDir)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("expected default max attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Client.AsyncWrites == nil || !*cfg.Client.AsyncWrites {
		t.Errorf("expected default async writes true")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for invalid log level")
	}
}

func TestValidate_MissingBackingDir(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.BackingDir = ""

	if err := Validate(cfg); err == nil {
		t.Error("expected validation error for missing backing dir")
	}
}
