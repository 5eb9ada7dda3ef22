package postgres

import (
	"testing"
	"time"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	if cfg.PingTimeout != 2*time.Second {
		t.Fatalf("PingTimeout=%v, want 2s", cfg.PingTimeout)
	}
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("TRUSTBUILD_DATABASE_URL", "postgres://u:p@db:5432/runs")
	t.Setenv("TRUSTBUILD_DATABASE_MAX_OPEN_CONNS", "20")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.URL != "postgres://u:p@db:5432/runs" {
		t.Fatalf("URL=%q", cfg.URL)
	}
	if cfg.MaxOpenConns != 20 {
		t.Fatalf("MaxOpenConns=%d, want 20", cfg.MaxOpenConns)
	}
}

func TestConfigValidateRejectsIdleAboveOpen(t *testing.T) {
	cfg := Config{URL: "postgres://x", PingTimeout: time.Second, MaxOpenConns: 2, MaxIdleConns: 5}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for idle > open")
	}
}
