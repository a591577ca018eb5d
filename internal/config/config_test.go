package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want %q", cfg.BindAddr, ":8080")
	}
	if cfg.MaxAttempts != 3 {
		t.Fatalf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.BrainAdapterMode != "auto" {
		t.Fatalf("BrainAdapterMode = %q, want %q", cfg.BrainAdapterMode, "auto")
	}
	if cfg.SessionInactivityTimeout != 2*time.Minute {
		t.Fatalf("SessionInactivityTimeout = %v, want 2m", cfg.SessionInactivityTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_MAX_ATTEMPTS", "5")
	t.Setenv("BRAIN_TIMEOUT", "3s")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.BrainTimeout != 3*time.Second {
		t.Fatalf("BrainTimeout = %v, want 3s", cfg.BrainTimeout)
	}
	if !cfg.AllowAnyOrigin {
		t.Fatalf("AllowAnyOrigin = false, want true")
	}
}

func TestLoadRejectsShortInactivityTimeout(t *testing.T) {
	t.Setenv("APP_SESSION_INACTIVITY_TIMEOUT", "1s")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for short inactivity timeout")
	}
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("APP_MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("Load() expected error for zero max attempts")
	}
}
