package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Addr())
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Upload.MaxBytes != 5<<20 {
		t.Errorf("max bytes = %d", cfg.Upload.MaxBytes)
	}
	if cfg.Session.TTL.Duration != 30*24*time.Hour {
		t.Errorf("session ttl = %v", cfg.Session.TTL)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowance.toml")
	file := `
port = "9000"

[database]
driver = "postgres"
dsn = "postgres://localhost/allowance"

[session]
ttl = "2h"

[websocket]
origin_patterns = ["example.com"]
`
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ALLOWANCE_PORT", "9100")
	t.Setenv("ALLOWANCE_WS_ORIGINS", "a.example, b.example")
	t.Setenv("ALLOWANCE_LOGIN_RATE_LIMIT", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("port = %q, want env to win", cfg.Port)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/allowance" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Session.TTL.Duration != 2*time.Hour {
		t.Errorf("ttl = %v, want 2h", cfg.Session.TTL)
	}
	if len(cfg.WebSocket.OriginPatterns) != 2 || cfg.WebSocket.OriginPatterns[1] != "b.example" {
		t.Errorf("origins = %v", cfg.WebSocket.OriginPatterns)
	}
	if cfg.RateLimit.LoginAttempts != 3 {
		t.Errorf("login attempts = %d, want 3", cfg.RateLimit.LoginAttempts)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q, want default", cfg.Log.Level)
	}
}

func TestLoadBadEnvValue(t *testing.T) {
	t.Setenv("ALLOWANCE_SESSION_TTL", "forever")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "ALLOWANCE_SESSION_TTL") {
		t.Errorf("err = %v, want ALLOWANCE_SESSION_TTL parse error", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Port = "http"
	cfg.Database.Driver = "mysql"
	cfg.Upload.Backend = "s3"
	cfg.RateLimit.LoginAttempts = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"port", "mysql", "s3 bucket", "s3 public url", "login rate limit"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
