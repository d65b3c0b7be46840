package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  addr: ":9090"
db:
  dsn: "postgres://localhost/test"
stripe:
  secret_key: "sk_test_123"
mail:
  token: "mt_abc"
  sender_email: "info@example.com"
  sender_name: "Example"
  templates:
    underfunded: "tpl-underfunded"
    stage_advanced: "tpl-stage"
    discontinued: "tpl-disc"
    order_status: "tpl-status"
sweep:
  hour_utc: 4
  minute_utc: 30
settlement:
  call_timeout_seconds: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.DB.DSN != "postgres://localhost/test" {
		t.Errorf("dsn = %q", cfg.DB.DSN)
	}
	if cfg.Stripe.SecretKey != "sk_test_123" {
		t.Errorf("stripe key = %q", cfg.Stripe.SecretKey)
	}
	if cfg.Mail.Templates.Underfunded != "tpl-underfunded" {
		t.Errorf("underfunded template = %q", cfg.Mail.Templates.Underfunded)
	}
	if cfg.Sweep.HourUTC != 4 || cfg.Sweep.MinuteUTC != 30 {
		t.Errorf("sweep = %d:%d, want 4:30", cfg.Sweep.HourUTC, cfg.Sweep.MinuteUTC)
	}
	if cfg.Settlement.CallTimeoutSeconds != 5 {
		t.Errorf("call timeout = %d, want 5", cfg.Settlement.CallTimeoutSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("DB_DSN", "postgres://override/db")
	t.Setenv("SWEEP_HOUR_UTC", "6")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "30")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.DB.DSN != "postgres://override/db" {
		t.Errorf("dsn = %q, want env override", cfg.DB.DSN)
	}
	if cfg.Sweep.HourUTC != 6 {
		t.Errorf("sweep hour = %d, want 6", cfg.Sweep.HourUTC)
	}
	if cfg.Sweep.IntervalSeconds != 30 {
		t.Errorf("sweep interval = %d, want 30", cfg.Sweep.IntervalSeconds)
	}
}

func TestLoadBadEnvNumberKeepsFileValue(t *testing.T) {
	t.Setenv("SWEEP_HOUR_UTC", "not-a-number")
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Sweep.HourUTC != 4 {
		t.Errorf("sweep hour = %d, want file value 4", cfg.Sweep.HourUTC)
	}
}

func TestLoadDefaultsCallTimeout(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  addr: ":8080"
db:
  dsn: "postgres://localhost/test"
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Settlement.CallTimeoutSeconds != 15 {
		t.Errorf("call timeout = %d, want default 15", cfg.Settlement.CallTimeoutSeconds)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing addr", "db:\n  dsn: x\n"},
		{"missing dsn", "server:\n  addr: ':8080'\n"},
		{"hour out of range", "server:\n  addr: ':8080'\ndb:\n  dsn: x\nsweep:\n  hour_utc: 24\n"},
		{"minute out of range", "server:\n  addr: ':8080'\ndb:\n  dsn: x\nsweep:\n  minute_utc: 60\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
