package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tekton.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// --- Unit Tests ---

func TestDefaults(t *testing.T) {
	s := Default()

	if s.TokenTTL() != time.Hour {
		t.Errorf("TokenTTL = %v, want 1h", s.TokenTTL())
	}
	if s.HeartbeatEvery() != 60*time.Second {
		t.Errorf("HeartbeatEvery = %v, want 60s", s.HeartbeatEvery())
	}
	if s.HealthCheckEvery() != 30*time.Second {
		t.Errorf("HealthCheckEvery = %v, want 30s", s.HealthCheckEvery())
	}
	if s.HealthProbeTimeout() != 10*time.Second {
		t.Errorf("HealthProbeTimeout = %v, want 10s", s.HealthProbeTimeout())
	}
	if s.Bus.Host != "localhost" || s.Bus.Port != 4222 {
		t.Errorf("bus defaults = %s:%d, want localhost:4222", s.Bus.Host, s.Bus.Port)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
secret = "file-secret"
token_expiration = 600
heartbeat_interval = 15

[bus]
host = "nats.internal"
port = 14222
history_depth = 50
`)

	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if s.Secret != "file-secret" {
		t.Errorf("secret = %q, want file-secret", s.Secret)
	}
	if s.TokenExpiration != 600 {
		t.Errorf("token_expiration = %d, want 600", s.TokenExpiration)
	}
	if s.HeartbeatInterval != 15 {
		t.Errorf("heartbeat_interval = %d, want 15", s.HeartbeatInterval)
	}
	// Untouched fields keep their defaults
	if s.HealthCheckInterval != 30 {
		t.Errorf("health_check_interval = %d, want default 30", s.HealthCheckInterval)
	}
	if s.Bus.Host != "nats.internal" || s.Bus.Port != 14222 || s.Bus.HistoryDepth != 50 {
		t.Errorf("bus = %+v, want nats.internal:14222 depth 50", s.Bus)
	}
}

func TestLoadFileRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero token expiration", "token_expiration = 0"},
		{"negative heartbeat", "heartbeat_interval = -5"},
		{"port out of range", "[bus]\nport = 70000"},
		{"malformed toml", "secret = "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := LoadFile(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvSecret, "")
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(origDir) })
	t.Setenv("HOME", t.TempDir())

	s, path, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if s.TokenExpiration != Default().TokenExpiration {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `secret = "file-secret"`)

	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvSecret, "env-secret")

	s, loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != path {
		t.Errorf("loaded path = %q, want %q", loaded, path)
	}
	if s.Secret != "env-secret" {
		t.Errorf("secret = %q, env override should win", s.Secret)
	}
}

func TestLoadExplicitPathErrors(t *testing.T) {
	t.Setenv(EnvConfigPath, filepath.Join(t.TempDir(), "absent.toml"))

	if _, _, err := Load(); err == nil {
		t.Error("explicit config path must exist")
	}
}
