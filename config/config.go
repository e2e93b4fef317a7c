// Package config loads coordination settings from standard locations.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variable overrides.
const (
	// EnvConfigPath points at an explicit config file, bypassing the
	// standard search order.
	EnvConfigPath = "TEKTON_CONFIG"

	// EnvSecret overrides the signing secret from any loaded file.
	EnvSecret = "TEKTON_SECRET"
)

// BusSettings configures the message bus transport.
type BusSettings struct {
	// Host of the NATS server, used by the networked bus only.
	Host string `toml:"host"`

	// Port of the NATS server.
	Port int `toml:"port"`

	// HistoryDepth is the per-topic retained message count.
	HistoryDepth int `toml:"history_depth"`
}

// Settings holds the coordination configuration. All durations are
// expressed in seconds in the file.
type Settings struct {
	// Secret signs registration tokens. Never commit it; prefer the
	// TEKTON_SECRET environment variable.
	Secret string `toml:"secret"`

	// TokenExpiration is the token lifetime in seconds.
	TokenExpiration int `toml:"token_expiration"`

	// HeartbeatInterval between component heartbeats, in seconds.
	HeartbeatInterval int `toml:"heartbeat_interval"`

	// HealthCheckInterval between registry health sweeps, in seconds.
	HealthCheckInterval int `toml:"health_check_interval"`

	// HealthCheckTimeout bounds a single probe, in seconds.
	HealthCheckTimeout int `toml:"health_check_timeout"`

	// Bus transport settings.
	Bus BusSettings `toml:"bus"`
}

// Default returns settings with production defaults.
func Default() Settings {
	return Settings{
		TokenExpiration:     3600,
		HeartbeatInterval:   60,
		HealthCheckInterval: 30,
		HealthCheckTimeout:  10,
		Bus: BusSettings{
			Host:         "localhost",
			Port:         4222,
			HistoryDepth: 100,
		},
	}
}

// TokenTTL returns the token lifetime as a duration.
func (s Settings) TokenTTL() time.Duration {
	return time.Duration(s.TokenExpiration) * time.Second
}

// HeartbeatEvery returns the heartbeat interval as a duration.
func (s Settings) HeartbeatEvery() time.Duration {
	return time.Duration(s.HeartbeatInterval) * time.Second
}

// HealthCheckEvery returns the sweep interval as a duration.
func (s Settings) HealthCheckEvery() time.Duration {
	return time.Duration(s.HealthCheckInterval) * time.Second
}

// HealthProbeTimeout returns the probe bound as a duration.
func (s Settings) HealthProbeTimeout() time.Duration {
	return time.Duration(s.HealthCheckTimeout) * time.Second
}

// Validate checks for values that cannot drive the runtime.
func (s Settings) Validate() error {
	if s.TokenExpiration <= 0 {
		return fmt.Errorf("token_expiration must be positive, got %d", s.TokenExpiration)
	}
	if s.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %d", s.HeartbeatInterval)
	}
	if s.HealthCheckInterval <= 0 {
		return fmt.Errorf("health_check_interval must be positive, got %d", s.HealthCheckInterval)
	}
	if s.HealthCheckTimeout <= 0 {
		return fmt.Errorf("health_check_timeout must be positive, got %d", s.HealthCheckTimeout)
	}
	if s.Bus.Port <= 0 || s.Bus.Port > 65535 {
		return fmt.Errorf("bus port out of range: %d", s.Bus.Port)
	}
	return nil
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"tekton.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "tekton", "tekton.toml"))
		paths = append(paths, filepath.Join(home, ".tekton", "tekton.toml"))
	}

	return paths
}

// Load reads settings from the first available standard location,
// applying environment overrides on top. A missing file is not an
// error; defaults are returned. The second return value is the path
// that was loaded, empty when none was found.
func Load() (Settings, string, error) {
	settings := Default()

	if path := os.Getenv(EnvConfigPath); path != "" {
		s, err := LoadFile(path)
		if err != nil {
			return settings, path, err
		}
		return applyEnv(s), path, nil
	}

	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		s, err := LoadFile(path)
		if err != nil {
			return settings, path, err
		}
		return applyEnv(s), path, nil
	}

	return applyEnv(settings), "", nil
}

// LoadFile reads settings from a specific file, over defaults.
func LoadFile(path string) (Settings, error) {
	settings := Default()
	if _, err := toml.DecodeFile(path, &settings); err != nil {
		return settings, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("validate %s: %w", path, err)
	}
	return settings, nil
}

// applyEnv layers environment overrides on loaded settings.
func applyEnv(s Settings) Settings {
	if secret := os.Getenv(EnvSecret); secret != "" {
		s.Secret = secret
	}
	return s
}
