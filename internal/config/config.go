// Package config loads KataRoute configuration from defaults, an optional
// YAML file, and KATAROUTE_* environment variables, in that order of
// increasing precedence.
//
// The numeric thresholds and memory windows are configuration, not
// invariants: deployments tune them without code changes.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces KataRoute environment variables. A double
// underscore separates nesting levels so single underscores survive
// inside key names, e.g. KATAROUTE_ROUTER__CLASSIC_CONFIDENCE_THRESHOLD.
const envPrefix = "KATAROUTE_"

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Addr string `koanf:"addr"`
}

// RouterConfig holds the routing decision tunables.
type RouterConfig struct {
	// ClassicConfidenceThreshold is the default minimum classic-match
	// confidence that short-circuits the generative path. A user policy
	// may override it per user.
	ClassicConfidenceThreshold float64 `koanf:"classic_confidence_threshold"`
	// CompletionTimeoutSeconds bounds the LLM completion call.
	CompletionTimeoutSeconds int `koanf:"completion_timeout_seconds"`
}

// EnrichConfig holds the context enrichment tunables.
type EnrichConfig struct {
	// DomainCutoff is the minimum normalized keyword score below which
	// the domain falls back to general-info.
	DomainCutoff float64 `koanf:"domain_cutoff"`
}

// MemoryConfig holds the conversational memory windows and storage driver.
type MemoryConfig struct {
	StrictWindowMinutes   int    `koanf:"strict_window_minutes"`
	ExtendedWindowMinutes int    `koanf:"extended_window_minutes"`
	MaxWindowMinutes      int    `koanf:"max_window_minutes"`
	Driver                string `koanf:"driver"` // memory, sqlite, postgres, redis
	DSN                   string `koanf:"dsn"`
	RedisAddr             string `koanf:"redis_addr"`
}

// AuditConfig holds the audit sink storage driver and queue sizing.
type AuditConfig struct {
	Driver    string `koanf:"driver"` // memory, sqlite, postgres
	DSN       string `koanf:"dsn"`
	QueueSize int    `koanf:"queue_size"`
}

// ProfilesConfig points at the user profiles YAML file.
type ProfilesConfig struct {
	Path string `koanf:"path"`
}

// OpenAIConfig selects the completion model. The API key comes from the
// OPENAI_API_KEY environment variable, never from a file.
type OpenAIConfig struct {
	Model string `koanf:"model"`
}

// Config is the full KataRoute configuration tree.
type Config struct {
	API      APIConfig      `koanf:"api"`
	Router   RouterConfig   `koanf:"router"`
	Enrich   EnrichConfig   `koanf:"enrich"`
	Memory   MemoryConfig   `koanf:"memory"`
	Audit    AuditConfig    `koanf:"audit"`
	Profiles ProfilesConfig `koanf:"profiles"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
}

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		API: APIConfig{Addr: ":8080"},
		Router: RouterConfig{
			ClassicConfidenceThreshold: 0.85,
			CompletionTimeoutSeconds:   8,
		},
		Enrich: EnrichConfig{DomainCutoff: 0.3},
		Memory: MemoryConfig{
			StrictWindowMinutes:   2,
			ExtendedWindowMinutes: 5,
			MaxWindowMinutes:      10,
			Driver:                "memory",
		},
		Audit: AuditConfig{
			Driver:    "memory",
			QueueSize: 256,
		},
		OpenAI: OpenAIConfig{Model: "gpt-4o-mini"},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		slog.Debug("config.Load: config file loaded", "path", path)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envToKey), nil); err != nil {
		return cfg, fmt.Errorf("failed to load environment config: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	slog.Info("config.Load: configuration loaded",
		"api_addr", cfg.API.Addr,
		"memory_driver", cfg.Memory.Driver,
		"audit_driver", cfg.Audit.Driver,
		"classic_threshold", cfg.Router.ClassicConfidenceThreshold)
	return cfg, nil
}

// envToKey maps KATAROUTE_MEMORY__STRICT_WINDOW_MINUTES to
// memory.strict_window_minutes.
func envToKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// StrictWindow is the window in which memory is carried automatically.
func (c MemoryConfig) StrictWindow() time.Duration {
	return time.Duration(c.StrictWindowMinutes) * time.Minute
}

// ExtendedWindow is the window for same-domain or incomplete-context carry-over.
func (c MemoryConfig) ExtendedWindow() time.Duration {
	return time.Duration(c.ExtendedWindowMinutes) * time.Minute
}

// MaxWindow is the retention window; older entries read as absent.
func (c MemoryConfig) MaxWindow() time.Duration {
	return time.Duration(c.MaxWindowMinutes) * time.Minute
}

// CompletionTimeout bounds one LLM completion call.
func (c RouterConfig) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutSeconds) * time.Second
}
