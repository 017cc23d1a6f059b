package onboard

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot store backends.
const (
	BackendMemory = "memory"
	BackendFS     = "fs"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// DefaultSnapshotKey is the key flows are persisted under unless configured.
const DefaultSnapshotKey = "onboarding"

// Config is a serialisable representation of the engine configuration. The
// zero-value is usable; DefaultConfig documents the defaults.
type Config struct {
	Engine      EngineConfig      `json:"engine" yaml:"engine"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Tracing     TracingConfig     `json:"tracing" yaml:"tracing"`
}

// EngineConfig tunes navigation.
type EngineConfig struct {
	// Debug lowers the default logger to debug level.
	Debug bool `json:"debug" yaml:"debug"`
	// MaxTraversal bounds conditional traversal; zero uses the step count plus one.
	MaxTraversal int    `json:"maxTraversal" yaml:"maxTraversal"`
	InitialStep  string `json:"initialStep,omitempty" yaml:"initialStep,omitempty"`
}

// PersistenceConfig selects the snapshot store built by NewStore. An empty
// backend disables store based persistence.
type PersistenceConfig struct {
	Backend string        `json:"backend,omitempty" yaml:"backend,omitempty"`
	URL     string        `json:"url,omitempty" yaml:"url,omitempty"`
	Bucket  string        `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Key     string        `json:"key,omitempty" yaml:"key,omitempty"`
	TTL     time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// TracingConfig enables the stdout OpenTelemetry exporter.
type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Output         string `json:"output,omitempty" yaml:"output,omitempty"`
	ServiceName    string `json:"serviceName,omitempty" yaml:"serviceName,omitempty"`
	ServiceVersion string `json:"serviceVersion,omitempty" yaml:"serviceVersion,omitempty"`
}

// DefaultConfig returns a Config populated with the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Persistence: PersistenceConfig{Key: DefaultSnapshotKey},
		Tracing:     TracingConfig{ServiceName: "onboard", ServiceVersion: "0.0.1"},
	}
}

// LoadConfig decodes YAML (or JSON) data over DefaultConfig and validates it.
func LoadConfig(data []byte) (*Config, error) {
	ret := DefaultConfig()
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var issues []error
	if c.Engine.MaxTraversal < 0 {
		issues = append(issues, fmt.Errorf("engine.maxTraversal must be >= 0"))
	}
	switch c.Persistence.Backend {
	case "", BackendMemory:
	case BackendFS, BackendBolt, BackendSQLite:
		if c.Persistence.URL == "" {
			issues = append(issues, fmt.Errorf("persistence.url is required for %s backend", c.Persistence.Backend))
		}
	default:
		issues = append(issues, fmt.Errorf("unsupported persistence.backend: %q", c.Persistence.Backend))
	}
	if c.Persistence.TTL < 0 {
		issues = append(issues, fmt.Errorf("persistence.ttl must be >= 0"))
	}
	return errors.Join(issues...)
}

func (c *Config) snapshotKey() string {
	if c.Persistence.Key == "" {
		return DefaultSnapshotKey
	}
	return c.Persistence.Key
}
