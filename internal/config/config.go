// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/pulse/internal/component"
	"firestige.xyz/pulse/internal/core"
	"firestige.xyz/pulse/internal/observe"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `pulse:` root key in YAML.
type GlobalConfig struct {
	Control    ControlConfig              `mapstructure:"control"`
	Metrics    MetricsConfig              `mapstructure:"metrics"`
	Log        LogConfig                  `mapstructure:"log"`
	API        APIConfig                  `mapstructure:"api"`
	Tap        TapConfig                  `mapstructure:"tap"`
	Sources    map[string]ComponentConfig `mapstructure:"sources"`
	Transforms map[string]ComponentConfig `mapstructure:"transforms"`
	Sinks      map[string]ComponentConfig `mapstructure:"sinks"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus scrape endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Observability API ───

// APIConfig configures the subscription surface.
type APIConfig struct {
	DefaultInterval int `mapstructure:"default_interval"` // milliseconds
}

// TapConfig configures live taps.
type TapConfig struct {
	BufferSize int `mapstructure:"buffer_size"` // per forwarding route
}

// ─── Components ───

// ComponentConfig declares one pipeline component.
type ComponentConfig struct {
	Type    string         `mapstructure:"type"`
	Inputs  []string       `mapstructure:"inputs"`
	Options map[string]any `mapstructure:"options"`
}

// Declared is a component with its role resolved from the section it was
// declared in.
type Declared struct {
	component.Component
	Inputs  []string
	Options map[string]any
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `pulse: ...`.
type configRoot struct {
	Pulse GlobalConfig `mapstructure:"pulse"`
}

// Load loads configuration from file.
// The YAML file uses `pulse:` as root key; env vars map through the key
// replacer (e.g., key "pulse.log.level" → env "PULSE_LOG_LEVEL").
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Pulse
	cfg.Sources = declaredNames(v, "pulse.sources", cfg.Sources)
	cfg.Transforms = declaredNames(v, "pulse.transforms", cfg.Transforms)
	cfg.Sinks = declaredNames(v, "pulse.sinks", cfg.Sinks)

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// declaredNames restores components whose body is empty. Unmarshal only
// sees leaf keys, so `in: {}` would otherwise vanish instead of failing
// the missing type check.
func declaredNames(v *viper.Viper, key string, section map[string]ComponentConfig) map[string]ComponentConfig {
	for name := range v.GetStringMap(key) {
		if _, ok := section[name]; ok {
			continue
		}
		if section == nil {
			section = make(map[string]ComponentConfig)
		}
		section[name] = ComponentConfig{}
	}
	return section
}

// setDefaults sets default values for configuration.
// All keys use the "pulse." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Control defaults
	v.SetDefault("pulse.control.pid_file", "/var/run/pulse.pid")
	v.SetDefault("pulse.control.socket", "/var/run/pulse.sock")

	// Log defaults
	v.SetDefault("pulse.log.level", "info")
	v.SetDefault("pulse.log.format", "json")
	v.SetDefault("pulse.log.outputs.file.enabled", false)
	v.SetDefault("pulse.log.outputs.file.path", "/var/log/pulse/pulse.log")
	v.SetDefault("pulse.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("pulse.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("pulse.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("pulse.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("pulse.metrics.enabled", true)
	v.SetDefault("pulse.metrics.listen", ":9598")
	v.SetDefault("pulse.metrics.path", "/metrics")

	// Observability defaults
	v.SetDefault("pulse.api.default_interval", observe.DefaultInterval)
	v.SetDefault("pulse.tap.buffer_size", 100)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}

	// ── API validation ──
	if cfg.API.DefaultInterval == 0 {
		cfg.API.DefaultInterval = observe.DefaultInterval
	}
	if err := observe.ValidateInterval(cfg.API.DefaultInterval); err != nil {
		return fmt.Errorf("%w: api.default_interval: %w", core.ErrConfigInvalid, err)
	}

	if cfg.Tap.BufferSize <= 0 {
		return fmt.Errorf("%w: tap.buffer_size must be positive, got %d", core.ErrConfigInvalid, cfg.Tap.BufferSize)
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
	}

	return cfg.validateComponents()
}

// validateComponents checks names are unique across sections and that
// every input names a declared source or transform.
func (cfg *GlobalConfig) validateComponents() error {
	roles := make(map[string]component.Role)
	for _, d := range cfg.Components() {
		if _, dup := roles[d.Name]; dup {
			return fmt.Errorf("%w: component %q declared more than once", core.ErrConfigInvalid, d.Name)
		}
		if d.Type == "" {
			return fmt.Errorf("%w: component %q has no type", core.ErrConfigInvalid, d.Name)
		}
		roles[d.Name] = d.Role
	}

	for _, d := range cfg.Components() {
		switch {
		case d.Role == component.Source && len(d.Inputs) > 0:
			return fmt.Errorf("%w: source %q cannot have inputs", core.ErrConfigInvalid, d.Name)
		case d.Role != component.Source && len(d.Inputs) == 0:
			return fmt.Errorf("%w: %s %q needs at least one input", core.ErrConfigInvalid, d.Role, d.Name)
		}
		for _, in := range d.Inputs {
			role, ok := roles[in]
			if !ok {
				return fmt.Errorf("%w: %q input %q is not a declared component", core.ErrConfigInvalid, d.Name, in)
			}
			if role == component.Sink {
				return fmt.Errorf("%w: %q input %q is a sink", core.ErrConfigInvalid, d.Name, in)
			}
			if in == d.Name {
				return fmt.Errorf("%w: %q lists itself as input", core.ErrConfigInvalid, d.Name)
			}
		}
	}
	return nil
}

// Components flattens the three sections into declarations ordered by
// role, then name.
func (cfg *GlobalConfig) Components() []Declared {
	out := make([]Declared, 0, len(cfg.Sources)+len(cfg.Transforms)+len(cfg.Sinks))
	add := func(role component.Role, section map[string]ComponentConfig) {
		names := make([]string, 0, len(section))
		for name := range section {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := section[name]
			out = append(out, Declared{
				Component: component.Component{Name: name, Type: c.Type, Role: role},
				Inputs:    c.Inputs,
				Options:   c.Options,
			})
		}
	}
	add(component.Source, cfg.Sources)
	add(component.Transform, cfg.Transforms)
	add(component.Sink, cfg.Sinks)
	return out
}
