// Package config loads the prism configuration file (YAML) and provides
// compiled defaults for every tunable: classification thresholds, revision
// limits, and logging. Components never read the file themselves; they
// receive the typed sections they need.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Thresholds holds the numeric cutoffs used by curve classification.
// Peak-position percent error is tiered match/partial/mismatch; normalized
// RMSE (percent) is the fallback pair when no peak error is available.
type Thresholds struct {
	PeakErrorMatch   float64 `yaml:"peak_error_match"`   // <= => match (default 2.0)
	PeakErrorPartial float64 `yaml:"peak_error_partial"` // <= => partial_match (default 10.0)
	RMSEMatch        float64 `yaml:"rmse_match"`         // <= => match (default 5.0)
	RMSEPartial      float64 `yaml:"rmse_partial"`       // <= => partial_match (default 15.0)
}

// DefaultThresholds returns conservative default classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PeakErrorMatch:   2.0,
		PeakErrorPartial: 10.0,
		RMSEMatch:        5.0,
		RMSEPartial:      15.0,
	}
}

// Limits bounds the automated retry machinery. Named counters look up their
// max under Revisions by config key; missing keys fall back to the
// per-call default the caller supplies.
type Limits struct {
	Revisions    map[string]int `yaml:"revisions"`     // config key -> max revisions
	BacktrackMax int            `yaml:"backtrack_max"` // workflow-level backtrack cap
}

// DefaultLimits returns the compiled limit defaults.
func DefaultLimits() Limits {
	return Limits{
		Revisions: map[string]int{
			"design_revisions":  3,
			"code_revisions":    3,
			"execute_retries":   2,
			"analysis_retries":  2,
			"replan_iterations": 2,
		},
		BacktrackMax: 3,
	}
}

// RevisionMax resolves the configured max for a counter's config key,
// falling back to defaultMax when the key is absent or non-positive.
func (l Limits) RevisionMax(configKey string, defaultMax int) int {
	if v, ok := l.Revisions[configKey]; ok && v > 0 {
		return v
	}
	return defaultMax
}

// Logging selects the slog level and handler format.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Config is the root configuration document.
type Config struct {
	Logging    Logging    `yaml:"logging"`
	Thresholds Thresholds `yaml:"thresholds"`
	Limits     Limits     `yaml:"limits"`
	StorePath  string     `yaml:"store_path"` // SQLite DB path; empty = in-memory
}

// Default returns the full compiled-default configuration.
func Default() Config {
	return Config{
		Logging:    Logging{Level: "info", Format: "text"},
		Thresholds: DefaultThresholds(),
		Limits:     DefaultLimits(),
	}
}

// Load reads a YAML config file and overlays it on the defaults. Sections
// omitted from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	// A partial limits section should not wipe the default counter maxes.
	if cfg.Limits.Revisions == nil {
		cfg.Limits.Revisions = DefaultLimits().Revisions
	}
	if cfg.Limits.BacktrackMax <= 0 {
		cfg.Limits.BacktrackMax = DefaultLimits().BacktrackMax
	}
	return cfg, nil
}
