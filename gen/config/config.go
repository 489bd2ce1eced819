// Package config holds the validated, strongly-typed parameter structures
// consumed by the generation core, plus the shared ConfigError type used for
// fail-fast validation across all core packages.
package config

import "fmt"

// ConfigError reports invalid or contradictory configuration. All validation
// happens before scheduling starts, so a ConfigError always surfaces
// synchronously and no partial output is produced.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Reason
	}
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
}

// Errorf builds a ConfigError with a formatted reason.
func Errorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TrafficMode selects how the global rate varies over simulated time.
type TrafficMode string

const (
	// TrafficConstant emits at a flat, time-invariant rate.
	TrafficConstant TrafficMode = "constant"
	// TrafficRealistic shapes the rate by weekday/weekend and peak hours.
	TrafficRealistic TrafficMode = "realistic"
)

// Traffic controls the simulated clock and the global rate shape.
type Traffic struct {
	Mode TrafficMode `yaml:"mode"`
	// EventsPerSecond is the flat global rate for constant mode and the
	// base rate for uniform-mode pacing.
	EventsPerSecond float64 `yaml:"events_per_second"`
	// StartTime anchors the simulated clock (RFC3339). Empty means now.
	StartTime string `yaml:"start_time"`
	// TimeScale maps simulated seconds onto wall seconds (60 = one
	// simulated minute per wall second). Zero or negative disables pacing
	// and the generator free-runs.
	TimeScale float64 `yaml:"time_scale"`
	// Curve shapes realistic mode. Nil selects the built-in defaults.
	Curve *Curve `yaml:"curve"`
}

// Curve is the weekday/peak multiplier shape for realistic traffic.
type Curve struct {
	WeekdayMultiplier float64 `yaml:"weekday_multiplier"`
	WeekendMultiplier float64 `yaml:"weekend_multiplier"`
	PeakHoursLocal    []int   `yaml:"peak_hours_local"`
	PeakMultiplier    float64 `yaml:"peak_multiplier"`
}

// Validate rejects out-of-range curve parameters.
func (c *Curve) Validate() error {
	if c == nil {
		return nil
	}
	for _, h := range c.PeakHoursLocal {
		if h < 0 || h > 23 {
			return Errorf("traffic.curve.peak_hours_local", "hour %d outside [0,23]", h)
		}
	}
	if c.WeekdayMultiplier < 0 || c.WeekendMultiplier < 0 || c.PeakMultiplier < 0 {
		return Errorf("traffic.curve", "multipliers must be >= 0")
	}
	return nil
}

// Output configures the sink directory and rotation policy shared by all
// writer shards.
type Output struct {
	Dir   string `yaml:"dir"`
	Files Files  `yaml:"files"`
}

// Files is the rotation policy for one shard's file sequence.
type Files struct {
	TargetSizeMB  int64 `yaml:"target_size_mb"`
	MaxAgeSeconds int64 `yaml:"max_age_seconds"`
}

// Format selects the physical encoding for one source's output.
type Format struct {
	// Type is "jsonl" or "parquet".
	Type string `yaml:"type"`
	// Compression is "", "gzip", or "zstd". Parquet always compresses
	// internally; for parquet this picks the column codec.
	Compression string `yaml:"compression"`
}

// Validate rejects unknown encodings.
func (f Format) Validate() error {
	switch f.Type {
	case "jsonl", "parquet":
	default:
		return Errorf("format.type", "unknown encoding %q", f.Type)
	}
	switch f.Compression {
	case "", "gzip", "zstd":
	default:
		return Errorf("format.compression", "unknown compression %q", f.Compression)
	}
	return nil
}

// Limits bounds a generation run. Zero values mean unlimited.
type Limits struct {
	MaxEvents  int64
	MaxSeconds int64
}
