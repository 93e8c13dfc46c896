// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DatabasePath is the SQLite file backing the store. Empty selects the
	// in-memory store (useful for demos and tests).
	DatabasePath string `koanf:"database_path"`

	// ConsistencyThresholdPct is the maximum tolerated percentage
	// deviation of a judge's total from the team mean.
	ConsistencyThresholdPct float64 `koanf:"consistency_threshold_pct"`

	// DatabaseBusyTimeoutMS bounds SQLite lock waits.
	DatabaseBusyTimeoutMS int `koanf:"database_busy_timeout_ms"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9090",
		DatabasePath:            "",
		ConsistencyThresholdPct: 15,
		DatabaseBusyTimeoutMS:   5000,
	}
}
