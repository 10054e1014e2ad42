package config

import (
	"strings"
	"time"

	"github.com/marmos91/relayfs/pkg/wsserver"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Called after loading configuration from file and environment
// variables.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStorageDefaults(&cfg.Storage)
	applyAdminDefaults(&cfg.Admin)
	applyWSPortDefault(&cfg.WS)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	// wsserver.Config applies its own timeout/JWT defaults lazily at
	// construction time (NewServer); userstore.Config does the same for
	// its database connection settings. Port is defaulted here too so a
	// freshly loaded Config is inspectable before the server is built.
}

// applyWSPortDefault mirrors wsserver.Config's own port default so a
// loaded Config reports a sensible port before the listener is built.
func applyWSPortDefault(cfg *wsserver.Config) {
	if cfg.Port <= 0 {
		cfg.Port = 8080
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyStorageDefaults sets upload-engine storage defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Root == "" {
		cfg.Root = "/tmp/relayfs-storage"
	}
	if cfg.CodeStorePath == "" {
		cfg.CodeStorePath = "/tmp/relayfs-codes"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 8
	}
}

// applyAdminDefaults sets initial admin user defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied,
// usable without a config file for quick local testing.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
