package telemetry

import "github.com/nimbusfs/nimbusfs/internal/config"

// FromConfig builds tracing and profiling configs from the mount's
// telemetry section.
func FromConfig(cfg config.TelemetryConfig, serviceVersion string) (Config, ProfilingConfig) {
	tracing := DefaultConfig()
	tracing.Enabled = cfg.Enabled
	tracing.ServiceVersion = serviceVersion
	if cfg.Endpoint != "" {
		tracing.Endpoint = cfg.Endpoint
	}
	if cfg.SampleRate > 0 {
		tracing.SampleRate = cfg.SampleRate
	}

	profiling := DefaultProfilingConfig()
	profiling.Enabled = cfg.ProfilingEnabled
	profiling.ServiceVersion = serviceVersion
	if cfg.ProfilingEndpoint != "" {
		profiling.Endpoint = cfg.ProfilingEndpoint
	}

	return tracing, profiling
}
