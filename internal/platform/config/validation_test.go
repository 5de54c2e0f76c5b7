package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{Name: "svc", Version: "1.0.0", Environment: "test"},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  5 * time.Second,
			MaxRequestSize:  DefaultMaxRequestSize,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Worker: WorkerConfig{
			Size:         2,
			QueueSize:    8,
			PollInterval: time.Millisecond,
		},
		Ambient: AmbientConfig{
			TraceHeader:       "X-Trace-ID",
			RequestHeader:     "X-Request-ID",
			CorrelationHeader: "X-Correlation-ID",
			TenantHeader:      "X-Tenant-ID",
			JobDeadline:       time.Minute,
		},
		Client: ClientConfig{
			Timeout: 5 * time.Second,
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 100 * time.Millisecond,
				MaxInterval:     time.Second,
				Multiplier:      2,
				JitterFactor:    0.25,
			},
			Transport: TransportConfig{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		Downstream: DownstreamConfig{BaseURL: "http://localhost:9000", Name: "downstream"},
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains string
	}{
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			contains: "app.name is required",
		},
		{
			name:     "unknown environment",
			mutate:   func(c *Config) { c.App.Environment = "staging" },
			contains: "app.environment must be one of",
		},
		{
			name:     "port out of range",
			mutate:   func(c *Config) { c.Server.Port = 70000 },
			contains: "server.port must be at most 65535",
		},
		{
			name:     "request timeout too short",
			mutate:   func(c *Config) { c.Server.RequestTimeout = time.Millisecond },
			contains: "server.request_timeout must be at least",
		},
		{
			name:     "unknown log level",
			mutate:   func(c *Config) { c.Log.Level = "verbose" },
			contains: "log.level must be one of",
		},
		{
			name:     "log file without path",
			mutate:   func(c *Config) { c.Log.File = LogFileConfig{Enabled: true} },
			contains: "log.file.path is required when",
		},
		{
			name: "telemetry endpoint not a URL",
			mutate: func(c *Config) {
				c.Telemetry = TelemetryConfig{Enabled: true, Endpoint: "not a url", ServiceName: "svc"}
			},
			contains: "telemetry.endpoint must be a valid URL",
		},
		{
			name:     "no workers",
			mutate:   func(c *Config) { c.Worker.Size = 0 },
			contains: "worker.size is required",
		},
		{
			name:     "too many workers",
			mutate:   func(c *Config) { c.Worker.Size = 1000 },
			contains: "worker.size must be at most 256",
		},
		{
			name:     "missing trace header",
			mutate:   func(c *Config) { c.Ambient.TraceHeader = "" },
			contains: "ambient.trace_header is required",
		},
		{
			name:     "job deadline too short",
			mutate:   func(c *Config) { c.Ambient.JobDeadline = time.Millisecond },
			contains: "ambient.job_deadline must be at least",
		},
		{
			name:     "retry multiplier too small",
			mutate:   func(c *Config) { c.Client.Retry.Multiplier = 1 },
			contains: "client.retry.multiplier must be at least 1.1",
		},
		{
			name:     "downstream URL invalid",
			mutate:   func(c *Config) { c.Downstream.BaseURL = "::" },
			contains: "downstream.base_url must be a valid URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestConfig_Validate_ReportsEveryError(t *testing.T) {
	cfg := validConfig()
	cfg.App.Name = ""
	cfg.Worker.QueueSize = 0
	cfg.Ambient.TenantHeader = ""

	err := cfg.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), "app.name")
	assert.Contains(t, err.Error(), "worker.queue_size")
	assert.Contains(t, err.Error(), "ambient.tenant_header")
}

func TestFormatFieldPath(t *testing.T) {
	assert.Equal(t, "worker.queue_size", formatFieldPath("Config.worker.queue_size"))
	assert.Equal(t, "Config", formatFieldPath("Config"))
}
