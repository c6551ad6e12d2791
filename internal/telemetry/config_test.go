package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "disabled skips validation",
			mutate: func(c *Config) { c.Enabled = false; c.Endpoint = "" },
		},
		{
			name:   "defaults valid when enabled",
			mutate: func(c *Config) { c.Enabled = true },
		},
		{
			name:    "missing endpoint",
			mutate:  func(c *Config) { c.Enabled = true; c.Endpoint = "" },
			wantErr: "endpoint is required",
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.Enabled = true; c.ServiceName = "" },
			wantErr: "service_name is required",
		},
		{
			name:    "insecure remote endpoint",
			mutate:  func(c *Config) { c.Enabled = true; c.Endpoint = "collector.example.com:4317" },
			wantErr: "insecure connections to remote endpoints",
		},
		{
			name: "secure remote endpoint ok",
			mutate: func(c *Config) {
				c.Enabled = true
				c.Endpoint = "collector.example.com:4317"
				c.Insecure = false
			},
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Enabled = true; c.Sampling.Rate = 1.5 },
			wantErr: "sampling.rate",
		},
		{
			name:    "non-positive export interval",
			mutate:  func(c *Config) { c.Enabled = true; c.Metrics.ExportInterval = 0 },
			wantErr: "export_interval",
		},
		{
			name:    "non-positive shutdown wait",
			mutate:  func(c *Config) { c.Enabled = true; c.ShutdownWait = -time.Second },
			wantErr: "shutdown_wait",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	local := []string{"localhost:4317", "127.0.0.1:4317", "[::1]:4317", "127.0.1.1:9999", "localhost"}
	for _, ep := range local {
		cfg := Config{Endpoint: ep}
		assert.True(t, cfg.isLocalEndpoint(), ep)
	}

	remote := []string{"collector.example.com:4317", "10.0.0.5:4317", "otel.internal:443"}
	for _, ep := range remote {
		cfg := Config{Endpoint: ep}
		assert.False(t, cfg.isLocalEndpoint(), ep)
	}
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, tel)

	degraded, reason := tel.Degraded()
	assert.False(t, degraded)
	assert.Empty(t, reason)

	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Sampling.Rate = 2
	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}
