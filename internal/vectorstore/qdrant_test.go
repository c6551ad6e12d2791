package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfig_ApplyDefaults(t *testing.T) {
	var cfg QdrantConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, "insights", cfg.CollectionName)
	assert.Equal(t, uint64(384), cfg.VectorSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 5, cfg.CircuitBreakerThreshold)
}

func TestQdrantConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*QdrantConfig)
		wantErr error
	}{
		{"missing host", func(c *QdrantConfig) { c.Host = "" }, ErrInvalidConfig},
		{"bad port", func(c *QdrantConfig) { c.Port = 70000 }, ErrInvalidConfig},
		{"bad collection", func(c *QdrantConfig) { c.CollectionName = "Insights!" }, ErrInvalidCollectionName},
		{"zero vector size", func(c *QdrantConfig) { c.VectorSize = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg QdrantConfig
			cfg.ApplyDefaults()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.False(t, IsTransientError(errors.New("plain error")))
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "slow")))
	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "missing")))
}
