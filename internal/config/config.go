// Package config provides configuration loading for insightd.
//
// Configuration is aggregated from the component packages: each section of
// the YAML file maps onto a component Config struct, and validation
// delegates to the component Validate methods.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/fyrsmithlabs/insightd/internal/embeddings"
	"github.com/fyrsmithlabs/insightd/internal/extraction"
	"github.com/fyrsmithlabs/insightd/internal/gate"
	"github.com/fyrsmithlabs/insightd/internal/logging"
	"github.com/fyrsmithlabs/insightd/internal/review"
	"github.com/fyrsmithlabs/insightd/internal/sweeper"
	"github.com/fyrsmithlabs/insightd/internal/telemetry"
	"github.com/fyrsmithlabs/insightd/internal/vectorstore"
)

// Config is the root insightd configuration.
type Config struct {
	// Tenants lists the tenant IDs this instance serves. At least one
	// tenant is required.
	Tenants []string `koanf:"tenants"`

	// DataDir holds per-tenant session state and the review queue
	// database. Defaults to ~/.local/share/insightd.
	DataDir string `koanf:"data_dir"`

	Logging    logging.Config            `koanf:"logging"`
	Telemetry  telemetry.Config          `koanf:"telemetry"`
	Gate       gate.Config               `koanf:"gate"`
	Review     review.Config             `koanf:"review"`
	Qdrant     vectorstore.QdrantConfig  `koanf:"qdrant"`
	Embeddings embeddings.FastEmbedConfig `koanf:"embeddings"`
	Extraction extraction.Config         `koanf:"extraction"`
	Sweeper    sweeper.Config            `koanf:"sweeper"`
	Slack      SlackConfig               `koanf:"slack"`
}

// SlackConfig holds Slack delivery credentials. When disabled, review items
// are queued without notification delivery.
type SlackConfig struct {
	Enabled bool   `koanf:"enabled"`
	Token   Secret `koanf:"token"`
	Channel string `koanf:"channel"`
}

// Validate checks Slack settings when delivery is enabled.
func (c SlackConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.Token.IsSet() {
		return fmt.Errorf("slack token is required when slack is enabled")
	}
	if c.Channel == "" {
		return fmt.Errorf("slack channel is required when slack is enabled")
	}
	return nil
}

// Default returns the configuration used when no file or environment
// overrides are present. Tenants has no default and must be configured.
func Default() Config {
	return Config{
		Logging:    logging.DefaultConfig(),
		Telemetry:  telemetry.DefaultConfig(),
		Gate:       gate.DefaultConfig(),
		Review:     review.DefaultConfig(),
		Embeddings: embeddings.FastEmbedConfig{Model: embeddings.DefaultModel},
		Extraction: extraction.DefaultConfig(),
		Sweeper:    sweeper.Config{Schedule: sweeper.DefaultSchedule},
	}
}

// SessionPath returns the session state file for a tenant.
func (c *Config) SessionPath(tenantID string) string {
	return filepath.Join(c.DataDir, "sessions", tenantID+".json")
}

// QueuePath returns the review queue SQLite database path.
func (c *Config) QueuePath() string {
	return filepath.Join(c.DataDir, "review.db")
}

// Validate checks the root fields and delegates to each section.
func (c *Config) Validate() error {
	if len(c.Tenants) == 0 {
		return fmt.Errorf("at least one tenant is required")
	}
	for _, t := range c.Tenants {
		if t == "" {
			return fmt.Errorf("tenant IDs cannot be empty")
		}
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("gate: %w", err)
	}
	if err := c.Review.Validate(); err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if c.Extraction.Provider == "anthropic" && c.Extraction.APIKey == "" {
		return fmt.Errorf("extraction: api_key is required for the anthropic provider")
	}
	if err := c.Sweeper.Validate(); err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}
	if err := c.Slack.Validate(); err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	return nil
}
