// Package sweeper periodically drives the review queue's time-based
// transitions: reminder delivery and expiry of overdue items.
package sweeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrInvalidConfig indicates the sweeper configuration is invalid.
var ErrInvalidConfig = errors.New("sweeper: invalid configuration")

// DefaultSchedule runs the sweep every 30 minutes.
const DefaultSchedule = "*/30 * * * *"

// Queue is the sweepable surface of the review queue.
type Queue interface {
	// ProcessReminders sends due reminders for one tenant.
	ProcessReminders(ctx context.Context, tenantID string) (int, error)

	// ExpireOverdue expires items past the expiry window for one tenant.
	ExpireOverdue(ctx context.Context, tenantID string) (int, error)
}

// Config holds sweeper configuration.
type Config struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string `koanf:"schedule"`

	// Tenants lists the tenant IDs to sweep.
	Tenants []string `koanf:"tenants"`
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() Config {
	return Config{Schedule: DefaultSchedule}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
	}
	if len(c.Tenants) == 0 {
		return fmt.Errorf("%w: at least one tenant required", ErrInvalidConfig)
	}
	return nil
}

// Result summarizes one sweep pass.
type Result struct {
	// Reminders counts reminders sent across all tenants.
	Reminders int

	// Expired counts items expired across all tenants.
	Expired int

	// Errors counts tenants whose sweep partially failed.
	Errors int
}

// Sweeper runs the periodic sweep on a cron schedule.
type Sweeper struct {
	cfg    Config
	queue  Queue
	logger *zap.Logger
	cron   *cron.Cron
}

// New creates a sweeper. The schedule is validated here so a bad
// configuration fails at startup, not at first tick.
func New(cfg Config, queue Queue, logger *zap.Logger) (*Sweeper, error) {
	if queue == nil {
		return nil, fmt.Errorf("%w: queue is required", ErrInvalidConfig)
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		cron:   cron.New(),
	}, nil
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Info("sweeper started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Strings("tenants", s.cfg.Tenants))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("sweeper stopped")
}

// Sweep runs one pass over every tenant: reminders first, then expiry, so
// an item never gets a reminder and an expiry in the same pass out of
// order. Per-tenant failures are logged and do not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	var result Result

	for _, tenantID := range s.cfg.Tenants {
		failed := false

		sent, err := s.queue.ProcessReminders(ctx, tenantID)
		if err != nil {
			s.logger.Error("reminder pass failed",
				zap.String("tenant_id", tenantID), zap.Error(err))
			failed = true
		}
		result.Reminders += sent

		expired, err := s.queue.ExpireOverdue(ctx, tenantID)
		if err != nil {
			s.logger.Error("expiry pass failed",
				zap.String("tenant_id", tenantID), zap.Error(err))
			failed = true
		}
		result.Expired += expired

		if failed {
			result.Errors++
		}
	}

	if result.Reminders > 0 || result.Expired > 0 {
		s.logger.Info("sweep complete",
			zap.Int("reminders", result.Reminders),
			zap.Int("expired", result.Expired),
			zap.Int("errors", result.Errors))
	}

	return result
}
