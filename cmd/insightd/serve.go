package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the insightd daemon",
	Long: `Run the insightd daemon: the review sweeper sends reminders for
pending items and expires overdue ones on the configured cron schedule.
The daemon runs until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sw, err := sweeper.New(a.cfg.Sweeper, multiQueue(a.queues), a.logger)
	if err != nil {
		return err
	}
	if err := sw.Start(); err != nil {
		return err
	}

	a.logger.Info("insightd serving",
		zap.String("sweep_schedule", a.cfg.Sweeper.Schedule),
		zap.Strings("tenants", a.cfg.Tenants))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		a.logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	sw.Stop()
	return nil
}
