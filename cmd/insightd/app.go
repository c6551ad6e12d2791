package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightd/internal/config"
	"github.com/fyrsmithlabs/insightd/internal/embeddings"
	"github.com/fyrsmithlabs/insightd/internal/extraction"
	"github.com/fyrsmithlabs/insightd/internal/gate"
	"github.com/fyrsmithlabs/insightd/internal/logging"
	"github.com/fyrsmithlabs/insightd/internal/notify"
	"github.com/fyrsmithlabs/insightd/internal/orchestrator"
	"github.com/fyrsmithlabs/insightd/internal/queuestore"
	"github.com/fyrsmithlabs/insightd/internal/review"
	"github.com/fyrsmithlabs/insightd/internal/session"
	"github.com/fyrsmithlabs/insightd/internal/telemetry"
	"github.com/fyrsmithlabs/insightd/internal/vectorstore"
)

// app holds the wired service graph: shared infrastructure plus a
// pipeline, queue, and session store per tenant.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tel    *telemetry.Telemetry

	embedder *embeddings.FastEmbedProvider
	store    *vectorstore.QdrantStore
	queueDB  *queuestore.SQLiteStorage

	sessions  map[string]*session.Store
	queues    map[string]*review.Queue
	pipelines map[string]*orchestrator.Pipeline
}

// newApp loads configuration and wires every component. Callers must Close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureDirs(cfg); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		sessions:  make(map[string]*session.Store),
		queues:    make(map[string]*review.Queue),
		pipelines: make(map[string]*orchestrator.Pipeline),
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tel = tel
	if degraded, reason := tel.Degraded(); degraded {
		logger.Warn("telemetry degraded", zap.String("reason", reason))
	}

	if err := a.initInfra(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initTenants(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info("insightd initialized",
		zap.Strings("tenants", cfg.Tenants),
		zap.String("qdrant", fmt.Sprintf("%s:%d", cfg.Qdrant.Host, cfg.Qdrant.Port)),
		zap.String("collection", cfg.Qdrant.CollectionName),
		zap.Bool("slack_enabled", cfg.Slack.Enabled),
		zap.String("extraction_provider", cfg.Extraction.Provider))
	return a, nil
}

// initInfra connects the shared infrastructure: embeddings, Qdrant, and
// the review queue database.
func (a *app) initInfra(ctx context.Context) error {
	embedder, err := embeddings.NewFastEmbedProvider(a.cfg.Embeddings, a.logger)
	if err != nil {
		if errors.Is(err, embeddings.ErrFastEmbedNotAvailable) {
			return fmt.Errorf("embeddings unavailable, rebuild with CGO_ENABLED=1: %w", err)
		}
		return fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	a.embedder = embedder

	store, err := vectorstore.NewQdrantStore(a.cfg.Qdrant, embedder.Embedder())
	if err != nil {
		return fmt.Errorf("failed to connect to qdrant: %w", err)
	}
	a.store = store
	if err := store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("failed to ensure insights collection: %w", err)
	}

	queueDB, err := queuestore.Open(a.cfg.QueuePath())
	if err != nil {
		return fmt.Errorf("failed to open review queue database: %w", err)
	}
	a.queueDB = queueDB
	return nil
}

// initTenants builds the per-tenant graph: session store, gate evaluator,
// review queue, and pipeline.
func (a *app) initTenants() error {
	checker, err := vectorstore.NewDuplicateChecker(a.store, a.cfg.Gate.SimilarityThreshold, a.logger)
	if err != nil {
		return err
	}
	knowledge, err := vectorstore.NewKnowledgeStore(a.store, a.logger)
	if err != nil {
		return err
	}
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	extractor, err := extraction.NewExtractor(a.cfg.Extraction)
	if err != nil {
		return fmt.Errorf("failed to initialize extractor: %w", err)
	}

	for _, tenantID := range a.cfg.Tenants {
		sessions, err := session.NewStore(tenantID, a.cfg.SessionPath(tenantID), a.logger)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		sessions.Load()

		evaluator, err := gate.NewEvaluator(a.cfg.Gate, sessions, checker, a.logger)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		queue, err := review.NewQueue(a.cfg.Review, a.queueDB, notifier, sessions, a.logger)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		pipeline, err := orchestrator.New(evaluator, knowledge, queue, extractor, sessions, a.logger)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenantID, err)
		}

		a.sessions[tenantID] = sessions
		a.queues[tenantID] = queue
		a.pipelines[tenantID] = pipeline
	}
	return nil
}

func (a *app) newNotifier() (review.Notifier, error) {
	if !a.cfg.Slack.Enabled {
		return notify.NewLogNotifier(a.logger), nil
	}
	client := slack.New(a.cfg.Slack.Token.Value())
	return notify.NewSlackNotifier(notify.Config{Channel: a.cfg.Slack.Channel}, client, a.logger)
}

// pipeline returns the tenant's pipeline, or an error for unknown tenants.
func (a *app) pipeline(tenantID string) (*orchestrator.Pipeline, error) {
	p, ok := a.pipelines[tenantID]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q (configured: %v)", tenantID, a.cfg.Tenants)
	}
	return p, nil
}

// queue returns the tenant's review queue, or an error for unknown tenants.
func (a *app) queue(tenantID string) (*review.Queue, error) {
	q, ok := a.queues[tenantID]
	if !ok {
		return nil, fmt.Errorf("unknown tenant %q (configured: %v)", tenantID, a.cfg.Tenants)
	}
	return q, nil
}

// Close checkpoints sessions and releases infrastructure connections.
func (a *app) Close() {
	ctx := context.Background()

	for tenantID, sessions := range a.sessions {
		if err := sessions.Checkpoint(); err != nil {
			a.logger.Error("failed to checkpoint session",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
	if a.queueDB != nil {
		if err := a.queueDB.Close(); err != nil {
			a.logger.Error("failed to close queue database", zap.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close qdrant connection", zap.Error(err))
		}
	}
	if a.embedder != nil {
		if err := a.embedder.Close(); err != nil {
			a.logger.Error("failed to release embedding model", zap.Error(err))
		}
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shut down telemetry", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// multiQueue dispatches sweeper calls to the owning tenant queue.
type multiQueue map[string]*review.Queue

func (m multiQueue) ProcessReminders(ctx context.Context, tenantID string) (int, error) {
	q, ok := m[tenantID]
	if !ok {
		return 0, fmt.Errorf("unknown tenant %q", tenantID)
	}
	return q.ProcessReminders(ctx, tenantID)
}

func (m multiQueue) ExpireOverdue(ctx context.Context, tenantID string) (int, error) {
	q, ok := m[tenantID]
	if !ok {
		return 0, fmt.Errorf("unknown tenant %q", tenantID)
	}
	return q.ExpireOverdue(ctx, tenantID)
}
