package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/radonlabs/clindoc/internal/config"
	"github.com/radonlabs/clindoc/internal/core/ports"
	"github.com/radonlabs/clindoc/internal/core/usecase"
	"github.com/radonlabs/clindoc/internal/infrastructure/analyzer/gemini"
	"github.com/radonlabs/clindoc/internal/infrastructure/filemeta"
	natsqueue "github.com/radonlabs/clindoc/internal/infrastructure/queue/nats"
	"github.com/radonlabs/clindoc/internal/infrastructure/repository/postgres"
	"github.com/radonlabs/clindoc/internal/infrastructure/resilience"
	"github.com/radonlabs/clindoc/internal/infrastructure/rules"
	"github.com/radonlabs/clindoc/internal/infrastructure/storage/localfs"
	"github.com/radonlabs/clindoc/internal/observability/logging"
)

// App wires the intake pipeline's infrastructure and use cases. The API
// and the worker share this assembly; each binary uses the ports it
// needs.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.SessionRepository

	IngestUC  *usecase.IngestUseCase
	ProcessUC ports.BatchProcessor
	ResolveUC ports.GroupResolver

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	logger := logging.Setup(service, cfg.LogLevel)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSessionRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	groupingRules, err := rules.Load(cfg.RulesPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("load grouping rules: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryBaseDelay,
		RetryMaxBackoff:     cfg.RetryMaxDelay,
	})

	queue, err := natsqueue.NewWithOptions(cfg.NATSURL, cfg.NATSBatchSubject, cfg.NATSEventSubject, natsqueue.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	analyzer := gemini.NewWithOptions(cfg.AnalyzerURL, cfg.AnalyzerModel, cfg.AnalyzerAPIKey, gemini.Options{
		RequestsPerSecond:  cfg.AnalyzerRPS,
		ResilienceExecutor: executor,
	})

	inspector := filemeta.NewInspector(logger)
	grouping := usecase.NewGroupingEngine(groupingRules)

	ingestUC := usecase.NewIngestUseCase(repo, storage, inspector, logger)
	processUC := usecase.NewProcessUseCase(repo, storage, analyzer, grouping, groupingRules, cfg.PipelineConcurrency, logger)
	resolveUC := usecase.NewResolveUseCase(repo, storage, grouping, logger)

	return &App{
		Config: cfg,
		Logger: logger,
		Queue:  queue,
		Repo:   repo,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		ResolveUC: resolveUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
