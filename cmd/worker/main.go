package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radonlabs/clindoc/internal/bootstrap"
	"github.com/radonlabs/clindoc/internal/config"
	"github.com/radonlabs/clindoc/internal/core/domain"
	"github.com/radonlabs/clindoc/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "worker", cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	pipelineMetrics := metrics.NewPipelineMetrics("worker")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: pipelineMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.Logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	unsubscribeAbort, err := app.Queue.SubscribeAbortRequested(ctx, func(sessionID string) {
		app.Logger.Info("abort requested", "session_id", sessionID)
		app.ProcessUC.Abort(sessionID)
	})
	if err != nil {
		log.Fatalf("worker abort subscribe error: %v", err)
	}
	defer unsubscribeAbort()

	app.Logger.Info("worker subscribed", "subject", cfg.NATSBatchSubject)
	err = app.Queue.SubscribeBatchQueued(ctx, func(handlerCtx context.Context, sessionID string) error {
		batchCtx, cancel := context.WithTimeout(handlerCtx, cfg.ProcessTimeout)
		defer cancel()

		events, err := app.ProcessUC.Process(batchCtx, sessionID)
		if err != nil {
			app.Logger.Error("batch start failed", "session_id", sessionID, "error", err)
			return err
		}

		starts := map[string]time.Time{}
		for event := range events {
			switch event.Kind {
			case domain.EventFileStarted:
				starts[event.FileID] = event.At
				pipelineMetrics.StartFile()
			case domain.EventFileCompleted:
				pipelineMetrics.FinishFile("worker", sinceStart(starts, event), nil)
			case domain.EventFileFailed:
				pipelineMetrics.FinishFile("worker", sinceStart(starts, event), domain.ErrTemporary)
			case domain.EventBatchDone:
				pipelineMetrics.FinishBatch("worker", "done")
			case domain.EventBatchAborted:
				pipelineMetrics.FinishBatch("worker", "aborted")
			}

			if err := app.Queue.PublishFileEvent(handlerCtx, event); err != nil {
				app.Logger.Warn("event publish failed", "session_id", sessionID, "kind", event.Kind, "error", err)
			}
		}

		if session, err := app.Repo.Get(handlerCtx, sessionID); err == nil {
			pipelineMetrics.SetBlockedGroups("worker", countBlockedGroups(session))
		}
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}

func sinceStart(starts map[string]time.Time, event domain.FileEvent) time.Duration {
	start, ok := starts[event.FileID]
	if !ok {
		return 0
	}
	delete(starts, event.FileID)
	return event.At.Sub(start)
}

func countBlockedGroups(session *domain.BatchSession) int {
	blocked := 0
	for _, group := range session.Groups {
		if group.Status == domain.GroupBlocked || group.Status == domain.GroupPendingConfirmation {
			blocked++
		}
	}
	return blocked
}
