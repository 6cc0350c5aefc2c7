package worker

import (
	"context"
	"log/slog"

	"docflow/internal/broker"
	"docflow/internal/extract"
	"docflow/internal/ollama"
	"docflow/internal/queue"
	"docflow/internal/status"
)

// Worker owns the consume side: one long-lived consumer per queue,
// each processing one delivery at a time. Handler outcomes drive the
// shared trackers, so status writes stay idempotent under the broker's
// at-least-once redelivery.
type Worker struct {
	broker    *broker.Connection
	extractor *extract.Extractor
	models    *status.ModelTracker
	ollama    *ollama.Client
	logger    *slog.Logger
}

func New(conn *broker.Connection, extractor *extract.Extractor, models *status.ModelTracker, oc *ollama.Client, logger *slog.Logger) *Worker {
	return &Worker{
		broker:    conn,
		extractor: extractor,
		models:    models,
		ollama:    oc,
		logger:    logger,
	}
}

// Start registers both consumers. The consume loops run until ctx is
// cancelled or the broker channel closes.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.broker.ConsumeFileExtract(ctx, w.handleFileExtract); err != nil {
		return err
	}
	if err := w.broker.ConsumeModelPull(ctx, w.handleModelPull); err != nil {
		return err
	}
	w.logger.Info("workers started", "queues", []string{queue.NewFileExtract, queue.OllamaModelPull})
	return nil
}

// handleFileExtract runs one extraction job. Job-level failures are
// terminal: the failed status is already recorded, so the delivery is
// acked rather than redelivered into the same failure.
func (w *Worker) handleFileExtract(ctx context.Context, msg queue.FileExtractMessage) error {
	if err := w.extractor.Run(ctx, msg); err != nil {
		w.logger.Error("file extraction failed", "file", msg.File, "err", err)
	}
	return nil
}

// handleModelPull streams a model download, recording progress as the
// runtime reports it. Reaching 100% flips the status to completed.
func (w *Worker) handleModelPull(ctx context.Context, msg queue.ModelPullMessage) error {
	name := msg.Name
	if name == "" {
		w.logger.Error("model pull without a name")
		return nil
	}

	if err := w.models.MarkDownloading(ctx, name); err != nil {
		// Redis is down; leave the delivery unacked so the pull is
		// retried once state tracking is back.
		return err
	}

	err := w.ollama.Pull(ctx, name, func(completed, total int64) {
		if err := w.models.RecordProgress(ctx, name, int(completed), int(total)); err != nil {
			w.logger.Error("record pull progress", "name", name, "err", err)
		}
	})
	if err != nil {
		w.logger.Error("model pull failed", "name", name, "err", err)
		if markErr := w.models.MarkFailed(ctx, name); markErr != nil {
			w.logger.Error("mark pull failed", "name", name, "err", markErr)
		}
		return nil
	}

	if err := w.models.MarkCompleted(ctx, name); err != nil {
		return err
	}
	w.logger.Info("model pull completed", "name", name)
	return nil
}
