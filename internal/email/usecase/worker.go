package usecase

import (
	"context"
	"log/slog"
	"time"
)

// WorkerConfig holds the in-process delivery loop configuration.
type WorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	StaleAfter time.Duration
}

// Worker runs delivery batches on a fixed cadence, acting as its own invocation trigger.
type Worker struct {
	config   WorkerConfig
	delivery DeliveryUseCase
	logger   *slog.Logger
}

// NewWorker creates a new Worker.
func NewWorker(config WorkerConfig, delivery DeliveryUseCase, logger *slog.Logger) *Worker {
	return &Worker{
		config:   config,
		delivery: delivery,
		logger:   logger,
	}
}

// Start runs the delivery loop until ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("starting email delivery worker",
		slog.Duration("interval", w.config.Interval),
		slog.Int("batch_size", w.config.BatchSize),
		slog.Duration("stale_after", w.config.StaleAfter),
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping email delivery worker")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick performs one worker cycle: stale claim recovery, then one batch.
// Errors are logged; the next tick retries.
func (w *Worker) Tick(ctx context.Context) {
	if w.config.StaleAfter > 0 {
		if _, err := w.delivery.RecoverStale(ctx, w.config.StaleAfter); err != nil {
			w.logger.Error("failed to recover stale emails", slog.Any("error", err))
		}
	}

	if _, err := w.delivery.RunBatch(ctx, w.config.BatchSize); err != nil {
		w.logger.Error("failed to run email batch", slog.Any("error", err))
	}
}
