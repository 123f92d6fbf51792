package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/maildispatch/internal/email/domain"
	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
)

// RunBatch performs one delivery batch and prints its summary. A non-positive batch size
// uses EMAIL_BATCH_SIZE. Per-record delivery failures are part of the summary; only a
// store failure makes the command fail.
//
// Requirements: Database must be migrated and at least one provider enabled.
func RunBatch(
	ctx context.Context,
	deliveryUseCase emailUseCase.DeliveryUseCase,
	logger *slog.Logger,
	writer io.Writer,
	batchSize int,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("running email batch", slog.Int("batch_size", batchSize))

	summary, err := deliveryUseCase.RunBatch(ctx, batchSize)
	if err != nil {
		return fmt.Errorf("failed to run email batch: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, summary)
	}
	outputBatchText(summary, writer)
	return nil
}

func outputBatchText(summary *domain.BatchSummary, writer io.Writer) {
	_, _ = fmt.Fprintf(
		writer,
		"Processed %d email(s): %d sent, %d failed, %d skipped\n",
		summary.Processed,
		summary.Successful,
		summary.Failed,
		summary.Skipped,
	)
	for _, r := range summary.Results {
		line := fmt.Sprintf("  %s %s attempt=%d", r.ID, r.Status, r.AttemptCount)
		if r.Provider != "" {
			line += " provider=" + r.Provider
		}
		if r.Exhausted {
			line += " exhausted"
		}
		if r.Reason != "" {
			line += " reason=" + r.Reason
		}
		_, _ = fmt.Fprintln(writer, line)
	}
}
