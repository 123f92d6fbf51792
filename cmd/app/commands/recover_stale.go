package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
)

// RunRecoverStale fails emails left in processing for longer than olderThanMinutes, so the
// next batch can pick them up again or report them exhausted.
func RunRecoverStale(
	ctx context.Context,
	deliveryUseCase emailUseCase.DeliveryUseCase,
	logger *slog.Logger,
	writer io.Writer,
	olderThanMinutes int,
	format string,
) error {
	if olderThanMinutes <= 0 {
		return fmt.Errorf("older-than-minutes must be a positive number, got: %d", olderThanMinutes)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	olderThan := time.Duration(olderThanMinutes) * time.Minute
	count, err := deliveryUseCase.RecoverStale(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to recover stale emails: %w", err)
	}

	logger.Info("stale email recovery completed",
		slog.Int64("count", count),
		slog.Int("older_than_minutes", olderThanMinutes),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"count":              count,
			"older_than_minutes": olderThanMinutes,
		})
	}
	_, _ = fmt.Fprintf(
		writer,
		"Recovered %d stale email(s) older than %d minute(s)\n",
		count,
		olderThanMinutes,
	)
	return nil
}
