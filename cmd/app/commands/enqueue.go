package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/allisson/maildispatch/internal/email/domain"
	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
)

// RunEnqueue inserts one email into the notification store with status queued.
func RunEnqueue(
	ctx context.Context,
	emailUC emailUseCase.EmailUseCase,
	logger *slog.Logger,
	writer io.Writer,
	input *domain.EnqueueInput,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	record, err := emailUC.Enqueue(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to enqueue email: %w", err)
	}

	logger.Info("email enqueued",
		slog.String("email_id", record.ID.String()),
		slog.String("category", string(record.Category)),
		slog.Int("priority", record.Priority),
	)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"id":           record.ID.String(),
			"status":       record.Status,
			"priority":     record.Priority,
			"max_attempts": record.MaxAttempts,
		})
	}
	_, _ = fmt.Fprintf(writer, "Email enqueued: %s\n", record.ID.String())
	return nil
}
