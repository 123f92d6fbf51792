package provider

import (
	"context"
	"log/slog"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// Log writes messages to the logger instead of sending them. Development only.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log provider.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

// Name returns the provider name.
func (l *Log) Name() string {
	return NameLog
}

// Send logs the message and always succeeds.
func (l *Log) Send(ctx context.Context, msg domain.Message) domain.Outcome {
	l.logger.InfoContext(ctx, "email delivered to log",
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.BodyHTML)),
		slog.Int("text_bytes", len(msg.BodyText)),
	)
	return domain.Succeeded(NameLog, "logged")
}
