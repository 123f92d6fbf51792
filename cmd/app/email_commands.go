package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/allisson/maildispatch/cmd/app/commands"
	"github.com/allisson/maildispatch/internal/app"
	"github.com/allisson/maildispatch/internal/config"
	"github.com/allisson/maildispatch/internal/email/domain"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func getEmailCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "run-batch",
			Usage: "Deliver one batch of queued and retryable emails",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   0,
					Usage:   "Maximum records to process (0 uses EMAIL_BATCH_SIZE)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deliveryUseCase, err := container.DeliveryUseCase()
				if err != nil {
					return err
				}

				return commands.RunBatch(
					ctx,
					deliveryUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("batch-size")),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "enqueue",
			Usage: "Insert an email into the notification store",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "to",
					Required: true,
					Usage:    "Recipient address",
				},
				&cli.StringFlag{
					Name:     "subject",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Subject line",
				},
				&cli.StringFlag{
					Name:     "html",
					Required: true,
					Usage:    "HTML body",
				},
				&cli.StringFlag{
					Name:  "text",
					Usage: "Plain text body",
				},
				&cli.StringFlag{
					Name:  "category",
					Value: string(domain.CategoryGeneric),
					Usage: "booking_confirmation, admin_alert, application_receipt or generic",
				},
				&cli.IntFlag{
					Name:    "priority",
					Aliases: []string{"p"},
					Value:   0,
					Usage:   "Higher values are delivered first",
				},
				&cli.IntFlag{
					Name:  "max-attempts",
					Value: 0,
					Usage: "Retry budget (0 uses EMAIL_DEFAULT_MAX_ATTEMPTS)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				emailUseCase, err := container.EmailUseCase()
				if err != nil {
					return err
				}

				return commands.RunEnqueue(
					ctx,
					emailUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					&domain.EnqueueInput{
						Recipient:   cmd.String("to"),
						Subject:     cmd.String("subject"),
						BodyHTML:    cmd.String("html"),
						BodyText:    cmd.String("text"),
						Category:    domain.Category(cmd.String("category")),
						Priority:    int(cmd.Int("priority")),
						MaxAttempts: int(cmd.Int("max-attempts")),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "recover-stale",
			Usage: "Fail emails stuck in processing so they can be retried",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "older-than-minutes",
					Aliases: []string{"m"},
					Value:   15,
					Usage:   "Recover claims older than this many minutes",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				olderThan := time.Duration(cmd.Int("older-than-minutes")) * time.Minute
				if minAge := cfg.MinStaleAfter(); olderThan > 0 && olderThan < minAge {
					return fmt.Errorf("older-than-minutes must cover at least %s of in-flight sends", minAge)
				}

				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deliveryUseCase, err := container.DeliveryUseCase()
				if err != nil {
					return err
				}

				return commands.RunRecoverStale(
					ctx,
					deliveryUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("older-than-minutes")),
					cmd.String("format"),
				)
			},
		},
	}
}
