package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/maildispatch/cmd/app/commands"
	"github.com/allisson/maildispatch/internal/app"
	"github.com/allisson/maildispatch/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server, and the delivery worker when EMAIL_WORKER_ENABLED is set",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "worker",
			Usage: "Run delivery batches every EMAIL_WORKER_INTERVAL_SECONDS until stopped",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				worker, err := container.Worker()
				if err != nil {
					return err
				}

				return commands.RunWorker(ctx, worker, container.Logger())
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				if err := container.ResolveCredentials(); err != nil {
					return err
				}

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "encrypt-credential",
			Usage: "Encrypt a credential with the SECRETS_KEEPER_URI keeper for use in configuration",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Plaintext credential to encrypt",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				resolver, err := container.CredentialResolver()
				if err != nil {
					return err
				}

				return commands.RunEncryptCredential(
					ctx,
					resolver,
					commands.DefaultIO().Writer,
					cmd.String("value"),
				)
			},
		},
	}
}
