// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/careops/scheduling/cmd/app/commands"
)

var version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "app",
		Usage:   "Appointment scheduling service",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:  "server",
				Usage: "Start the HTTP API server with the outbox dispatcher and idempotency sweeper",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunServer(ctx, version)
				},
			},
			{
				Name:  "worker",
				Usage: "Run the outbox dispatcher and idempotency sweeper without the HTTP server",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunWorker(ctx)
				},
			},
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunMigrations()
				},
			},
			{
				Name:  "requeue-dead-events",
				Usage: "Move dead-lettered outbox events back to pending for redelivery",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   100,
						Usage:   "Maximum number of events to requeue",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunRequeueDeadEvents(ctx, cmd.Int("limit"), cmd.String("format"))
				},
			},
			{
				Name:  "sweep-idempotency",
				Usage: "Flip stale pending idempotency records to failed so clients can retry",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "text",
						Usage:   "Output format: 'text' or 'json'",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return commands.RunSweepIdempotency(ctx, cmd.String("format"))
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
