package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/strandworks/strand/pkg/log"
)

func main() {
	command := &cli.Command{
		Name:                  "strand",
		Usage:                 "Run workflow turns from the command line",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for workflow state persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "integrations-config",
				Usage:   "Path to the integration catalog YAML (embedded default when empty)",
				Sources: cli.EnvVars("INTEGRATIONS_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "API key for the OpenAI-compatible LLM backend",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Aliases:   []string{"r"},
				Usage:     "Execute one workflow turn for a message",
				ArgsUsage: "<message>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "thread-id",
						Aliases: []string{"t"},
						Usage:   "Continue an existing conversation thread",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return runTurn(ctx, command)
				},
			},
			{
				Name:      "resume",
				Usage:     "Answer a pending approval on a paused thread",
				ArgsUsage: "<thread-id> <approve|edit|skip>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "content",
						Usage: "Replacement instructions when the action is edit",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return resumeThread(ctx, command)
				},
			},
			{
				Name:      "state",
				Usage:     "Print the persisted state of a thread",
				ArgsUsage: "<thread-id>",
				Action: func(ctx context.Context, command *cli.Command) error {
					log.Setup(command.String("log-level"))

					return showState(ctx, command)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "strand:", err)
		os.Exit(1)
	}
}
