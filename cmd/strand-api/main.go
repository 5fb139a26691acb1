package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/strandworks/strand/pkg/cmd"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/log"
	"github.com/strandworks/strand/pkg/otelhelper"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "strand-api",
		Usage:                 "Run the workflow orchestration API server",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for workflow state persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "integrations-config",
				Usage:   "Path to the integration catalog YAML (embedded default when empty)",
				Sources: cli.EnvVars("INTEGRATIONS_CONFIG"),
			},
			&cli.StringFlag{
				Name:     "openai-api-key",
				Usage:    "API key for the OpenAI-compatible LLM backend",
				Required: true,
				Sources:  cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-base-url",
				Usage:   "Override base URL for the LLM backend",
				Sources: cli.EnvVars("OPENAI_BASE_URL"),
			},
			&cli.StringFlag{
				Name:    "planner-model",
				Usage:   "Model used for plan generation",
				Sources: cli.EnvVars("PLANNER_MODEL"),
			},
			&cli.StringFlag{
				Name:    "executor-model",
				Usage:   "Model used for step execution",
				Sources: cli.EnvVars("EXECUTOR_MODEL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces for workflow runs",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Strand API")

			if command.Bool("tracing") {
				if _, err := otelhelper.NewTracer(ctx, "strand-api"); err != nil {
					return err
				}
			}

			catalog, err := cmd.NewCatalog(command.String("integrations-config"))
			if err != nil {
				return err
			}

			model := llm.NewOpenAIClient(llm.OpenAIConfig{
				APIKey:        command.String("openai-api-key"),
				BaseURL:       command.String("openai-base-url"),
				PlannerModel:  command.String("planner-model"),
				ExecutorModel: command.String("executor-model"),
			})

			registry, err := cmd.NewRegistry(ctx, logger, catalog, model)
			if err != nil {
				return err
			}

			defer func() {
				if err := registry.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close integration registry", "error", err)
				}
			}()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, store, registry, model, eventBus)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
