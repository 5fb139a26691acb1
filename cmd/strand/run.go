package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/strandworks/strand/pkg/cmd"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/log"
	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/workflow"
)

func runTurn(ctx context.Context, command *cli.Command) error {
	message := command.Args().First()
	if message == "" {
		return errors.New("a message to execute is required")
	}

	service, closeService, err := newService(ctx, command)
	if err != nil {
		return err
	}
	defer closeService()

	result, err := service.Execute(ctx, message, command.String("thread-id"))
	if err != nil {
		return err
	}

	return printJSON(result)
}

func resumeThread(ctx context.Context, command *cli.Command) error {
	threadID := command.Args().Get(0)
	action := command.Args().Get(1)

	if threadID == "" || action == "" {
		return errors.New("a thread id and an action (approve, edit, skip) are required")
	}

	service, closeService, err := newService(ctx, command)
	if err != nil {
		return err
	}
	defer closeService()

	result, err := service.Resume(ctx, threadID, models.ApprovalDecision{
		Action:  action,
		Content: command.String("content"),
	})
	if err != nil {
		return err
	}

	return printJSON(result)
}

func showState(ctx context.Context, command *cli.Command) error {
	threadID := command.Args().First()
	if threadID == "" {
		return errors.New("a thread id is required")
	}

	service, closeService, err := newService(ctx, command)
	if err != nil {
		return err
	}
	defer closeService()

	state, err := service.WorkflowState(ctx, threadID)
	if err != nil {
		return err
	}

	return printJSON(state)
}

func newService(ctx context.Context, command *cli.Command) (*workflow.Service, func(), error) {
	logger := log.WithModule("cli")

	catalog, err := cmd.NewCatalog(command.String("integrations-config"))
	if err != nil {
		return nil, nil, err
	}

	model := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey: command.String("openai-api-key"),
	})

	registry, err := cmd.NewRegistry(ctx, logger, catalog, model)
	if err != nil {
		return nil, nil, err
	}

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	machine := workflow.NewMachine(workflow.MachineConfig{
		Chat:       model,
		Planner:    model,
		Registry:   registry,
		Checkpoint: store.SaveState,
		Logger:     log.WithModule("workflow"),
	})

	service := workflow.NewService(machine, store, nil, log.WithModule("workflow"))

	closeService := func() {
		if err := registry.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close integration registry", "error", err)
		}

		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}

	return service, closeService, nil
}

func printJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(payload))

	return nil
}
