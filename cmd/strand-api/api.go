// Package main provides the Strand API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/strandworks/strand/pkg/eventbus"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/log"
	"github.com/strandworks/strand/pkg/persistence"
	"github.com/strandworks/strand/pkg/registry"
	"github.com/strandworks/strand/pkg/web"
	"github.com/strandworks/strand/pkg/workflow"
)

type API struct {
	logger   *slog.Logger
	store    persistence.Persistence
	registry *registry.Registry
	model    *llm.OpenAIClient
	eventBus eventbus.EventBus
	validate *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	store persistence.Persistence,
	registry *registry.Registry,
	model *llm.OpenAIClient,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:   logger,
		store:    store,
		registry: registry,
		model:    model,
		eventBus: eventBus,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	machine := workflow.NewMachine(workflow.MachineConfig{
		Chat:       a.model,
		Planner:    a.model,
		Registry:   a.registry,
		Checkpoint: a.store.SaveState,
		Logger:     log.WithModule("workflow"),
	})

	service := workflow.NewService(machine, a.store, a.eventBus, log.WithModule("workflow"))
	handlers := web.NewAPIHandlers(service, a.store, a.validate, log.WithModule("web"))

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Strand API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
