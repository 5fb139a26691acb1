package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/strandworks/strand/pkg/eventbus"
	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/persistence"
	"github.com/strandworks/strand/pkg/workflow"
)

// WorkflowService is the slice of the workflow façade the API exposes.
type WorkflowService interface {
	Execute(ctx context.Context, request, threadID string) (*workflow.ExecutionResult, error)
	ExecuteStream(ctx context.Context, request, threadID string) (string, <-chan eventbus.Event, error)
	Resume(ctx context.Context, threadID string, decision models.ApprovalDecision) (*workflow.ExecutionResult, error)
	RetryStep(ctx context.Context, threadID string, stepNumber int) (*workflow.ExecutionResult, error)
	WorkflowState(ctx context.Context, threadID string) (*models.WorkflowState, error)
}

type APIHandlers struct {
	service   WorkflowService
	store     persistence.Persistence
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(service WorkflowService, store persistence.Persistence, validate *validator.Validate, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		service:   service,
		store:     store,
		validator: validate,
		logger:    logger,
	}
}

// Register mounts the workflow routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	workflows := app.Group("/workflows")
	workflows.Post("/execute", h.ExecuteWorkflow)
	workflows.Post("/execute/stream", h.ExecuteWorkflowStream)
	workflows.Post("/:threadId/resume", h.ResumeWorkflow)
	workflows.Post("/:threadId/retry", h.RetryStep)
	workflows.Get("/:threadId/state", h.GetWorkflowState)

	app.Get("/health", h.HealthCheck)
}

// ExecuteWorkflow runs one conversation turn to completion or to an
// approval pause and returns the resulting plan snapshot.
func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.service.Execute(c.Context(), req.Message, req.ThreadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ExecuteWorkflowStream runs a turn and streams its events as SSE.
// The detached context keeps the workflow running when the client
// abandons the stream; already-completed steps make a later re-request
// against the same thread idempotent.
func (h *APIHandlers) ExecuteWorkflowStream(c fiber.Ctx) error {
	var req ExecuteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	threadID, stream, err := h.service.ExecuteStream(context.WithoutCancel(c.Context()), req.Message, req.ThreadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Thread-ID", threadID)

	c.RequestCtx().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		for event := range stream {
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("Failed to marshal workflow event",
					"thread_id", threadID,
					"event_type", event.GetType(),
					"error", err)

				continue
			}

			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.GetType(), data)

			if err := w.Flush(); err != nil {
				// Client went away; drain so the workflow finishes.
				for range stream {
				}

				return
			}
		}
	}))

	return nil
}

// ResumeWorkflow injects an approval decision into a paused thread.
func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	threadID := c.Params("threadId")
	if threadID == "" {
		return badRequest(c, "Thread ID is required")
	}

	var req ResumeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.service.Resume(c.Context(), threadID, models.ApprovalDecision{
		Action:  req.Action,
		Content: req.Content,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// RetryStep resets a failed step and everything after it and re-runs.
func (h *APIHandlers) RetryStep(c fiber.Ctx) error {
	threadID := c.Params("threadId")
	if threadID == "" {
		return badRequest(c, "Thread ID is required")
	}

	var req RetryRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.service.RetryStep(c.Context(), threadID, req.StepNumber)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// GetWorkflowState returns the raw persisted state of a thread.
func (h *APIHandlers) GetWorkflowState(c fiber.Ctx) error {
	threadID := c.Params("threadId")
	if threadID == "" {
		return badRequest(c, "Thread ID is required")
	}

	state, err := h.service.WorkflowState(c.Context(), threadID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(state)
}

// HealthCheck reports the checkpoint store's health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	storeStatus := "ok"
	if err := h.store.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		storeStatus = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"persistence": storeStatus,
		},
	})
}
