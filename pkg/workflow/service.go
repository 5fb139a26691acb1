package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/strandworks/strand/pkg/artifacts"
	"github.com/strandworks/strand/pkg/eventbus"
	"github.com/strandworks/strand/pkg/events"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/models"
	"github.com/strandworks/strand/pkg/otelhelper"
	"github.com/strandworks/strand/pkg/persistence"
)

var (
	// ErrNoPendingApproval is returned by Resume when the thread is not
	// paused on an approval.
	ErrNoPendingApproval = errors.New("no pending approval for thread")

	// ErrNoPlan is returned by RetryStep when the thread has no plan yet.
	ErrNoPlan = errors.New("thread has no plan")

	// ErrStepOutOfRange is returned by RetryStep for a step number
	// outside the plan.
	ErrStepOutOfRange = errors.New("step number out of range")
)

// Execution status values reported to API callers.
const (
	StatusCompleted        = "completed"
	StatusAwaitingApproval = "awaiting_approval"
	StatusFailed           = "failed"
)

// ExecutionResult is the snapshot returned by every service operation.
type ExecutionResult struct {
	ThreadID  string                  `json:"thread_id"`
	Status    string                  `json:"status"`
	Plan      *models.WorkflowPlan    `json:"plan,omitempty"`
	Approval  *models.ApprovalRequest `json:"approval,omitempty"`
	Artifacts []artifacts.Artifact    `json:"artifacts,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// Service is the orchestration façade over the state machine: it owns
// thread lifecycle (state load/save per turn), streaming, and the
// resume and retry semantics.
type Service struct {
	machine   *Machine
	store     persistence.Persistence
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewService wires the engine to its checkpoint store and, optionally,
// an event publisher for out-of-band consumers.
func NewService(machine *Machine, store persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		machine:   machine,
		store:     store,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("strand.workflow"),
	}
}

// Execute runs one conversation turn to completion or to a pause
// point. An empty threadID starts a new thread. Step-level failures
// are reported in the result, not as an error; the error return is for
// infrastructure problems only.
func (s *Service) Execute(ctx context.Context, request, threadID string) (*ExecutionResult, error) {
	state, err := s.prepareTurn(ctx, request, threadID)
	if err != nil {
		return nil, err
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.execute",
		attribute.String(otelhelper.ThreadIDKey, state.ThreadID),
		attribute.Int(otelhelper.TurnNumberKey, state.TurnNumber),
	)
	defer span.End()

	outcome, runErr := s.machine.Run(ctx, state, s.busEmit())
	if runErr != nil {
		otelhelper.SetError(span, runErr)
	}

	return s.finishRun(ctx, state, outcome, runErr)
}

// ExecuteStream runs one turn like Execute but surfaces intermediate
// events on the returned channel. The channel closes when the workflow
// completes, fails or pauses for approval; a paused thread is resumed
// with Resume, not by keeping the stream open.
func (s *Service) ExecuteStream(ctx context.Context, request, threadID string) (string, <-chan eventbus.Event, error) {
	state, err := s.prepareTurn(ctx, request, threadID)
	if err != nil {
		return "", nil, err
	}

	stream := make(chan eventbus.Event, 16)

	emit := func(ctx context.Context, event eventbus.Event) {
		s.publish(ctx, event)

		select {
		case stream <- event:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(stream)

		outcome, runErr := s.machine.Run(ctx, state, emit)

		if runErr != nil {
			// A pause that surfaced as an error still has a legitimate
			// pending approval in the checkpoint; report that instead.
			if pending := s.pendingApproval(ctx, state.ThreadID); pending != nil {
				emit(ctx, events.ApprovalRequired{
					BaseEvent: events.NewBaseEvent(events.ApprovalRequiredEventType, state.ThreadID),
					Request:   *pending,
				})

				return
			}
		}

		if _, err := s.finishRun(ctx, state, outcome, runErr); err != nil {
			s.logger.ErrorContext(ctx, "Failed to finish streamed workflow",
				"thread_id", state.ThreadID,
				"error", err)
		}
	}()

	return state.ThreadID, stream, nil
}

// Resume injects an approval decision into a paused thread and drives
// the workflow onward. An unrecognized action is treated as approve.
func (s *Service) Resume(ctx context.Context, threadID string, decision models.ApprovalDecision) (*ExecutionResult, error) {
	state, err := s.store.StateByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume workflow: %w", err)
	}

	if !state.AwaitingApproval {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingApproval, threadID)
	}

	if !knownApprovalAction(decision.Action) {
		s.logger.WarnContext(ctx, "Unknown approval action, treating as approve",
			"thread_id", threadID,
			"action", decision.Action)

		decision.Action = models.ApprovalActionApprove
	}

	state.ApprovalDecision = &decision

	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save approval decision: %w", err)
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.resume",
		attribute.String(otelhelper.ThreadIDKey, threadID),
		attribute.String(otelhelper.ActionKey, decision.Action),
	)
	defer span.End()

	outcome, runErr := s.machine.Run(ctx, state, s.busEmit())
	if runErr != nil {
		otelhelper.SetError(span, runErr)
	}

	return s.finishRun(ctx, state, outcome, runErr)
}

// RetryStep resets the given step and every later one to pending,
// rewinds the cursor and re-runs. The plan's step ordering and
// descriptions are preserved; this is a compensating re-execution, not
// a re-plan.
func (s *Service) RetryStep(ctx context.Context, threadID string, stepNumber int) (*ExecutionResult, error) {
	state, err := s.store.StateByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to retry step: %w", err)
	}

	if state.Plan == nil || len(state.Plan.Steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPlan, threadID)
	}

	if stepNumber < 1 || stepNumber > len(state.Plan.Steps) {
		return nil, fmt.Errorf("%w: %d (plan has %d steps)", ErrStepOutOfRange, stepNumber, len(state.Plan.Steps))
	}

	for _, step := range state.Plan.Steps {
		if step.StepNumber >= stepNumber {
			step.Reset()
		}
	}

	state.Plan.IsComplete = false
	state.Plan.FinalSummary = ""
	state.CurrentStepIndex = stepNumber - 1
	state.ClearApproval()
	state.ResetStepLoop()

	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save rewound state: %w", err)
	}

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.retry_step",
		attribute.String(otelhelper.ThreadIDKey, threadID),
		attribute.Int(otelhelper.StepIndexKey, stepNumber-1),
	)
	defer span.End()

	outcome, runErr := s.machine.Run(ctx, state, s.busEmit())
	if runErr != nil {
		otelhelper.SetError(span, runErr)
	}

	return s.finishRun(ctx, state, outcome, runErr)
}

// WorkflowState returns the raw persisted state of a thread.
func (s *Service) WorkflowState(ctx context.Context, threadID string) (*models.WorkflowState, error) {
	state, err := s.store.StateByThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow state: %w", err)
	}

	return state, nil
}

// prepareTurn loads or creates the thread state and starts a fresh
// turn: new user message, new turn number, no plan yet. A new request
// against a paused thread supersedes the pause.
func (s *Service) prepareTurn(ctx context.Context, request, threadID string) (*models.WorkflowState, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}

	state, err := s.store.StateByThread(ctx, threadID)
	if err != nil {
		if !errors.Is(err, persistence.ErrStateNotFound) {
			return nil, fmt.Errorf("failed to load workflow state: %w", err)
		}

		state = models.NewWorkflowState(threadID)
	}

	state.Messages = append(state.Messages, llm.UserMessage(request))
	state.TurnNumber = countUserMessages(state.Messages)
	state.Plan = nil
	state.CurrentStepIndex = -1
	state.ClearApproval()
	state.ResetStepLoop()

	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save workflow state: %w", err)
	}

	return state, nil
}

func (s *Service) finishRun(ctx context.Context, state *models.WorkflowState, outcome Outcome, runErr error) (*ExecutionResult, error) {
	if err := s.store.SaveState(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save workflow state: %w", err)
	}

	result := &ExecutionResult{
		ThreadID:  state.ThreadID,
		Plan:      state.Plan,
		Artifacts: state.Artifacts,
	}

	switch {
	case runErr != nil:
		result.Status = StatusFailed
		result.Error = runErr.Error()
	case outcome == OutcomePaused:
		result.Status = StatusAwaitingApproval
		result.Approval = state.ApprovalStepInfo
	default:
		result.Status = StatusCompleted
	}

	return result, nil
}

// pendingApproval re-reads the checkpoint and returns its approval
// request if the thread is legitimately paused.
func (s *Service) pendingApproval(ctx context.Context, threadID string) *models.ApprovalRequest {
	state, err := s.store.StateByThread(ctx, threadID)
	if err != nil {
		return nil
	}

	if state.AwaitingApproval && state.ApprovalDecision == nil && state.ApprovalStepInfo != nil {
		return state.ApprovalStepInfo
	}

	return nil
}

func (s *Service) busEmit() EmitFunc {
	if s.publisher == nil {
		return nil
	}

	return s.publish
}

func (s *Service) publish(ctx context.Context, event eventbus.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event.GetThreadID(), event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish workflow event",
			"thread_id", event.GetThreadID(),
			"event_type", event.GetType(),
			"error", err)
	}
}

func knownApprovalAction(action string) bool {
	switch action {
	case models.ApprovalActionApprove, models.ApprovalActionEdit, models.ApprovalActionSkip:
		return true
	default:
		return false
	}
}

func countUserMessages(messages []llm.Message) int {
	count := 0

	for _, message := range messages {
		if message.Role == llm.RoleUser {
			count++
		}
	}

	return count
}
