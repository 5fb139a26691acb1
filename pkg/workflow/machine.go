// Package workflow implements the plan/execute/approve engine: a
// smart-routing step classifier, an LLM planner, auto and
// human-approval executor paths with multi-hop tool calling, and
// artifact extraction after every completed step.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/strandworks/strand/pkg/artifacts"
	"github.com/strandworks/strand/pkg/classifier"
	"github.com/strandworks/strand/pkg/config"
	"github.com/strandworks/strand/pkg/eventbus"
	"github.com/strandworks/strand/pkg/events"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/models"
)

const (
	defaultMaxStepToolCalls = 10
	maxResultLength         = 500
	maxPreviewLength        = 100
)

// ToolRegistry is the slice of the integration registry the engine
// needs: classification, tool binding, incremental loading and tool
// invocation.
type ToolRegistry interface {
	Classify(ctx context.Context, request string) classifier.Result
	Toolset(names []string) []llm.Tool
	IntegrationForTool(toolName string) (string, bool)
	LoadIntegration(ctx context.Context, name string) (int, error)
	CallTool(ctx context.Context, toolName string, arguments map[string]any) (string, error)
	Integration(name string) (*config.Integration, bool)
	Hints(names []string, phase string) string
}

// CheckpointFunc persists the state after every node transition.
type CheckpointFunc func(ctx context.Context, state *models.WorkflowState) error

// EmitFunc receives the typed events a running workflow produces.
type EmitFunc func(ctx context.Context, event eventbus.Event)

// Outcome is how one engine invocation ended. Paused means a step is
// waiting on a human decision; the caller persists the state and
// re-invokes once a decision has been injected.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomePaused
	OutcomeFailed
)

type node int

const (
	nodeSmartRouter node = iota
	nodePlanner
	nodeExecutor
	nodeExecutorWithApproval
	nodeTools
	nodeStepComplete
	nodeEnd
)

func (n node) String() string {
	switch n {
	case nodeSmartRouter:
		return "smart_router"
	case nodePlanner:
		return "planner"
	case nodeExecutor:
		return "executor"
	case nodeExecutorWithApproval:
		return "executor_with_approval"
	case nodeTools:
		return "tools"
	case nodeStepComplete:
		return "step_complete"
	default:
		return "end"
	}
}

// MachineConfig wires the engine's collaborators. Registry and
// Checkpoint are optional; without a registry the engine plans and
// executes with no tools bound.
type MachineConfig struct {
	Chat             llm.ChatModel
	Planner          llm.Planner
	Registry         ToolRegistry
	Checkpoint       CheckpointFunc
	Logger           *slog.Logger
	MaxStepToolCalls int
}

// Machine drives one conversation thread through the workflow graph.
// It holds no per-thread state; everything mutable lives in the
// models.WorkflowState passed to Run.
type Machine struct {
	chat             llm.ChatModel
	planner          llm.Planner
	registry         ToolRegistry
	checkpoint       CheckpointFunc
	logger           *slog.Logger
	maxStepToolCalls int
}

func NewMachine(cfg MachineConfig) *Machine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxCalls := cfg.MaxStepToolCalls
	if maxCalls <= 0 {
		maxCalls = defaultMaxStepToolCalls
	}

	return &Machine{
		chat:             cfg.Chat,
		planner:          cfg.Planner,
		registry:         cfg.Registry,
		checkpoint:       cfg.Checkpoint,
		logger:           logger,
		maxStepToolCalls: maxCalls,
	}
}

// run carries the per-invocation bindings: the resolved tool set and
// the missing-tool recovery bookkeeping.
type run struct {
	*Machine

	state     *models.WorkflowState
	emit      EmitFunc
	tools     []llm.Tool
	bound     map[string]struct{}
	recovered map[string]struct{}
}

// Run drives the state machine from wherever the state left off to
// completion, a pause point or a fatal step error. The state is
// checkpointed after every node.
func (m *Machine) Run(ctx context.Context, state *models.WorkflowState, emit EmitFunc) (Outcome, error) {
	r := &run{
		Machine:   m,
		state:     state,
		emit:      emit,
		recovered: make(map[string]struct{}),
	}
	r.bindTools()

	current := r.entryNode(ctx)
	for current != nodeEnd {
		m.logger.DebugContext(ctx, "Entering workflow node", "node", current.String(), "thread_id", state.ThreadID)

		next, err := r.invoke(ctx, current)

		r.save(ctx)

		if err != nil {
			return OutcomeFailed, err
		}

		current = next
	}

	r.save(ctx)

	if state.AwaitingApproval && state.ApprovalDecision == nil {
		return OutcomePaused, nil
	}

	return OutcomeCompleted, nil
}

func (r *run) invoke(ctx context.Context, current node) (node, error) {
	switch current {
	case nodeSmartRouter:
		return r.smartRouterNode(ctx)
	case nodePlanner:
		return r.plannerNode(ctx)
	case nodeExecutor:
		return r.executorNode(ctx)
	case nodeExecutorWithApproval:
		return r.executorWithApprovalNode(ctx)
	case nodeTools:
		return r.toolsNode(ctx)
	case nodeStepComplete:
		return r.stepCompleteNode(ctx)
	default:
		return nodeEnd, nil
	}
}

// entryNode picks where to resume: a fresh turn starts at routing or
// planning, a pending decision re-enters the approval executor, and a
// mid-plan state continues at whichever executor matches the current
// step's approval flag.
func (r *run) entryNode(ctx context.Context) node {
	s := r.state

	if s.AwaitingApproval {
		if s.ApprovalDecision != nil {
			return nodeExecutorWithApproval
		}

		return nodeEnd
	}

	if s.Plan == nil {
		if r.registry != nil {
			return nodeSmartRouter
		}

		return nodePlanner
	}

	if s.Plan.IsComplete {
		return nodeEnd
	}

	step := s.CurrentStep()
	if step == nil {
		return nodeEnd
	}

	switch step.Status {
	case models.StepStatusPending, models.StepStatusInProgress:
		return executorFor(step)
	case models.StepStatusAwaitingApproval:
		return nodeExecutorWithApproval
	default:
		return r.advance(ctx)
	}
}

func executorFor(step *models.WorkflowStep) node {
	if step.RequiresHumanApproval {
		return nodeExecutorWithApproval
	}

	return nodeExecutor
}

// smartRouterNode classifies the integrations the request needs,
// injects any prior-turn artifact integrations the request references
// and binds the filtered tool set.
func (r *run) smartRouterNode(ctx context.Context) (node, error) {
	s := r.state
	request := lastUserMessage(s.Messages)

	result := r.registry.Classify(ctx, request)
	selected := r.injectArtifactIntegrations(request, result.Integrations)

	s.InitialIntegrations = selected
	s.IncrementalLoads = nil
	s.LoadedIntegrations = r.integrationInfos(selected)
	r.bindTools()

	r.logger.InfoContext(ctx, "Routed request to integrations",
		"thread_id", s.ThreadID,
		"integrations", selected,
		"method", result.Method,
		"confidence", result.Confidence,
		"tools", len(r.tools))

	r.send(ctx, events.IntegrationsReady{
		BaseEvent:    events.NewBaseEvent(events.IntegrationsReadyEventType, s.ThreadID),
		Integrations: s.LoadedIntegrations,
		Method:       result.Method,
	})

	return nodePlanner, nil
}

// plannerNode asks the LLM for a structured plan and seeds the step
// list, all pending, pointing at step one.
func (r *run) plannerNode(ctx context.Context) (node, error) {
	s := r.state
	request := lastUserMessage(s.Messages)

	s.ConversationSummary = artifacts.BuildConversationSummary(s.Messages, s.Artifacts)

	hints := ""
	if r.registry != nil {
		hints = r.registry.Hints(s.InitialIntegrations, "planner")
	}

	system := plannerSystemPrompt(s, integrationContext(s.LoadedIntegrations), hints)

	response, err := r.planner.GeneratePlan(ctx, system, request)
	if err != nil {
		r.sendError(ctx, fmt.Sprintf("planning failed: %v", err))

		return nodeEnd, fmt.Errorf("planning failed: %w", err)
	}

	plan := &models.WorkflowPlan{
		OriginalRequest: request,
		Thinking:        response.Thinking,
		Steps:           make([]*models.WorkflowStep, 0, len(response.Steps)),
	}

	for i, step := range response.Steps {
		plan.Steps = append(plan.Steps, &models.WorkflowStep{
			StepNumber:            i + 1,
			Description:           step.Description,
			RequiresHumanApproval: step.RequiresHumanApproval,
			ApprovalReason:        step.ApprovalReason,
			Status:                models.StepStatusPending,
		})
	}

	s.Plan = plan

	if len(plan.Steps) == 0 {
		plan.IsComplete = true

		r.send(ctx, events.Done{
			BaseEvent: events.NewBaseEvent(events.DoneEventType, s.ThreadID),
			Plan:      plan,
		})

		return nodeEnd, nil
	}

	s.CurrentStepIndex = 0

	r.send(ctx, events.Thinking{
		BaseEvent: events.NewBaseEvent(events.ThinkingEventType, s.ThreadID),
		Thinking:  response.Thinking,
		Plan:      plan,
		StepCount: len(plan.Steps),
	})

	return executorFor(plan.Steps[0]), nil
}

func (r *run) executorNode(ctx context.Context) (node, error) {
	step := r.state.CurrentStep()
	if step == nil {
		return nodeEnd, nil
	}

	return r.invokeExecutor(ctx, step, "")
}

// executorWithApprovalNode is the HITL path. First entry pauses the
// graph; re-entry with an injected decision branches on the chosen
// action; re-entry after tool results continues the step like the auto
// executor.
func (r *run) executorWithApprovalNode(ctx context.Context) (node, error) {
	s := r.state

	step := s.CurrentStep()
	if step == nil {
		return nodeEnd, nil
	}

	if s.ApprovalDecision != nil {
		decision := *s.ApprovalDecision
		s.ClearApproval()

		switch decision.Action {
		case models.ApprovalActionSkip:
			step.Status = models.StepStatusSkipped
			step.Result = "Skipped by user"
			s.ResetStepLoop()

			return nodeStepComplete, nil
		case models.ApprovalActionEdit:
			return r.invokeExecutor(ctx, step, decision.Content)
		default:
			return r.invokeExecutor(ctx, step, "")
		}
	}

	if len(s.StepTranscript) > 0 {
		return r.invokeExecutor(ctx, step, "")
	}

	step.Status = models.StepStatusAwaitingApproval
	s.AwaitingApproval = true
	s.ApprovalStepInfo = &models.ApprovalRequest{
		Type:        "approval_required",
		StepNumber:  step.StepNumber,
		Description: step.Description,
		Reason:      step.ApprovalReason,
		Actions:     models.ApprovalActions(),
	}

	r.send(ctx, events.ApprovalRequired{
		BaseEvent: events.NewBaseEvent(events.ApprovalRequiredEventType, s.ThreadID),
		Request:   *s.ApprovalStepInfo,
	})

	return nodeEnd, nil
}

// invokeExecutor runs one LLM round for the current step: fresh entry
// seeds the private transcript, continuation re-invokes over
// accumulated tool results.
func (r *run) invokeExecutor(ctx context.Context, step *models.WorkflowStep, editedContent string) (node, error) {
	s := r.state

	if len(s.StepTranscript) == 0 {
		step.Status = models.StepStatusInProgress

		r.send(ctx, events.Progress{
			BaseEvent:   events.NewBaseEvent(events.ProgressEventType, s.ThreadID),
			StepNumber:  step.StepNumber,
			Status:      step.Status,
			Description: step.Description,
		})

		hints := ""
		if r.registry != nil {
			hints = r.registry.Hints(s.InitialIntegrations, "executor")
		}

		s.StepTranscript = []llm.Message{
			llm.SystemMessage(executorSystemPrompt(s, step, hints)),
			llm.UserMessage(executorUserPrompt(s, step, editedContent)),
		}
	}

	start := time.Now()

	reply, err := r.chat.Chat(ctx, s.StepTranscript, r.tools)
	if err != nil {
		if name, ok := missingToolName(err); ok {
			if loadErr := r.recoverMissingTool(ctx, name); loadErr != nil {
				r.failStep(ctx, step, loadErr)

				return nodeEnd, loadErr
			}

			reply, err = r.chat.Chat(ctx, s.StepTranscript, r.tools)
		}
	}

	if err != nil {
		stepErr := fmt.Errorf("step %d execution failed: %w", step.StepNumber, err)
		r.failStep(ctx, step, stepErr)

		return nodeEnd, stepErr
	}

	step.ThinkingDurationMS += time.Since(start).Milliseconds()
	s.StepTranscript = append(s.StepTranscript, reply)

	if reply.Content != "" {
		r.send(ctx, events.StepThinking{
			BaseEvent:  events.NewBaseEvent(events.StepThinkingEventType, s.ThreadID),
			StepNumber: step.StepNumber,
			Text:       reply.Content,
		})
	}

	if reply.HasToolCalls() && s.StepToolCalls < r.maxStepToolCalls {
		for _, call := range reply.ToolCalls {
			if _, ok := r.bound[call.Name]; ok {
				continue
			}

			if loadErr := r.recoverMissingTool(ctx, call.Name); loadErr != nil {
				r.failStep(ctx, step, loadErr)

				return nodeEnd, loadErr
			}
		}

		return nodeTools, nil
	}

	return nodeStepComplete, nil
}

// toolsNode invokes every pending tool call from the latest assistant
// message. Individual tool failures become tool-result content so the
// executor can see and react to them; they never abort the step.
// Routing back consults the current step's approval flag, not the node
// that dispatched here.
func (r *run) toolsNode(ctx context.Context) (node, error) {
	s := r.state

	step := s.CurrentStep()
	if step == nil || len(s.StepTranscript) == 0 {
		return nodeEnd, nil
	}

	last := s.StepTranscript[len(s.StepTranscript)-1]

	for _, call := range last.ToolCalls {
		content := r.callTool(ctx, call)

		s.StepTranscript = append(s.StepTranscript, llm.ToolMessage(call.ID, content))
		step.ToolsUsed = appendUnique(step.ToolsUsed, call.Name)
	}

	s.StepToolCalls++

	return executorFor(step), nil
}

func (r *run) callTool(ctx context.Context, call llm.ToolCall) string {
	if r.registry == nil {
		return "Error: no tools are available"
	}

	var arguments map[string]any

	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &arguments); err != nil {
			return fmt.Sprintf("Error: invalid tool arguments: %v", err)
		}
	}

	result, err := r.registry.CallTool(ctx, call.Name, arguments)
	if err != nil {
		r.logger.WarnContext(ctx, "Tool call failed",
			"thread_id", r.state.ThreadID,
			"tool", call.Name,
			"error", err)

		return fmt.Sprintf("Error: %v", err)
	}

	return result
}

// stepCompleteNode finalizes the current step, mines its transcript
// for artifacts and either advances to the next step or composes the
// final summary. A skipped step keeps its status and result untouched.
func (r *run) stepCompleteNode(ctx context.Context) (node, error) {
	s := r.state

	step := s.CurrentStep()
	if step == nil {
		return nodeEnd, nil
	}

	if step.Status != models.StepStatusSkipped {
		step.Status = models.StepStatusCompleted
		step.Result = truncateText(lastAssistantContent(s.StepTranscript), maxResultLength)

		if strings.Contains(strings.ToLower(step.Description), "search") {
			step.SearchResults = artifacts.ExtractSearchResults(s.StepTranscript)
		}

		found := artifacts.ExtractFromStep(s.StepTranscript, step.StepNumber, s.TurnNumber, r.extractionHint())
		s.Artifacts = artifacts.Merge(s.Artifacts, found)
	}

	if step.Result != "" {
		s.Messages = append(s.Messages, llm.AssistantMessage(step.Result))
	}

	s.ResetStepLoop()

	r.send(ctx, events.Progress{
		BaseEvent:  events.NewBaseEvent(events.ProgressEventType, s.ThreadID),
		StepNumber: step.StepNumber,
		Status:     step.Status,
		Result:     step.Result,
		Plan:       s.Plan,
	})

	return r.advance(ctx), nil
}

// advance moves to the next step, or finishes the plan when the last
// step is done.
func (r *run) advance(ctx context.Context) node {
	s := r.state

	if s.Plan == nil {
		return nodeEnd
	}

	if s.CurrentStepIndex+1 < len(s.Plan.Steps) {
		s.CurrentStepIndex++

		return executorFor(s.CurrentStep())
	}

	r.finishPlan(ctx)

	return nodeEnd
}

func (r *run) finishPlan(ctx context.Context) {
	plan := r.state.Plan
	if plan == nil || plan.IsComplete {
		return
	}

	plan.IsComplete = true
	plan.FinalSummary = finalSummary(plan)
	r.state.Messages = append(r.state.Messages, llm.AssistantMessage(plan.FinalSummary))

	r.send(ctx, events.Done{
		BaseEvent:    events.NewBaseEvent(events.DoneEventType, r.state.ThreadID),
		FinalSummary: plan.FinalSummary,
		Plan:         plan,
	})
}

// recoverMissingTool performs at most one incremental integration load
// per unknown tool name. A tool that belongs to no configured
// integration, or stays unknown after its integration loads, is fatal.
func (r *run) recoverMissingTool(ctx context.Context, toolName string) error {
	if r.registry == nil {
		return fmt.Errorf("tool %q not found: no registry configured", toolName)
	}

	if _, attempted := r.recovered[toolName]; attempted {
		return fmt.Errorf("tool %q not found after incremental load", toolName)
	}

	r.recovered[toolName] = struct{}{}

	integration, ok := r.registry.IntegrationForTool(toolName)
	if !ok {
		return fmt.Errorf("tool %q does not belong to any known integration", toolName)
	}

	added, err := r.registry.LoadIntegration(ctx, integration)
	if err != nil {
		return fmt.Errorf("failed to load integration %s for tool %q: %w", integration, toolName, err)
	}

	load := models.IncrementalLoad{
		Integration: integration,
		ToolsAdded:  added,
		Reason:      fmt.Sprintf("tool %s was requested but not bound", toolName),
	}
	r.state.IncrementalLoads = append(r.state.IncrementalLoads, load)
	r.state.LoadedIntegrations = append(r.state.LoadedIntegrations, r.integrationInfos([]string{integration})...)

	r.bindTools()

	if _, ok := r.bound[toolName]; !ok {
		return fmt.Errorf("tool %q still unknown after loading integration %s", toolName, integration)
	}

	r.logger.InfoContext(ctx, "Incrementally loaded integration",
		"thread_id", r.state.ThreadID,
		"integration", integration,
		"tools_added", added,
		"tool", toolName)

	r.send(ctx, events.IntegrationAddedIncrementally{
		BaseEvent: events.NewBaseEvent(events.IntegrationAddedIncrementallyEventType, r.state.ThreadID),
		Load:      load,
	})

	return nil
}

// bindTools resolves the tool set for the routed integrations plus any
// incrementally loaded ones.
func (r *run) bindTools() {
	if r.registry == nil {
		return
	}

	names := append([]string{}, r.state.InitialIntegrations...)
	for _, load := range r.state.IncrementalLoads {
		names = append(names, load.Integration)
	}

	if len(names) == 0 {
		r.tools = nil
		r.bound = nil
		r.state.BoundTools = nil

		return
	}

	r.tools = r.registry.Toolset(names)
	r.bound = make(map[string]struct{}, len(r.tools))

	toolNames := make([]string, 0, len(r.tools))
	for _, tool := range r.tools {
		r.bound[tool.Name] = struct{}{}
		toolNames = append(toolNames, tool.Name)
	}

	r.state.BoundTools = toolNames
}

// extractionHint names the integration to attribute ambiguous
// artifacts to, but only when the routing was unambiguous.
func (r *run) extractionHint() string {
	names := make(map[string]struct{})
	for _, name := range r.state.InitialIntegrations {
		names[name] = struct{}{}
	}

	for _, load := range r.state.IncrementalLoads {
		names[load.Integration] = struct{}{}
	}

	if len(names) != 1 {
		return ""
	}

	for name := range names {
		return name
	}

	return ""
}

func (r *run) integrationInfos(names []string) []models.IntegrationInfo {
	infos := make([]models.IntegrationInfo, 0, len(names))

	for _, name := range names {
		integration, ok := r.registrationFor(name)
		if !ok {
			infos = append(infos, models.IntegrationInfo{Name: name, DisplayName: name})

			continue
		}

		infos = append(infos, models.IntegrationInfo{
			Name:         name,
			DisplayName:  integration.DisplayName,
			Icon:         integration.Icon,
			RequiresAuth: integration.RequiresAuth,
		})
	}

	return infos
}

func (r *run) registrationFor(name string) (*config.Integration, bool) {
	if r.registry == nil {
		return nil, false
	}

	return r.registry.Integration(name)
}

func (r *run) failStep(ctx context.Context, step *models.WorkflowStep, err error) {
	step.Status = models.StepStatusFailed
	step.Error = err.Error()
	r.state.ResetStepLoop()

	r.logger.ErrorContext(ctx, "Workflow step failed",
		"thread_id", r.state.ThreadID,
		"step", step.StepNumber,
		"error", err)

	r.sendError(ctx, err.Error())
}

func (r *run) send(ctx context.Context, event eventbus.Event) {
	if r.emit != nil {
		r.emit(ctx, event)
	}
}

func (r *run) sendError(ctx context.Context, message string) {
	r.send(ctx, events.Error{
		BaseEvent: events.NewBaseEvent(events.ErrorEventType, r.state.ThreadID),
		Message:   message,
	})
}

func (r *run) save(ctx context.Context) {
	if r.checkpoint == nil {
		return
	}

	if err := r.checkpoint(ctx, r.state); err != nil {
		r.logger.WarnContext(ctx, "Failed to checkpoint workflow state",
			"thread_id", r.state.ThreadID,
			"error", err)
	}
}

// finalSummary renders the end-of-workflow report: one line per step
// with its status icon and a short result preview.
func finalSummary(plan *models.WorkflowPlan) string {
	var builder strings.Builder

	builder.WriteString("✅ **Workflow Complete!**\n")

	for _, step := range plan.Steps {
		fmt.Fprintf(&builder, "\n%s Step %d: %s", statusIcon(step.Status), step.StepNumber, step.Description)

		preview := step.Result
		if step.Status == models.StepStatusFailed {
			preview = step.Error
		}

		if preview != "" {
			fmt.Fprintf(&builder, "\n   %s", truncateText(preview, maxPreviewLength))
		}
	}

	return builder.String()
}

func statusIcon(status models.StepStatus) string {
	switch status {
	case models.StepStatusCompleted:
		return "✓"
	case models.StepStatusSkipped:
		return "⏭️"
	case models.StepStatusFailed:
		return "❌"
	default:
		return "•"
	}
}

var missingToolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)tool\s+['"` + "`" + `]?([\w.-]+)['"` + "`" + `]?\s+(?:not found|is unknown|unknown|is not available|does not exist)`),
	regexp.MustCompile(`(?i)(?:unknown|missing)\s+tool[:\s]+['"` + "`" + `]?([\w.-]+)`),
}

// missingToolName recognizes missing-tool execution errors and pulls
// the offending tool name out of the error text.
func missingToolName(err error) (string, bool) {
	text := err.Error()

	lower := strings.ToLower(text)
	if !strings.Contains(lower, "tool") {
		return "", false
	}

	for _, pattern := range missingToolPatterns {
		if match := pattern.FindStringSubmatch(text); match != nil {
			return match[1], true
		}
	}

	return "", false
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}

	return ""
}

func lastAssistantContent(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}

	return ""
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}

	return append(list, value)
}

func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit]) + "..."
}
