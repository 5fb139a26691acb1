package models

import (
	"github.com/strandworks/strand/pkg/artifacts"
	"github.com/strandworks/strand/pkg/llm"
)

const (
	ApprovalActionApprove = "approve"
	ApprovalActionEdit    = "edit"
	ApprovalActionSkip    = "skip"
)

// ApprovalActions are the choices offered to the user when a step
// pauses for approval.
func ApprovalActions() []string {
	return []string{ApprovalActionApprove, ApprovalActionEdit, ApprovalActionSkip}
}

// ApprovalRequest describes a paused step waiting on a human decision.
type ApprovalRequest struct {
	Type        string   `json:"type"`
	StepNumber  int      `json:"step_number"`
	Description string   `json:"description"`
	Reason      string   `json:"reason,omitempty"`
	Actions     []string `json:"actions"`
}

// ApprovalDecision is the user's answer to an ApprovalRequest. Content
// carries replacement instructions for the "edit" action.
type ApprovalDecision struct {
	Action  string `json:"action"`
	Content string `json:"content,omitempty"`
}

// IntegrationInfo is the client-facing description of a loaded
// integration.
type IntegrationInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Icon         string `json:"icon,omitempty"`
	RequiresAuth bool   `json:"requires_auth"`
}

// IncrementalLoad records a mid-workflow integration load triggered by
// a missing tool.
type IncrementalLoad struct {
	Integration string `json:"integration"`
	ToolsAdded  int    `json:"tools_added"`
	Reason      string `json:"reason,omitempty"`
}

// WorkflowState is everything persisted per thread. It is checkpointed
// after every engine invocation; resume and retry read the latest
// checkpoint, mutate it and re-invoke.
type WorkflowState struct {
	ThreadID         string         `json:"thread_id"`
	Messages         []llm.Message  `json:"messages"`
	Plan             *WorkflowPlan  `json:"plan,omitempty"`
	CurrentStepIndex int            `json:"current_step_index"`
	TurnNumber       int            `json:"turn_number"`

	AwaitingApproval bool              `json:"awaiting_approval"`
	ApprovalStepInfo *ApprovalRequest  `json:"approval_step_info,omitempty"`
	ApprovalDecision *ApprovalDecision `json:"approval_decision,omitempty"`

	LoadedIntegrations  []IntegrationInfo `json:"loaded_integrations,omitempty"`
	BoundTools          []string          `json:"bound_tools,omitempty"`
	InitialIntegrations []string          `json:"initial_integrations,omitempty"`
	IncrementalLoads    []IncrementalLoad `json:"incremental_loads,omitempty"`

	Artifacts           []artifacts.Artifact `json:"artifacts,omitempty"`
	ConversationSummary string               `json:"conversation_summary,omitempty"`

	// Per-step tool-loop bookkeeping: the executor's private chat
	// transcript and tool-call counter for the step in flight.
	StepTranscript []llm.Message `json:"step_transcript,omitempty"`
	StepToolCalls  int           `json:"step_tool_calls"`
}

// NewWorkflowState builds the initial state for a thread; step index
// −1 means the planning phase has not produced a plan yet.
func NewWorkflowState(threadID string) *WorkflowState {
	return &WorkflowState{
		ThreadID:         threadID,
		Messages:         []llm.Message{},
		CurrentStepIndex: -1,
	}
}

// CurrentStep returns the step the engine is on, or nil outside a
// plan.
func (s *WorkflowState) CurrentStep() *WorkflowStep {
	return s.Plan.Step(s.CurrentStepIndex)
}

// ResetStepLoop clears the per-step transcript and tool-call counter
// when a step finishes or is abandoned.
func (s *WorkflowState) ResetStepLoop() {
	s.StepTranscript = nil
	s.StepToolCalls = 0
}

// ClearApproval drops all HITL fields after a decision is consumed.
func (s *WorkflowState) ClearApproval() {
	s.AwaitingApproval = false
	s.ApprovalStepInfo = nil
	s.ApprovalDecision = nil
}
