// Package models holds the persisted workflow domain types: plans,
// steps and the per-thread state the engine checkpoints between
// invocations.
package models

import "github.com/strandworks/strand/pkg/artifacts"

type StepStatus string

const (
	StepStatusPending          StepStatus = "pending"
	StepStatusInProgress       StepStatus = "in_progress"
	StepStatusAwaitingApproval StepStatus = "awaiting_approval"
	StepStatusCompleted        StepStatus = "completed"
	StepStatusSkipped          StepStatus = "skipped"
	StepStatusFailed           StepStatus = "failed"
)

// WorkflowStep is one atomic unit of work. Steps are mutated in place
// as they move through their lifecycle and are never deleted; a retry
// resets them to pending instead of recreating them.
type WorkflowStep struct {
	StepNumber            int                      `json:"step_number"`
	Description           string                   `json:"description"`
	RequiresHumanApproval bool                     `json:"requires_human_approval"`
	ApprovalReason        string                   `json:"approval_reason,omitempty"`
	Status                StepStatus               `json:"status"`
	Result                string                   `json:"result,omitempty"`
	Error                 string                   `json:"error,omitempty"`
	ToolsUsed             []string                 `json:"tools_used,omitempty"`
	SearchResults         []artifacts.SearchResult `json:"search_results,omitempty"`
	ThinkingDurationMS    int64                    `json:"thinking_duration_ms,omitempty"`
}

// Reset returns a step to pending, clearing everything execution
// produced. Step number, description and approval settings survive.
func (s *WorkflowStep) Reset() {
	s.Status = StepStatusPending
	s.Result = ""
	s.Error = ""
	s.ToolsUsed = nil
	s.SearchResults = nil
	s.ThinkingDurationMS = 0
}

// WorkflowPlan is the ordered step list for one conversation turn. A
// re-run of planning replaces the plan wholesale; prior results are
// carried forward through artifacts and the conversation summary, not
// through the plan object.
type WorkflowPlan struct {
	OriginalRequest string          `json:"original_request"`
	Thinking        string          `json:"thinking,omitempty"`
	Steps           []*WorkflowStep `json:"steps"`
	IsComplete      bool            `json:"is_complete"`
	FinalSummary    string          `json:"final_summary,omitempty"`
}

// Step returns the step at a 0-based index, or nil when out of range.
func (p *WorkflowPlan) Step(index int) *WorkflowStep {
	if p == nil || index < 0 || index >= len(p.Steps) {
		return nil
	}

	return p.Steps[index]
}
