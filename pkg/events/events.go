// Package events defines the typed streaming events a running
// workflow emits: planning progress, integration loading, approval
// pauses and terminal outcomes.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/strandworks/strand/pkg/models"
)

type EventType string

// Topic carries every workflow event; consumers filter by thread id.
const Topic = "strand.workflow.events"

const (
	ThreadMetadataKey    = "thread_id"
	EventTypeMetadataKey = "event_type"
)

const (
	ThinkingEventType                      EventType = "thinking"
	ProgressEventType                      EventType = "progress"
	StepThinkingEventType                  EventType = "step_thinking"
	IntegrationsReadyEventType             EventType = "integrations_ready"
	IntegrationAddedIncrementallyEventType EventType = "integration_added_incrementally"
	ApprovalRequiredEventType              EventType = "approval_required"
	ErrorEventType                         EventType = "error"
	DoneEventType                          EventType = "done"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	ThreadID  string    `json:"thread_id"`
}

func NewBaseEvent(eventType EventType, threadID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ThreadID:  threadID,
	}
}

func (b BaseEvent) GetThreadID() string {
	return b.ThreadID
}

// Thinking carries the planner's reasoning text once a plan exists.
type Thinking struct {
	BaseEvent

	Thinking  string               `json:"thinking"`
	Plan      *models.WorkflowPlan `json:"plan,omitempty"`
	StepCount int                  `json:"step_count"`
}

func (t Thinking) GetType() EventType {
	return ThinkingEventType
}

// Progress reports a step lifecycle change.
type Progress struct {
	BaseEvent

	StepNumber  int                  `json:"step_number"`
	Status      models.StepStatus    `json:"status"`
	Description string               `json:"description,omitempty"`
	Result      string               `json:"result,omitempty"`
	Plan        *models.WorkflowPlan `json:"plan,omitempty"`
}

func (p Progress) GetType() EventType {
	return ProgressEventType
}

// StepThinking streams the executor's narration for one step.
type StepThinking struct {
	BaseEvent

	StepNumber int    `json:"step_number"`
	Text       string `json:"text"`
}

func (s StepThinking) GetType() EventType {
	return StepThinkingEventType
}

// IntegrationsReady announces the initial routed integration set.
type IntegrationsReady struct {
	BaseEvent

	Integrations []models.IntegrationInfo `json:"integrations"`
	Method       string                   `json:"method,omitempty"`
}

func (i IntegrationsReady) GetType() EventType {
	return IntegrationsReadyEventType
}

// IntegrationAddedIncrementally reports a mid-workflow tool load
// triggered by a missing tool.
type IntegrationAddedIncrementally struct {
	BaseEvent

	Load models.IncrementalLoad `json:"load"`
}

func (i IntegrationAddedIncrementally) GetType() EventType {
	return IntegrationAddedIncrementallyEventType
}

// ApprovalRequired signals a paused workflow; streaming stops after
// this event until the caller resumes the thread.
type ApprovalRequired struct {
	BaseEvent

	Request models.ApprovalRequest `json:"request"`
}

func (a ApprovalRequired) GetType() EventType {
	return ApprovalRequiredEventType
}

// Error is a fatal workflow failure.
type Error struct {
	BaseEvent

	Message string `json:"message"`
}

func (e Error) GetType() EventType {
	return ErrorEventType
}

// Done terminates a stream for a completed workflow.
type Done struct {
	BaseEvent

	FinalSummary string               `json:"final_summary,omitempty"`
	Plan         *models.WorkflowPlan `json:"plan,omitempty"`
}

func (d Done) GetType() EventType {
	return DoneEventType
}
