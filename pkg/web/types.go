// Package web provides HTTP request and response types for the workflow API.
package web

// ExecuteRequest is the request body for starting a workflow turn.
// An empty thread_id starts a new conversation thread.
type ExecuteRequest struct {
	Message  string `json:"message"   validate:"required,min=1"`
	ThreadID string `json:"thread_id"`
}

// ResumeRequest carries the human decision for a paused approval step.
// Content is only meaningful for the "edit" action.
type ResumeRequest struct {
	Action  string `json:"action"  validate:"required"`
	Content string `json:"content,omitempty"`
}

// RetryRequest names the 1-indexed step to re-run; that step and every
// later one are reset and re-executed.
type RetryRequest struct {
	StepNumber int `json:"step_number" validate:"required,min=1"`
}
