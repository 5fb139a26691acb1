// Package llm defines the model-facing message types and the narrow
// interfaces the workflow engine consumes. Implementations live next
// to them; the engine itself never imports a vendor SDK.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is one tool invocation requested by an assistant message.
// Arguments is the raw JSON string exactly as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a conversation transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: content}
}

// Tool describes a callable tool in the form models expect: a name, a
// description and a JSON-schema parameter object.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// PlanStep is one planned unit of work as produced by the planning
// model.
type PlanStep struct {
	Description           string `json:"description"`
	RequiresHumanApproval bool   `json:"requires_human_approval"`
	ApprovalReason        string `json:"approval_reason,omitempty"`
}

// PlanResponse is the schema-validated output of a planning call.
type PlanResponse struct {
	Thinking string     `json:"thinking"`
	Steps    []PlanStep `json:"steps"`
}

// ChatModel is the tool-calling execution capability.
type ChatModel interface {
	Chat(ctx context.Context, messages []Message, tools []Tool) (Message, error)
}

// Planner produces a structured workflow plan.
type Planner interface {
	GeneratePlan(ctx context.Context, systemPrompt, userPrompt string) (*PlanResponse, error)
}

// Completer is a plain text-in/text-out completion, used by the
// classifier's LLM fallback.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
