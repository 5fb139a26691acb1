package workflow

import (
	"fmt"
	"strings"

	"github.com/strandworks/strand/pkg/artifacts"
	"github.com/strandworks/strand/pkg/models"
)

const plannerRole = `You are a workflow planner. Break the user's request into the smallest
sequence of concrete, executable steps. Each step is executed independently
with access to external tools, so a step description must be self-contained.

Mark requires_human_approval=true for any step with side effects the user
would want to confirm first: sending messages or emails, creating, modifying
or deleting resources, or sharing anything externally. Read-only steps such
as searching or fetching information never require approval. When a step
requires approval, give a short approval_reason.

Respond with a JSON object of the form:
{"thinking": "...", "steps": [{"description": "...", "requires_human_approval": false, "approval_reason": ""}]}`

const executorRole = `You are a workflow step executor. Complete the single step you are given
using the available tools. Call tools whenever the step needs external data
or actions; do not invent results. When you already have an exact resource ID
from the context below, reuse it instead of searching for it or asking.
When the step is done, reply with a concise summary of what you did and any
resources you created, including their names, IDs and URLs.`

// plannerSystemPrompt assembles the planning context: prior-turn
// summary, accumulated artifacts, the routed integrations and their
// planner hints.
func plannerSystemPrompt(state *models.WorkflowState, integrationContext, hints string) string {
	var builder strings.Builder

	builder.WriteString(plannerRole)

	if state.ConversationSummary != "" {
		builder.WriteString("\n\n")
		builder.WriteString(state.ConversationSummary)
	}

	if context := artifacts.FormatContext(state.Artifacts); context != "" {
		builder.WriteString("\n\n")
		builder.WriteString(context)
	}

	if integrationContext != "" {
		builder.WriteString("\n\n")
		builder.WriteString(integrationContext)
	}

	if hints != "" {
		builder.WriteString("\n\n")
		builder.WriteString(hints)
	}

	return builder.String()
}

// executorSystemPrompt assembles the per-step execution context,
// including the exact resource IDs of artifacts from earlier steps and
// turns so the executor never re-derives identifiers it already has.
func executorSystemPrompt(state *models.WorkflowState, step *models.WorkflowStep, hints string) string {
	var builder strings.Builder

	builder.WriteString(executorRole)

	if state.ConversationSummary != "" {
		builder.WriteString("\n\n")
		builder.WriteString(state.ConversationSummary)
	}

	if context := artifacts.FormatContext(state.Artifacts); context != "" {
		builder.WriteString("\n\n")
		builder.WriteString(context)
	}

	if ids := artifacts.FormatResourceIDs(state.Artifacts, step.StepNumber, state.TurnNumber); ids != "" {
		builder.WriteString("\n\n")
		builder.WriteString(ids)
	}

	if hints != "" {
		builder.WriteString("\n\n")
		builder.WriteString(hints)
	}

	return builder.String()
}

// executorUserPrompt frames one step for the executor. Edited content
// from an approval decision replaces nothing; it is layered on top so
// the original intent stays visible.
func executorUserPrompt(state *models.WorkflowState, step *models.WorkflowStep, editedContent string) string {
	var builder strings.Builder

	if state.Plan != nil && state.Plan.OriginalRequest != "" {
		fmt.Fprintf(&builder, "Overall request: %s\n\n", state.Plan.OriginalRequest)
	}

	fmt.Fprintf(&builder, "Execute step %d of %d: %s", step.StepNumber, planLength(state.Plan), step.Description)

	if editedContent != "" {
		fmt.Fprintf(&builder, "\n\nUPDATED INSTRUCTIONS FROM USER: %s", editedContent)
	}

	return builder.String()
}

// integrationContext renders the routed integration set for the
// planner prompt.
func integrationContext(infos []models.IntegrationInfo) string {
	if len(infos) == 0 {
		return ""
	}

	var builder strings.Builder

	builder.WriteString("AVAILABLE INTEGRATIONS:\n")

	for _, info := range infos {
		fmt.Fprintf(&builder, "- %s (%s)\n", info.DisplayName, info.Name)
	}

	return strings.TrimRight(builder.String(), "\n")
}

func planLength(plan *models.WorkflowPlan) int {
	if plan == nil {
		return 0
	}

	return len(plan.Steps)
}
