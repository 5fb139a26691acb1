package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand/pkg/artifacts"
	"github.com/strandworks/strand/pkg/classifier"
	"github.com/strandworks/strand/pkg/config"
	"github.com/strandworks/strand/pkg/llm"
	"github.com/strandworks/strand/pkg/models"
)

type chatTurn struct {
	reply llm.Message
	err   error
}

// scriptedChat replays a fixed sequence of assistant replies. When the
// queue runs out it returns loopReply if set, else a plain "done".
type scriptedChat struct {
	turns        []chatTurn
	loopReply    *llm.Message
	calls        int
	lastMessages []llm.Message
}

func (c *scriptedChat) Chat(_ context.Context, messages []llm.Message, _ []llm.Tool) (llm.Message, error) {
	c.calls++
	c.lastMessages = messages

	if len(c.turns) > 0 {
		next := c.turns[0]
		c.turns = c.turns[1:]

		return next.reply, next.err
	}

	if c.loopReply != nil {
		return *c.loopReply, nil
	}

	return llm.AssistantMessage("done"), nil
}

type stubPlanner struct {
	response   *llm.PlanResponse
	err        error
	calls      int
	lastSystem string
}

func (p *stubPlanner) GeneratePlan(_ context.Context, systemPrompt, _ string) (*llm.PlanResponse, error) {
	p.calls++
	p.lastSystem = systemPrompt

	return p.response, p.err
}

type stubRegistry struct {
	classification classifier.Result
	available      map[string][]llm.Tool
	loaded         map[string][]llm.Tool
	toolOwner      map[string]string
	results        map[string]string
	callErrors     map[string]error
	catalog        map[string]*config.Integration
	loadCalls      []string
	callLog        []string
}

func newStubRegistry() *stubRegistry {
	return &stubRegistry{
		classification: classifier.Result{
			Integrations: []string{"web_search"},
			Scores:       map[string]float64{"web_search": 1.0},
			Method:       classifier.MethodNLP,
			Confidence:   0.8,
		},
		available:  map[string][]llm.Tool{},
		loaded:     map[string][]llm.Tool{},
		toolOwner:  map[string]string{},
		results:    map[string]string{},
		callErrors: map[string]error{},
		catalog:    map[string]*config.Integration{},
	}
}

func (r *stubRegistry) Classify(_ context.Context, _ string) classifier.Result {
	return r.classification
}

func (r *stubRegistry) Toolset(names []string) []llm.Tool {
	selected := make([]llm.Tool, 0)
	for _, name := range names {
		selected = append(selected, r.loaded[name]...)
	}

	if len(selected) == 0 {
		for _, tools := range r.loaded {
			selected = append(selected, tools...)
		}
	}

	return selected
}

func (r *stubRegistry) IntegrationForTool(toolName string) (string, bool) {
	owner, ok := r.toolOwner[toolName]

	return owner, ok
}

func (r *stubRegistry) LoadIntegration(_ context.Context, name string) (int, error) {
	r.loadCalls = append(r.loadCalls, name)

	tools, ok := r.available[name]
	if !ok {
		return 0, fmt.Errorf("unknown integration %q", name)
	}

	r.loaded[name] = tools

	return len(tools), nil
}

func (r *stubRegistry) CallTool(_ context.Context, toolName string, _ map[string]any) (string, error) {
	r.callLog = append(r.callLog, toolName)

	if err, ok := r.callErrors[toolName]; ok {
		return "", err
	}

	if result, ok := r.results[toolName]; ok {
		return result, nil
	}

	for _, tools := range r.loaded {
		for _, tool := range tools {
			if tool.Name == toolName {
				return "ok", nil
			}
		}
	}

	return "", fmt.Errorf("tool not available: %s", toolName)
}

func (r *stubRegistry) Integration(name string) (*config.Integration, bool) {
	integration, ok := r.catalog[name]

	return integration, ok
}

func (r *stubRegistry) Hints(_ []string, _ string) string {
	return ""
}

func namedTool(name string) llm.Tool {
	return llm.Tool{Name: name, InputSchema: map[string]any{"type": "object"}}
}

func toolCallReply(id, name, arguments string) llm.Message {
	return llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: arguments}},
	}
}

func planOf(steps ...llm.PlanStep) *llm.PlanResponse {
	return &llm.PlanResponse{Thinking: "breaking the request into steps", Steps: steps}
}

func newTurnState(threadID, request string) *models.WorkflowState {
	state := models.NewWorkflowState(threadID)
	state.Messages = append(state.Messages, llm.UserMessage(request))
	state.TurnNumber = 1

	return state
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestPlannerRoutesApprovalStepsToApprovalExecutor(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Search for the best auth services"},
		llm.PlanStep{Description: "Create a notion doc with findings", RequiresHumanApproval: true, ApprovalReason: "Creates a new page"},
		llm.PlanStep{Description: "Send the doc to the team on slack", RequiresHumanApproval: true, ApprovalReason: "Sends a message"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: llm.AssistantMessage("Found three strong candidates for auth services.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "search for best auth services, create a notion doc with findings, send to team on slack")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomePaused, outcome)

	require.NotNil(t, state.Plan)
	require.Len(t, state.Plan.Steps, 3)
	assert.False(t, state.Plan.Steps[0].RequiresHumanApproval)
	assert.True(t, state.Plan.Steps[1].RequiresHumanApproval)
	assert.True(t, state.Plan.Steps[2].RequiresHumanApproval)

	// Step 1 ran on the auto path; step 2 paused before executing.
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)
	assert.Equal(t, models.StepStatusAwaitingApproval, state.Plan.Steps[1].Status)
	assert.Equal(t, models.StepStatusPending, state.Plan.Steps[2].Status)

	assert.True(t, state.AwaitingApproval)
	require.NotNil(t, state.ApprovalStepInfo)
	assert.Equal(t, 2, state.ApprovalStepInfo.StepNumber)
	assert.Equal(t, "Creates a new page", state.ApprovalStepInfo.Reason)
	assert.Equal(t, []string{"approve", "edit", "skip"}, state.ApprovalStepInfo.Actions)
	assert.Equal(t, 1, chat.calls)
}

func TestSkipDecisionSkipsStepWithoutTools(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["gmail"] = []llm.Tool{namedTool("gmail.send")}

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Send the report by email", RequiresHumanApproval: true, ApprovalReason: "Sends an email"},
		llm.PlanStep{Description: "Summarize what happened"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: llm.AssistantMessage("Summary: the email step was skipped.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "send the report by email and summarize")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePaused, outcome)

	state.ApprovalDecision = &models.ApprovalDecision{Action: models.ApprovalActionSkip}

	outcome, err = machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, models.StepStatusSkipped, state.Plan.Steps[0].Status)
	assert.Equal(t, "Skipped by user", state.Plan.Steps[0].Result)
	assert.Empty(t, registry.callLog, "a skipped step must not invoke tools")

	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[1].Status)
	assert.True(t, state.Plan.IsComplete)
	assert.Contains(t, state.Plan.FinalSummary, "Workflow Complete")
	assert.False(t, state.AwaitingApproval)
	assert.Nil(t, state.ApprovalStepInfo)
}

func TestApproveDecisionExecutesStep(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["gmail"] = []llm.Tool{namedTool("gmail.send")}
	registry.results["gmail.send"] = `{"id": "msg-1", "status": "sent"}`

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Send the report by email", RequiresHumanApproval: true, ApprovalReason: "Sends an email"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "gmail.send", `{"to": "team@example.com"}`)},
		{reply: llm.AssistantMessage("Sent the report to team@example.com.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "send the report by email")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePaused, outcome)

	state.ApprovalDecision = &models.ApprovalDecision{Action: models.ApprovalActionApprove}

	outcome, err = machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, []string{"gmail.send"}, registry.callLog)
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)
	assert.Contains(t, state.Plan.Steps[0].Result, "Sent the report")
	assert.Equal(t, []string{"gmail.send"}, state.Plan.Steps[0].ToolsUsed)
}

func TestEditDecisionMergesReplacementContent(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["gmail"] = []llm.Tool{namedTool("gmail.send")}

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Send the report by email", RequiresHumanApproval: true, ApprovalReason: "Sends an email"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: llm.AssistantMessage("Sent with the updated wording.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "send the report by email")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	require.Equal(t, OutcomePaused, outcome)

	state.ApprovalDecision = &models.ApprovalDecision{
		Action:  models.ApprovalActionEdit,
		Content: "Only send it to alice@example.com",
	}

	_, err = machine.Run(context.Background(), state, nil)
	require.NoError(t, err)

	// The edited instructions were layered into the step prompt.
	merged := false

	for _, message := range chat.lastMessages {
		if message.Role == llm.RoleUser && strings.Contains(message.Content, "Only send it to alice@example.com") {
			merged = true
		}
	}

	assert.True(t, merged)
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)
}

func TestIncrementalToolLoadOnUnboundToolCall(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}
	registry.available["gmail"] = []llm.Tool{namedTool("gmail.send")}
	registry.toolOwner["gmail.send"] = "gmail"

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Email the findings to the team"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "gmail.send", `{"to": "team@example.com"}`)},
		{reply: llm.AssistantMessage("Email sent.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "email the findings to the team")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Equal(t, []string{"gmail"}, registry.loadCalls, "exactly one incremental load")
	require.Len(t, state.IncrementalLoads, 1)
	assert.Equal(t, "gmail", state.IncrementalLoads[0].Integration)
	assert.Equal(t, 1, state.IncrementalLoads[0].ToolsAdded)
	assert.Equal(t, []string{"gmail.send"}, registry.callLog)
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)
}

func TestUnknownToolIsFatal(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Do something impossible"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "bogus.tool", `{}`)},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "do something impossible")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Contains(t, err.Error(), "bogus.tool")

	assert.Equal(t, models.StepStatusFailed, state.Plan.Steps[0].Status)
	assert.NotEmpty(t, state.Plan.Steps[0].Error)
	assert.Empty(t, registry.loadCalls)
}

func TestMissingToolErrorFromChatRecoversOnce(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}
	registry.available["gmail"] = []llm.Tool{namedTool("gmail.send")}
	registry.toolOwner["gmail.send"] = "gmail"

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Email the findings"},
	)}

	chat := &scriptedChat{turns: []chatTurn{
		{err: errors.New(`tool "gmail.send" not found`)},
		{reply: llm.AssistantMessage("Email sent.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "email the findings")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, []string{"gmail"}, registry.loadCalls)
	assert.Equal(t, 2, chat.calls)
}

func TestToolLoopCapEndsStep(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Keep searching forever"},
	)}

	loop := toolCallReply("call-n", "web.search", `{"query": "more"}`)
	chat := &scriptedChat{loopReply: &loop}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "keep searching forever")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)

	assert.Len(t, registry.callLog, defaultMaxStepToolCalls)
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)
}

func TestToolCallFailureIsIsolated(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}
	registry.toolOwner["web.search"] = "web_search"

	planner := &stubPlanner{response: planOf(
		llm.PlanStep{Description: "Search for something"},
	)}

	// web.search is bound but the invocation itself fails: the error
	// comes back as tool content and the step still completes.
	registry.callErrors["web.search"] = errors.New("search service unavailable")

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "web.search", `{"query": "x"}`)},
		{reply: llm.AssistantMessage("The search service was unavailable, nothing found.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "search for something")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.Equal(t, models.StepStatusCompleted, state.Plan.Steps[0].Status)

	// The failure was delivered to the model as tool content.
	foundError := false

	for _, message := range chat.lastMessages {
		if message.Role == llm.RoleTool && strings.Contains(message.Content, "search service unavailable") {
			foundError = true
		}
	}

	assert.True(t, foundError)
}

func TestStepResultTruncated(t *testing.T) {
	t.Parallel()

	long := make([]byte, 0, 800)
	for i := 0; i < 800; i++ {
		long = append(long, 'a')
	}

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}

	planner := &stubPlanner{response: planOf(llm.PlanStep{Description: "Produce a long answer"})}
	chat := &scriptedChat{turns: []chatTurn{{reply: llm.AssistantMessage(string(long))}}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "produce a long answer")

	_, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)

	assert.Len(t, state.Plan.Steps[0].Result, maxResultLength+len("..."))
}

func TestSearchStepCollectsStructuredResults(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.loaded["web_search"] = []llm.Tool{namedTool("web.search")}
	registry.results["web.search"] = `{"results": [{"title": "Auth0 Review", "url": "https://example.com/auth0", "published_date": "2026-01-10"}]}`

	planner := &stubPlanner{response: planOf(llm.PlanStep{Description: "Search for auth providers"})}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "web.search", `{"query": "auth providers"}`)},
		{reply: llm.AssistantMessage("Found one good review of Auth0.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "search for auth providers")

	_, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)

	step := state.Plan.Steps[0]
	require.Len(t, step.SearchResults, 1)
	assert.Equal(t, "Auth0 Review", step.SearchResults[0].Title)
	assert.Equal(t, "example.com", step.SearchResults[0].Domain)
}

func TestCompletedStepExtractsArtifacts(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.classification = classifier.Result{
		Integrations: []string{"google_docs"},
		Scores:       map[string]float64{"google_docs": 1.0},
		Method:       classifier.MethodNLP,
		Confidence:   0.9,
	}
	registry.loaded["google_docs"] = []llm.Tool{namedTool("docs.create")}
	registry.results["docs.create"] = `{"documentId": "doc-123", "title": "Q3 Report"}`

	planner := &stubPlanner{response: planOf(llm.PlanStep{Description: "Create the quarterly report document"})}

	chat := &scriptedChat{turns: []chatTurn{
		{reply: toolCallReply("call-1", "docs.create", `{"title": "Q3 Report"}`)},
		{reply: llm.AssistantMessage("Created the Q3 Report document.")},
	}}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Registry: registry, Logger: testLogger()})
	state := newTurnState("thread-1", "create the quarterly report document")

	_, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)

	require.Len(t, state.Artifacts, 1)
	artifact := state.Artifacts[0]
	assert.Equal(t, "document", artifact.Type)
	assert.Equal(t, "doc-123", artifact.ID)
	assert.Equal(t, "Q3 Report", artifact.Name)
	assert.Equal(t, "google_docs", artifact.Integration)
	assert.Equal(t, 1, artifact.TurnNumber)
}

func TestPlannerErrorIsFatal(t *testing.T) {
	t.Parallel()

	planner := &stubPlanner{err: errors.New("model unavailable")}
	chat := &scriptedChat{}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Logger: testLogger()})
	state := newTurnState("thread-1", "do anything")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Zero(t, chat.calls)
}

func TestEmptyPlanEndsImmediately(t *testing.T) {
	t.Parallel()

	planner := &stubPlanner{response: planOf()}
	chat := &scriptedChat{}

	machine := NewMachine(MachineConfig{Chat: chat, Planner: planner, Logger: testLogger()})
	state := newTurnState("thread-1", "nothing to do")

	outcome, err := machine.Run(context.Background(), state, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, outcome)
	assert.True(t, state.Plan.IsComplete)
	assert.Zero(t, chat.calls)
}

func TestInjectArtifactIntegrationsByIdentityKeyword(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	registry.catalog["google_docs"] = &config.Integration{
		DisplayName:      "Google Docs",
		IdentityKeywords: []string{"google doc", "gdoc"},
	}

	machine := NewMachine(MachineConfig{Registry: registry, Logger: testLogger()})

	state := models.NewWorkflowState("thread-1")
	state.TurnNumber = 2
	state.Artifacts = []artifacts.Artifact{
		{Type: "document", Name: "Q3 Report", ID: "doc-1", Integration: "google_docs", TurnNumber: 1},
	}

	r := &run{Machine: machine, state: state}

	selected := r.injectArtifactIntegrations("email the google doc to the team", []string{"gmail"})
	assert.Equal(t, []string{"gmail", "google_docs"}, selected)
}

func TestInjectArtifactIntegrationsByName(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	machine := NewMachine(MachineConfig{Registry: registry, Logger: testLogger()})

	state := models.NewWorkflowState("thread-1")
	state.TurnNumber = 2
	state.Artifacts = []artifacts.Artifact{
		{Type: "page", Name: "Launch Plan", ID: "page-1", Integration: "notion", TurnNumber: 1},
	}

	r := &run{Machine: machine, state: state}

	selected := r.injectArtifactIntegrations("add a section to the launch plan", []string{"web_search"})
	assert.Contains(t, selected, "notion")
}

func TestInjectArtifactIntegrationsContinuationCue(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	machine := NewMachine(MachineConfig{Registry: registry, Logger: testLogger()})

	state := models.NewWorkflowState("thread-1")
	state.TurnNumber = 3
	state.Artifacts = []artifacts.Artifact{
		{Type: "document", Name: "Q3 Report", Integration: "google_docs", TurnNumber: 1},
		{Type: "page", Name: "Notes", Integration: "notion", TurnNumber: 2},
	}

	r := &run{Machine: machine, state: state}

	selected := r.injectArtifactIntegrations("make a similar one for q4", nil)
	assert.ElementsMatch(t, []string{"google_docs", "notion"}, selected)
}

func TestInjectArtifactIntegrationsIgnoresUnreferenced(t *testing.T) {
	t.Parallel()

	registry := newStubRegistry()
	machine := NewMachine(MachineConfig{Registry: registry, Logger: testLogger()})

	state := models.NewWorkflowState("thread-1")
	state.TurnNumber = 2
	state.Artifacts = []artifacts.Artifact{
		{Type: "document", Name: "Q3 Report", Integration: "google_docs", TurnNumber: 1},
	}

	r := &run{Machine: machine, state: state}

	selected := r.injectArtifactIntegrations("what is the weather tomorrow", []string{"web_search"})
	assert.Equal(t, []string{"web_search"}, selected)
}

func TestMissingToolName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  string
		name string
		ok   bool
	}{
		{err: `tool "gmail.send" not found`, name: "gmail.send", ok: true},
		{err: `tool slack_post is unknown`, name: "slack_post", ok: true},
		{err: `unknown tool: docs.create`, name: "docs.create", ok: true},
		{err: "rate limit exceeded", ok: false},
		{err: "connection refused", ok: false},
	}

	for _, tt := range tests {
		name, ok := missingToolName(errors.New(tt.err))
		assert.Equal(t, tt.ok, ok, tt.err)
		assert.Equal(t, tt.name, name, tt.err)
	}
}

func TestFinalSummaryIcons(t *testing.T) {
	t.Parallel()

	plan := &models.WorkflowPlan{
		Steps: []*models.WorkflowStep{
			{StepNumber: 1, Description: "Search", Status: models.StepStatusCompleted, Result: "Found 5 results"},
			{StepNumber: 2, Description: "Send email", Status: models.StepStatusSkipped, Result: "Skipped by user"},
			{StepNumber: 3, Description: "Create doc", Status: models.StepStatusFailed, Error: "quota exceeded"},
		},
	}

	summary := finalSummary(plan)

	assert.Contains(t, summary, "✅ **Workflow Complete!**")
	assert.Contains(t, summary, "✓ Step 1: Search")
	assert.Contains(t, summary, "⏭️ Step 2: Send email")
	assert.Contains(t, summary, "❌ Step 3: Create doc")
	assert.Contains(t, summary, "quota exceeded")
}
