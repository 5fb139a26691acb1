package artifacts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand/pkg/llm"
)

func TestSummaryEmptyForSingleTurn(t *testing.T) {
	t.Parallel()

	messages := []llm.Message{llm.UserMessage("hello")}

	assert.Empty(t, BuildConversationSummary(messages, nil))
	assert.Empty(t, BuildConversationSummary(messages, []Artifact{{Type: "document", Name: "Doc", TurnNumber: 1}}))
}

func TestSummaryRendersStructuredArtifacts(t *testing.T) {
	t.Parallel()

	messages := []llm.Message{
		llm.UserMessage("Create a Google Doc about frameworks"),
		llm.AssistantMessage("Workflow Complete! Created the document."),
		llm.UserMessage("Mail it to test@example.com"),
	}
	all := []Artifact{{
		Type:        "document",
		Name:        "Frameworks Research",
		URL:         "https://docs.google.com/document/d/abc123/edit",
		ID:          "abc123",
		Integration: "google_docs",
		StepNumber:  1,
		TurnNumber:  1,
	}}

	summary := BuildConversationSummary(messages, all)

	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "Turn 1")
	assert.Contains(t, summary, "ARTIFACTS CREATED:")
	assert.Contains(t, summary, `[document] "Frameworks Research"`)
	assert.Contains(t, summary, "URL: https://docs.google.com/document/d/abc123/edit")
	assert.Contains(t, summary, "ID: abc123")
	assert.Contains(t, summary, "Outcome: SUCCESS")
}

func TestSummaryFallsBackToRawURLs(t *testing.T) {
	t.Parallel()

	messages := []llm.Message{
		llm.UserMessage("Create a doc"),
		llm.AssistantMessage("Created: https://docs.google.com/document/d/old123/edit"),
		llm.UserMessage("Now mail it"),
	}

	summary := BuildConversationSummary(messages, nil)

	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "Artifacts/URLs:")
	assert.Contains(t, summary, "docs.google.com/document/d/old123/edit")
}

func TestSummaryRendersMetadata(t *testing.T) {
	t.Parallel()

	messages := []llm.Message{
		llm.UserMessage("Send email"),
		llm.AssistantMessage("Workflow Complete! Email sent."),
		llm.UserMessage("Now do something else"),
	}
	all := []Artifact{{
		Type:        "email",
		Name:        "Sent email",
		ID:          "msg_123",
		Integration: "gmail",
		StepNumber:  1,
		TurnNumber:  1,
		Metadata:    map[string]string{"to": "user@example.com", "subject": "Hello"},
	}}

	summary := BuildConversationSummary(messages, all)

	assert.Contains(t, summary, "to: user@example.com")
	assert.Contains(t, summary, "subject: Hello")
}

func TestSummaryMarksFailedTurns(t *testing.T) {
	t.Parallel()

	messages := []llm.Message{
		llm.UserMessage("Send the report"),
		llm.AssistantMessage("I was unable to send the report because the recipient address is invalid."),
		llm.UserMessage("Try again"),
	}

	summary := BuildConversationSummary(messages, nil)

	assert.Contains(t, summary, "Outcome: FAILED")
}

func TestFormatContext(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatContext(nil))

	all := []Artifact{
		{
			Type: "document", Name: "My Doc",
			URL: "https://docs.google.com/document/d/abc/edit", ID: "abc",
			Integration: "google_docs", StepNumber: 1, TurnNumber: 1,
		},
		{
			Type: "email", Name: "Sent email", ID: "msg1",
			Integration: "gmail", StepNumber: 2, TurnNumber: 1,
			Metadata: map[string]string{"to": "user@test.com"},
		},
	}

	context := FormatContext(all)

	assert.Contains(t, context, "AVAILABLE ARTIFACTS")
	assert.Contains(t, context, `[document] "My Doc"`)
	assert.Contains(t, context, "URL: https://docs.google.com/document/d/abc/edit")
	assert.Contains(t, context, "ID: abc")
	assert.Contains(t, context, "step 1, turn 1")
	assert.Contains(t, context, `[email] "Sent email"`)
	assert.Contains(t, context, "to: user@test.com")
}

func TestFormatContextOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	context := FormatContext([]Artifact{{
		Type: "email", Name: "Draft", Integration: "gmail", StepNumber: 1, TurnNumber: 1,
	}})

	assert.NotContains(t, context, "URL:")
	assert.NotContains(t, context, "ID:")
}

func TestFormatResourceIDs(t *testing.T) {
	t.Parallel()

	all := []Artifact{
		{Type: "document", Name: "Research", ID: "doc1", URL: "https://docs.google.com/document/d/doc1/edit", StepNumber: 1, TurnNumber: 1},
		{Type: "email", Name: "Notification", StepNumber: 2, TurnNumber: 1},
		{Type: "page", Name: "Later", ID: "p1", StepNumber: 3, TurnNumber: 1},
	}

	rendered := FormatResourceIDs(all, 3, 1)

	assert.Contains(t, rendered, "EXACT RESOURCE IDS")
	assert.Contains(t, rendered, "ID doc1")
	assert.NotContains(t, rendered, "Notification", "artifacts without id or url are skipped")
	assert.NotContains(t, rendered, "Later", "current and future steps are excluded")

	assert.Empty(t, FormatResourceIDs(nil, 1, 1))
}
