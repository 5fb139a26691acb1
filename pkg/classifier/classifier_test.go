package classifier

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandworks/strand/pkg/config"
)

func testCatalog() *config.Config {
	return &config.Config{
		Integrations: map[string]*config.Integration{
			"web_search": {
				Name:        "web_search",
				DisplayName: "Web Search",
				Description: "Web search and research",
				Keywords:    []string{"search", "find", "research", "latest", "current", "compare", "best", "top"},
				Phrases:     []string{"search the web", "find information about", "what is"},
				RequestPatterns: []string{
					`\b(search|find|research)\b`,
					`\b(what|who|when|where|why|how)\s+(is|are|was|were)\b`,
				},
			},
			"gmail": {
				Name:             "gmail",
				DisplayName:      "Gmail",
				Description:      "Email operations via Gmail",
				Keywords:         []string{"email", "emails", "mail", "gmail", "send", "draft", "inbox", "recipient"},
				Phrases:          []string{"send an email", "check my inbox", "reach out to"},
				RequestPatterns:  []string{`\b(email|mail|gmail|send|inbox)\b`},
				IdentityKeywords: []string{"gmail", "email", "mail"},
			},
			"google_docs": {
				Name:             "google_docs",
				DisplayName:      "Google Docs",
				Description:      "Document creation and editing via Google Docs",
				Keywords:         []string{"doc", "docs", "document", "documents", "memo", "writeup", "write", "report"},
				Phrases:          []string{"create a document", "write a report", "draft a memo"},
				RequestPatterns:  []string{`\b(doc|document|write)\b`},
				IdentityKeywords: []string{"google doc", "google docs", "gdoc"},
			},
			"google_calendar": {
				Name:             "google_calendar",
				DisplayName:      "Google Calendar",
				Description:      "Calendar management via Google Calendar",
				Keywords:         []string{"calendar", "schedule", "meeting", "meetings", "event", "appointment"},
				Phrases:          []string{"schedule a meeting", "check my calendar"},
				RequestPatterns:  []string{`\b(calendar|schedule|meeting|event)\b`},
				IdentityKeywords: []string{"google calendar", "calendar"},
			},
		},
	}
}

func testClassifier(fallback FallbackModel) *IntegrationClassifier {
	return New(testCatalog(), DefaultThresholds(), fallback, slog.Default())
}

type stubFallback struct {
	response string
	err      error
	calls    int
}

func (s *stubFallback) Complete(_ context.Context, _, _ string) (string, error) {
	s.calls++

	return s.response, s.err
}

func TestClassifyExactKeyword(t *testing.T) {
	t.Parallel()

	result := testClassifier(nil).Classify("send an email to the team")

	require.NotEmpty(t, result.Integrations)
	assert.Contains(t, result.Integrations, "gmail")
	assert.Equal(t, "gmail", result.Integrations[0])
	assert.Equal(t, MethodNLP, result.Method)
	assert.InDelta(t, 1.0, result.Scores["gmail"], 0.001, "top candidate normalizes to 1")
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
}

func TestClassifySingularPluralEquivalent(t *testing.T) {
	t.Parallel()

	classifier := testClassifier(nil)

	singular := classifier.Classify("create a google document")
	plural := classifier.Classify("create a google documents")

	assert.Contains(t, singular.Integrations, "google_docs")
	assert.Contains(t, plural.Integrations, "google_docs")
	assert.ElementsMatch(t, singular.Integrations, plural.Integrations)
}

func TestClassifySharedStemKeywordsScoreOnce(t *testing.T) {
	t.Parallel()

	catalog := &config.Config{
		Integrations: map[string]*config.Integration{
			"gmail": {
				Name:        "gmail",
				DisplayName: "Gmail",
				Description: "Email operations via Gmail",
				Keywords:    []string{"email", "emails"},
			},
		},
	}
	classifier := New(catalog, DefaultThresholds(), nil, slog.Default())

	result := classifier.Classify("send an email")

	// "email" matches exactly for 1.5; "emails" reduces to the same
	// stem and must not add a stem point on top of the exact match.
	assert.Equal(t, []string{"gmail"}, result.Integrations)
	assert.InDelta(t, 0.3, result.Confidence, 0.001)
}

func TestClassifyEmptyRequest(t *testing.T) {
	t.Parallel()

	result := testClassifier(nil).Classify("")

	assert.Empty(t, result.Integrations)
	assert.Empty(t, result.Scores)
	assert.Zero(t, result.Confidence)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	t.Parallel()

	classifier := testClassifier(nil)

	upper := classifier.Classify("SEND AN EMAIL")
	title := classifier.Classify("Send An Email")
	lower := classifier.Classify("send an email")

	assert.Equal(t, lower.Integrations, upper.Integrations)
	assert.Equal(t, lower.Integrations, title.Integrations)
}

func TestClassifyNormalizedScoreRange(t *testing.T) {
	t.Parallel()

	classifier := testClassifier(nil)

	requests := []string{
		"send an email to the team",
		"search for the best project management tools",
		"schedule a meeting and write a report about it",
	}

	for _, request := range requests {
		result := classifier.Classify(request)
		for name, score := range result.Scores {
			assert.GreaterOrEqual(t, score, 0.0, "%s score for %q", name, request)
			assert.LessOrEqual(t, score, 1.0, "%s score for %q", name, request)
		}
	}
}

func TestClassifyMultiIntegrationRequest(t *testing.T) {
	t.Parallel()

	result := testClassifier(nil).Classify(
		"search for venues, schedule a meeting and email the invite")

	assert.Contains(t, result.Integrations, "web_search")
	assert.Contains(t, result.Integrations, "google_calendar")
	assert.Contains(t, result.Integrations, "gmail")
}

func TestClassifyWithFallbackSkipsLLMWhenConfident(t *testing.T) {
	t.Parallel()

	fallback := &stubFallback{response: `["google_docs"]`}
	classifier := testClassifier(fallback)

	result := classifier.ClassifyWithFallback(context.Background(), "send an email to bob@example.com about the inbox cleanup")

	assert.Equal(t, MethodNLP, result.Method)
	assert.Contains(t, result.Integrations, "gmail")
}

func TestClassifyWithFallbackUsesLLMForVagueRequest(t *testing.T) {
	t.Parallel()

	fallback := &stubFallback{response: "```json\n[\"gmail\"]\n```"}
	classifier := testClassifier(fallback)

	result := classifier.ClassifyWithFallback(context.Background(), "ping bob about that thing")

	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, MethodLLMFallback, result.Method)
	assert.Equal(t, []string{"gmail"}, result.Integrations)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
}

func TestClassifyWithFallbackFiltersUnknownNames(t *testing.T) {
	t.Parallel()

	fallback := &stubFallback{response: `["gmail", "made_up_service"]`}
	classifier := testClassifier(fallback)

	result := classifier.ClassifyWithFallback(context.Background(), "ping bob about that thing")

	assert.Equal(t, []string{"gmail"}, result.Integrations)
}

func TestClassifyWithFallbackLLMErrorNeverPropagates(t *testing.T) {
	t.Parallel()

	fallback := &stubFallback{err: errors.New("rate limited")}
	classifier := testClassifier(fallback)

	result := classifier.ClassifyWithFallback(context.Background(), "zzzz qqqq wwww")

	assert.Equal(t, MethodFallbackDefault, result.Method)
	assert.Equal(t, []string{DefaultIntegration}, result.Integrations)
	assert.InDelta(t, 0.1, result.Confidence, 0.001)
}

func TestClassifyWithFallbackNoModelFallsBackToDefault(t *testing.T) {
	t.Parallel()

	result := testClassifier(nil).ClassifyWithFallback(context.Background(), "zzzz qqqq wwww")

	assert.Equal(t, MethodFallbackDefault, result.Method)
	assert.Equal(t, []string{DefaultIntegration}, result.Integrations)
}
