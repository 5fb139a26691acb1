package artifacts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strandworks/strand/pkg/llm"
)

const (
	completionMarker = "Workflow Complete"
	maxOutcomeLength = 300
	maxRequestLength = 200
	maxFallbackURLs  = 5
	minOutcomeLength = 50
)

var failureWords = []string{"can't", "cannot", "failed", "error", "unable"}

// BuildConversationSummary renders prior turns into a condensed,
// turn-indexed history for planning prompts. The structured artifact
// records are the authoritative source; scraping raw URLs from
// assistant text is only a degraded fallback for turns recorded before
// artifacts existed. Returns "" when there is no prior turn.
func BuildConversationSummary(messages []llm.Message, all []Artifact) string {
	userIndexes := make([]int, 0)

	for i, message := range messages {
		if message.Role == llm.RoleUser {
			userIndexes = append(userIndexes, i)
		}
	}

	if len(userIndexes) <= 1 {
		return ""
	}

	var summary strings.Builder

	summary.WriteString("PREVIOUS CONVERSATION HISTORY:\n")

	for turn := 1; turn < len(userIndexes); turn++ {
		start := userIndexes[turn-1]
		end := userIndexes[turn]
		span := messages[start+1 : end]

		request := truncate(messages[start].Content, maxRequestLength)
		outcome := turnOutcome(span)

		status := "SUCCESS"
		if containsFailureWord(outcome) {
			status = "FAILED"
		}

		fmt.Fprintf(&summary, "\nTurn %d: %s\n", turn, request)
		fmt.Fprintf(&summary, "Outcome: %s - %s\n", status, truncate(outcome, maxOutcomeLength))

		turnArtifacts := filterByTurn(all, turn)
		if len(turnArtifacts) > 0 {
			summary.WriteString("ARTIFACTS CREATED:\n")

			for _, artifact := range turnArtifacts {
				writeArtifact(&summary, artifact)
			}

			continue
		}

		if urls := spanURLs(span); len(urls) > 0 {
			summary.WriteString("Artifacts/URLs:\n")

			for _, url := range urls {
				fmt.Fprintf(&summary, "- %s\n", url)
			}
		}
	}

	return summary.String()
}

func turnOutcome(span []llm.Message) string {
	lastLong := ""

	for _, message := range span {
		if message.Role != llm.RoleAssistant || message.Content == "" {
			continue
		}

		if strings.Contains(message.Content, completionMarker) {
			return message.Content
		}

		if len(message.Content) > minOutcomeLength {
			lastLong = message.Content
		}
	}

	if lastLong != "" {
		return lastLong
	}

	return "(no recorded outcome)"
}

func containsFailureWord(text string) bool {
	lowered := strings.ToLower(text)

	for _, word := range failureWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}

	return false
}

func filterByTurn(all []Artifact, turn int) []Artifact {
	filtered := make([]Artifact, 0)

	for _, artifact := range all {
		if artifact.TurnNumber == turn {
			filtered = append(filtered, artifact)
		}
	}

	return filtered
}

func spanURLs(span []llm.Message) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0)

	for _, message := range span {
		if message.Role != llm.RoleAssistant {
			continue
		}

		for _, url := range rawURLPattern.FindAllString(message.Content, -1) {
			if _, dup := seen[url]; dup {
				continue
			}

			seen[url] = struct{}{}
			urls = append(urls, url)

			if len(urls) == maxFallbackURLs {
				return urls
			}
		}
	}

	return urls
}

func writeArtifact(builder *strings.Builder, artifact Artifact) {
	fmt.Fprintf(builder, "- [%s] %q\n", artifact.Type, artifact.Name)

	if artifact.URL != "" {
		fmt.Fprintf(builder, "  URL: %s\n", artifact.URL)
	}

	if artifact.ID != "" {
		fmt.Fprintf(builder, "  ID: %s\n", artifact.ID)
	}

	fmt.Fprintf(builder, "  integration: %s\n", artifact.Integration)

	writeMetadata(builder, artifact.Metadata)
}

func writeMetadata(builder *strings.Builder, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		fmt.Fprintf(builder, "  %s: %s\n", key, metadata[key])
	}
}

// FormatContext renders the accumulated artifacts for planner and
// executor prompts.
func FormatContext(all []Artifact) string {
	if len(all) == 0 {
		return ""
	}

	var context strings.Builder

	context.WriteString("AVAILABLE ARTIFACTS (from previous steps and turns):\n")

	for _, artifact := range all {
		fmt.Fprintf(&context, "- [%s] %q (%s, step %d, turn %d)\n",
			artifact.Type, artifact.Name, artifact.Integration,
			artifact.StepNumber, artifact.TurnNumber)

		if artifact.URL != "" {
			fmt.Fprintf(&context, "  URL: %s\n", artifact.URL)
		}

		if artifact.ID != "" {
			fmt.Fprintf(&context, "  ID: %s\n", artifact.ID)
		}

		writeMetadata(&context, artifact.Metadata)
	}

	return context.String()
}

// FormatResourceIDs lists the exact identifiers earlier steps already
// produced so the executor reuses them instead of asking the user or
// inventing lookups. Only artifacts from steps before currentStep (or
// from prior turns) qualify.
func FormatResourceIDs(all []Artifact, currentStep, currentTurn int) string {
	lines := make([]string, 0)

	for _, artifact := range all {
		if artifact.TurnNumber == currentTurn && artifact.StepNumber >= currentStep {
			continue
		}

		if artifact.ID == "" && artifact.URL == "" {
			continue
		}

		line := fmt.Sprintf("- %q (%s)", artifact.Name, artifact.Type)

		if artifact.ID != "" {
			line += ": ID " + artifact.ID
		}

		if artifact.URL != "" {
			line += ", URL " + artifact.URL
		}

		lines = append(lines, line)
	}

	if len(lines) == 0 {
		return ""
	}

	return "EXACT RESOURCE IDS (reuse these, never ask for them again):\n" + strings.Join(lines, "\n")
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	return text[:limit] + "..."
}
