package workflow

import (
	"strings"

	"github.com/strandworks/strand/pkg/artifacts"
)

// continuationCues are generic back-references ("make a similar one")
// that pull in every prior-turn artifact integration, since the
// request gives no way to tell which resource it means.
var continuationCues = []string{"similar", "same", "based on", "like before", "like the last"}

// injectArtifactIntegrations widens the classified integration set
// with integrations that produced prior-turn artifacts the request
// references, either explicitly (identity keywords, artifact name) or
// through a continuation cue. Unreferenced artifact integrations are
// never injected. When both a continuation cue and a specific
// reference appear, the cue wins and everything prior is injected.
func (r *run) injectArtifactIntegrations(request string, classified []string) []string {
	selected := make([]string, 0, len(classified))
	for _, name := range classified {
		selected = appendUnique(selected, name)
	}

	lower := strings.ToLower(request)
	continuation := containsAny(lower, continuationCues)

	for _, artifact := range r.state.Artifacts {
		if artifact.TurnNumber >= r.state.TurnNumber {
			continue
		}

		if artifact.Integration == "" || artifact.Integration == "unknown" {
			continue
		}

		if continuation || r.referencesArtifact(lower, artifact) {
			selected = appendUnique(selected, artifact.Integration)
		}
	}

	return selected
}

// referencesArtifact reports whether the request names the artifact's
// integration directly or mentions the artifact by name.
func (r *run) referencesArtifact(lowerRequest string, artifact artifacts.Artifact) bool {
	if integration, ok := r.registrationFor(artifact.Integration); ok {
		for _, keyword := range integration.IdentityKeywords {
			if keyword != "" && strings.Contains(lowerRequest, strings.ToLower(keyword)) {
				return true
			}
		}
	}

	name := strings.ToLower(artifact.Name)
	if name != "" && name != "untitled" && len(name) > 3 && strings.Contains(lowerRequest, name) {
		return true
	}

	return false
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}

	return false
}
