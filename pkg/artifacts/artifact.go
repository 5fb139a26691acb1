// Package artifacts mines workflow step messages for structured
// records of the resources tools created or touched (documents,
// emails, pages, events, files) and renders them into prompt context
// so later turns can refer back to them by id instead of memory.
package artifacts

// Artifact is one resource touched by a workflow step.
type Artifact struct {
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	URL         string            `json:"url,omitempty"`
	ID          string            `json:"id,omitempty"`
	Integration string            `json:"integration"`
	StepNumber  int               `json:"step_number"`
	TurnNumber  int               `json:"turn_number"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Merge accumulates newly extracted artifacts onto the existing set.
// It is strictly additive: an empty new set never erases history.
func Merge(existing, extracted []Artifact) []Artifact {
	if len(extracted) == 0 {
		return existing
	}

	if len(existing) == 0 {
		return extracted
	}

	merged := make([]Artifact, 0, len(existing)+len(extracted))
	merged = append(merged, existing...)
	merged = append(merged, extracted...)

	return merged
}
