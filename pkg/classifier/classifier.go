package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/strandworks/strand/pkg/config"
)

const (
	MethodNLP             = "nlp"
	MethodLLMFallback     = "llm_fallback"
	MethodFallbackDefault = "fallback_default"

	// DefaultIntegration is the last-resort selection when both
	// scoring and the LLM fallback come up empty.
	DefaultIntegration = "web_search"
)

// Thresholds are the empirically tuned cutoffs of the scorer. They do
// not necessarily generalize to a new integration catalog without
// re-tuning, so they are injectable rather than hard-coded.
type Thresholds struct {
	HighConfidence     float64 // minimum normalized score for selection
	AbsoluteMinimum    float64 // raw score that selects regardless of normalization
	FallbackConfidence float64 // below this overall confidence the LLM fallback runs
	AmbiguityRatio     float64 // top-2 raw score ratio that counts as ambiguous
	FuzzyCutoff        int     // minimum partial-ratio for a phrase to contribute
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighConfidence:     0.35,
		AbsoluteMinimum:    1.5,
		FallbackConfidence: 0.3,
		AmbiguityRatio:     0.8,
		FuzzyCutoff:        75,
	}
}

// Result is what classification always returns; no code path errors
// out to the caller.
type Result struct {
	Integrations []string           `json:"integrations"`
	Scores       map[string]float64 `json:"scores"`
	Method       string             `json:"method"`
	Confidence   float64            `json:"confidence"`
}

// FallbackModel is the LLM capability the phase-2 path needs.
type FallbackModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type integrationIndex struct {
	name        string
	description string
	rawKeywords map[string]struct{}
	stemKeyword map[string]struct{}
	phrases     []string
	patterns    []*regexp.Regexp
}

// IntegrationClassifier holds the index derived from the integration
// catalog. Scoring is stateless and safe under unlimited concurrency;
// the index is rebuilt only when configuration reloads.
type IntegrationClassifier struct {
	indexes    []*integrationIndex
	thresholds Thresholds
	fallback   FallbackModel
	logger     *slog.Logger
}

var tokenPattern = regexp.MustCompile(`[a-z]+`)

// Tokens harvested from legacy regex patterns skip these.
var harvestStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {},
	"this": {}, "that": {}, "your": {}, "are": {}, "was": {}, "were": {},
}

// New builds the classification index from catalog. fallback may be
// nil, which disables the phase-2 path entirely.
func New(catalog *config.Config, thresholds Thresholds, fallback FallbackModel, logger *slog.Logger) *IntegrationClassifier {
	classifier := &IntegrationClassifier{
		thresholds: thresholds,
		fallback:   fallback,
		logger:     logger,
	}

	names := catalog.Names()
	sort.Strings(names)

	for _, name := range names {
		integration := catalog.Integrations[name]

		index := &integrationIndex{
			name:        name,
			description: integration.Description,
			rawKeywords: make(map[string]struct{}),
			stemKeyword: make(map[string]struct{}),
			phrases:     integration.Phrases,
		}

		keywords := integration.Keywords
		if len(keywords) == 0 {
			keywords = harvestKeywords(integration.RequestPatterns)
		}

		for _, keyword := range keywords {
			lowered := strings.ToLower(keyword)
			index.rawKeywords[lowered] = struct{}{}
			index.stemKeyword[Stem(lowered)] = struct{}{}
		}

		for _, pattern := range integration.RequestPatterns {
			compiled, err := regexp.Compile(`(?i)` + pattern)
			if err != nil {
				logger.Warn("Skipping invalid request pattern",
					"integration", name, "pattern", pattern, "error", err)

				continue
			}

			index.patterns = append(index.patterns, compiled)
		}

		classifier.indexes = append(classifier.indexes, index)
	}

	return classifier
}

// harvestKeywords extracts alphabetic tokens from legacy regex
// patterns for integrations that configure no explicit keyword list.
func harvestKeywords(patterns []string) []string {
	seen := make(map[string]struct{})
	keywords := make([]string, 0)

	for _, pattern := range patterns {
		for _, token := range tokenPattern.FindAllString(strings.ToLower(pattern), -1) {
			if len(token) < 2 {
				continue
			}

			if _, stop := harvestStopwords[token]; stop {
				continue
			}

			if _, dup := seen[token]; dup {
				continue
			}

			seen[token] = struct{}{}
			keywords = append(keywords, token)
		}
	}

	return keywords
}

// Classify runs instant phase-1 scoring. It never errors and never
// calls out of process.
func (c *IntegrationClassifier) Classify(request string) Result {
	lowered := strings.ToLower(request)
	tokens := tokenPattern.FindAllString(lowered, -1)

	result := Result{
		Integrations: []string{},
		Scores:       map[string]float64{},
		Method:       MethodNLP,
	}

	if len(tokens) == 0 {
		return result
	}

	rawSet := make(map[string]struct{}, len(tokens))
	stemSet := make(map[string]struct{}, len(tokens))

	for _, token := range tokens {
		rawSet[token] = struct{}{}
		stemSet[Stem(token)] = struct{}{}
	}

	rawScores := make(map[string]float64, len(c.indexes))
	maxScore := 0.0

	for _, index := range c.indexes {
		score := c.scoreIntegration(index, lowered, rawSet, stemSet)
		rawScores[index.name] = score

		if score > maxScore {
			maxScore = score
		}
	}

	if maxScore == 0 {
		return result
	}

	for _, index := range c.indexes {
		raw := rawScores[index.name]
		if raw == 0 {
			continue
		}

		normalized := raw / maxScore
		result.Scores[index.name] = normalized

		if normalized >= c.thresholds.HighConfidence || raw >= c.thresholds.AbsoluteMinimum {
			result.Integrations = append(result.Integrations, index.name)
		}
	}

	sort.Slice(result.Integrations, func(i, j int) bool {
		left, right := result.Integrations[i], result.Integrations[j]
		if rawScores[left] != rawScores[right] {
			return rawScores[left] > rawScores[right]
		}

		return left < right
	})

	result.Confidence = math.Min(maxScore/5.0, 1.0)

	return result
}

func (c *IntegrationClassifier) scoreIntegration(index *integrationIndex, request string, rawSet, stemSet map[string]struct{}) float64 {
	score := 0.0

	exactStems := make(map[string]struct{})
	for keyword := range index.rawKeywords {
		if _, exact := rawSet[keyword]; exact {
			score += 1.5
			exactStems[Stem(keyword)] = struct{}{}
		}
	}

	// Stem matches count once per distinct stem; a stem already claimed
	// by an exact match never earns the extra point, so singular/plural
	// keyword pairs score as one hit.
	for stem := range index.stemKeyword {
		if _, covered := exactStems[stem]; covered {
			continue
		}

		if _, stemmed := stemSet[stem]; stemmed {
			score += 1.0
		}
	}

	for _, pattern := range index.patterns {
		if pattern.MatchString(request) {
			score += 1.0

			break
		}
	}

	best := 0
	for _, phrase := range index.phrases {
		if ratio := fuzzy.PartialRatio(request, strings.ToLower(phrase)); ratio > best {
			best = ratio
		}
	}

	if best >= c.thresholds.FuzzyCutoff {
		score += float64(best) / 100.0 * 1.5
	}

	return score
}

// ClassifyWithFallback runs phase 1 and escalates to the LLM when the
// result is empty, low-confidence or ambiguous. LLM failures are
// logged and swallowed: the caller always receives a usable Result.
func (c *IntegrationClassifier) ClassifyWithFallback(ctx context.Context, request string) Result {
	phase1 := c.Classify(request)

	needsFallback := len(phase1.Integrations) == 0 ||
		phase1.Confidence < c.thresholds.FallbackConfidence ||
		c.isAmbiguous(phase1)
	if !needsFallback || c.fallback == nil {
		if len(phase1.Integrations) > 0 {
			return phase1
		}

		return c.defaultResult()
	}

	selected, err := c.classifyWithLLM(ctx, request)
	if err != nil {
		c.logger.Warn("LLM classification fallback failed", "error", err)
	}

	if len(selected) > 0 {
		scores := make(map[string]float64, len(selected))
		for _, name := range selected {
			scores[name] = 1.0
		}

		return Result{
			Integrations: selected,
			Scores:       scores,
			Method:       MethodLLMFallback,
			Confidence:   0.9,
		}
	}

	if len(phase1.Integrations) > 0 {
		return phase1
	}

	return c.defaultResult()
}

// isAmbiguous reports whether the top two raw candidates are too close
// to trust. A zero top score always counts as ambiguous.
func (c *IntegrationClassifier) isAmbiguous(result Result) bool {
	if len(result.Scores) < 2 {
		return false
	}

	scores := make([]float64, 0, len(result.Scores))
	for _, score := range result.Scores {
		scores = append(scores, score)
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	if scores[0] == 0 {
		return true
	}

	return scores[1]/scores[0] >= c.thresholds.AmbiguityRatio
}

func (c *IntegrationClassifier) classifyWithLLM(ctx context.Context, request string) ([]string, error) {
	var catalog strings.Builder
	known := make(map[string]struct{}, len(c.indexes))

	for _, index := range c.indexes {
		known[index.name] = struct{}{}
		fmt.Fprintf(&catalog, "- %s: %s\n", index.name, index.description)
	}

	systemPrompt := "You route user requests to integrations. Reply with a JSON array " +
		"of integration names only, e.g. [\"gmail\"]. Use only names from the list. " +
		"Reply with [] if none apply."
	userPrompt := fmt.Sprintf("Available integrations:\n%s\nRequest: %s", catalog.String(), request)

	response, err := c.fallback.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("fallback completion: %w", err)
	}

	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var names []string
	if err := json.Unmarshal([]byte(cleaned), &names); err != nil {
		return nil, fmt.Errorf("failed to parse fallback response %q: %w", cleaned, err)
	}

	selected := make([]string, 0, len(names))

	for _, name := range names {
		if _, ok := known[strings.ToLower(name)]; ok {
			selected = append(selected, strings.ToLower(name))
		}
	}

	return selected, nil
}

func (c *IntegrationClassifier) defaultResult() Result {
	return Result{
		Integrations: []string{DefaultIntegration},
		Scores:       map[string]float64{DefaultIntegration: 0.1},
		Method:       MethodFallbackDefault,
		Confidence:   0.1,
	}
}
