package artifacts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/strandworks/strand/pkg/llm"
)

const defaultName = "Untitled"

// Field names searched, in order, when resolving a human-readable
// artifact name from tool output.
var nameFields = []string{"title", "name", "subject", "snippet", "summary"}

var (
	rawURLPattern     = regexp.MustCompile(`https?://[^\s<>"')]+`)
	idMarkerPattern   = regexp.MustCompile(`\(ID:\s*([^)]+)\)`)
	quotedNamePattern = regexp.MustCompile(`['"]([^'"]{2,})['"]`)
	namedIDPattern    = regexp.MustCompile(`['"]([^'"]+)['"]\s*\(ID:\s*([^)]+)\)`)
)

// ExtractFromStep mines one step's message span for artifacts. Tool
// outputs in the wild are inconsistent (structured JSON, MCP content
// blocks, prose), so extraction cascades from the strongest signal
// (integration-unique field names) through generic ids with a
// confirming URL field down to URL patterns in plain text. Only when
// all of that finds nothing does it fall back to raw URLs in assistant
// messages. Results are deduplicated by id, or URL when no id exists.
func ExtractFromStep(messages []llm.Message, stepNumber, turnNumber int, integrationHint string) []Artifact {
	extraction := &stepExtraction{
		stepNumber: stepNumber,
		turnNumber: turnNumber,
		hint:       integrationHint,
		seen:       make(map[string]struct{}),
	}

	for i, message := range messages {
		if message.Role != llm.RoleTool {
			continue
		}

		object, text := normalizeContent(message.Content)
		if object != nil {
			extraction.fromJSON(object, messages[:i])

			continue
		}

		if text != "" {
			extraction.fromText(text)
		}
	}

	if len(extraction.found) == 0 {
		extraction.fromAssistantURLs(messages)
	}

	return extraction.found
}

type stepExtraction struct {
	stepNumber int
	turnNumber int
	hint       string
	seen       map[string]struct{}
	found      []Artifact
}

func (e *stepExtraction) add(artifact Artifact) {
	key := artifact.ID
	if key == "" {
		key = artifact.URL
	}

	if key == "" {
		return
	}

	if _, dup := e.seen[key]; dup {
		return
	}

	e.seen[key] = struct{}{}
	e.found = append(e.found, artifact)
}

// fromJSON applies the two JSON passes: unique field names first, then
// a generic "id" backed by a confirming URL field or an explicit hint.
func (e *stepExtraction) fromJSON(object map[string]any, preceding []llm.Message) {
	for i := range extractionRules {
		rule := &extractionRules[i]

		for _, field := range rule.UniqueIDFields {
			id := findStringField(object, field)
			if id == "" {
				continue
			}

			e.add(e.build(rule, object, id, preceding))

			return
		}
	}

	genericID, _ := object["id"].(string)
	if genericID == "" {
		return
	}

	for i := range extractionRules {
		rule := &extractionRules[i]

		for _, field := range rule.URLFields {
			url := findStringField(object, field)
			if url == "" {
				continue
			}

			if rule.URLPattern != nil && !rule.URLPattern.MatchString(url) {
				continue
			}

			e.add(e.build(rule, object, genericID, preceding))

			return
		}
	}

	// A bare "id" with no confirming URL field could come from any
	// service; accept it only when the caller told us the integration.
	if rule := ruleForIntegration(e.hint); rule != nil {
		e.add(e.build(rule, object, genericID, preceding))
	}
}

func (e *stepExtraction) build(rule *extractionRule, object map[string]any, id string, preceding []llm.Message) Artifact {
	artifact := Artifact{
		Type:        rule.Type,
		Name:        findName(object),
		URL:         resolveURL(rule, object, id),
		ID:          id,
		Integration: rule.Integration,
		StepNumber:  e.stepNumber,
		TurnNumber:  e.turnNumber,
		Metadata:    map[string]string{},
	}

	if rule.Integration == "gmail" {
		artifact.Metadata = emailMetadata(preceding)
	}

	return artifact
}

// fromText handles prose tool output, the format stdio MCP servers
// commonly return ("Created Google Doc 'X' (ID: y). Link: <url>").
func (e *stepExtraction) fromText(text string) {
	matched := false

	for i := range extractionRules {
		rule := &extractionRules[i]
		if rule.URLPattern == nil {
			continue
		}

		for _, match := range rule.URLPattern.FindAllStringSubmatch(text, -1) {
			url := match[0]

			id := ""
			if len(match) > 1 {
				id = match[1]
			}

			if id == "" {
				if marker := idMarkerPattern.FindStringSubmatch(text); marker != nil {
					id = strings.TrimSpace(marker[1])
				}
			}

			name := defaultName
			if quoted := quotedNamePattern.FindStringSubmatch(text); quoted != nil {
				name = quoted[1]
			}

			artifact := Artifact{
				Type:        rule.Type,
				Name:        name,
				URL:         url,
				ID:          id,
				Integration: rule.Integration,
				StepNumber:  e.stepNumber,
				TurnNumber:  e.turnNumber,
				Metadata:    map[string]string{},
			}
			if artifact.ID == "" {
				artifact.ID = url
			}

			e.add(artifact)
			matched = true
		}
	}

	if matched || e.hint == "" {
		return
	}

	// "'Name' (ID: xxx)" listings with no URL at all are only trusted
	// when the integration is known from context.
	rule := ruleForIntegration(e.hint)
	if rule == nil {
		return
	}

	for _, match := range namedIDPattern.FindAllStringSubmatch(text, -1) {
		id := strings.TrimSpace(match[2])

		e.add(Artifact{
			Type:        rule.Type,
			Name:        match[1],
			URL:         resolveURL(rule, nil, id),
			ID:          id,
			Integration: rule.Integration,
			StepNumber:  e.stepNumber,
			TurnNumber:  e.turnNumber,
			Metadata:    map[string]string{},
		})
	}
}

// fromAssistantURLs is the weakest signal, used only when the step's
// tool output yielded nothing: any recognizable URL an assistant
// message mentions.
func (e *stepExtraction) fromAssistantURLs(messages []llm.Message) {
	for _, message := range messages {
		if message.Role != llm.RoleAssistant {
			continue
		}

		for _, url := range rawURLPattern.FindAllString(message.Content, -1) {
			rule := classifyURL(url)
			if rule == nil {
				continue
			}

			id := ""
			if match := rule.URLPattern.FindStringSubmatch(url); len(match) > 1 {
				id = match[1]
			}

			e.add(Artifact{
				Type:        rule.Type,
				Name:        defaultName,
				URL:         url,
				ID:          id,
				Integration: rule.Integration,
				StepNumber:  e.stepNumber,
				TurnNumber:  e.turnNumber,
				Metadata:    map[string]string{},
			})
		}
	}
}

// normalizeContent turns tool-result content into either a parsed JSON
// object or plain text. MCP content-block lists are flattened by
// concatenating their text fields.
func normalizeContent(content string) (map[string]any, string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ""
	}

	if strings.HasPrefix(trimmed, "{") {
		object := map[string]any{}
		if err := json.Unmarshal([]byte(trimmed), &object); err == nil {
			return object, ""
		}

		return nil, trimmed
	}

	if strings.HasPrefix(trimmed, "[") {
		var blocks []any
		if err := json.Unmarshal([]byte(trimmed), &blocks); err != nil {
			return nil, trimmed
		}

		texts := make([]string, 0, len(blocks))

		for _, block := range blocks {
			if m, ok := block.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					texts = append(texts, text)
				}
			}
		}

		joined := strings.Join(texts, "\n")
		if strings.HasPrefix(strings.TrimSpace(joined), "{") {
			object := map[string]any{}
			if err := json.Unmarshal([]byte(joined), &object); err == nil {
				return object, ""
			}
		}

		return nil, joined
	}

	return nil, trimmed
}

// findStringField searches for a non-empty string value under key at
// any depth of a decoded JSON value.
func findStringField(value any, key string) string {
	switch typed := value.(type) {
	case map[string]any:
		if s, ok := typed[key].(string); ok && s != "" {
			return s
		}

		for _, nested := range typed {
			if s := findStringField(nested, key); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range typed {
			if s := findStringField(item, key); s != "" {
				return s
			}
		}
	}

	return ""
}

func findName(object map[string]any) string {
	for _, field := range nameFields {
		if name := findStringField(object, field); name != "" {
			return name
		}
	}

	return defaultName
}

func resolveURL(rule *extractionRule, object map[string]any, id string) string {
	if object != nil {
		for _, field := range rule.URLFields {
			if url := findStringField(object, field); url != "" {
				return url
			}
		}
	}

	if rule.URLTemplate != "" && id != "" {
		return fmt.Sprintf(rule.URLTemplate, id)
	}

	return ""
}

// emailMetadata recovers recipient and subject from the assistant
// tool call that triggered the send; the tool result itself only
// carries message and thread ids.
func emailMetadata(preceding []llm.Message) map[string]string {
	metadata := map[string]string{}

	for i := len(preceding) - 1; i >= 0; i-- {
		message := preceding[i]
		if message.Role != llm.RoleAssistant || !message.HasToolCalls() {
			continue
		}

		for _, call := range message.ToolCalls {
			name := strings.ToLower(call.Name)
			if !strings.Contains(name, "gmail") && !strings.Contains(name, "email") && !strings.Contains(name, "send") {
				continue
			}

			arguments := map[string]any{}
			if err := json.Unmarshal([]byte(call.Arguments), &arguments); err != nil {
				continue
			}

			if to := stringArgument(arguments["to"]); to != "" {
				metadata["to"] = to
			}

			if subject := stringArgument(arguments["subject"]); subject != "" {
				metadata["subject"] = subject
			}

			if len(metadata) > 0 {
				return metadata
			}
		}
	}

	return metadata
}

func stringArgument(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case []any:
		parts := make([]string, 0, len(typed))

		for _, item := range typed {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}

		return strings.Join(parts, ", ")
	}

	return ""
}
