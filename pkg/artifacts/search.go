package artifacts

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/strandworks/strand/pkg/llm"
)

const maxSearchResults = 10

// SearchResult is one structured hit extracted from a search tool's
// output, shaped for direct rendering in a client.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Domain  string `json:"domain"`
	Favicon string `json:"favicon"`
	Date    string `json:"date,omitempty"`
}

// ExtractSearchResults walks a step's messages newest-first and
// returns the structured results of the most recent search tool call,
// capped at maxSearchResults.
func ExtractSearchResults(messages []llm.Message) []SearchResult {
	for i := len(messages) - 1; i >= 0; i-- {
		message := messages[i]
		if message.Role != llm.RoleTool {
			continue
		}

		if results := parseSearchContent(message.Content); len(results) > 0 {
			return results
		}
	}

	return nil
}

func parseSearchContent(content string) []SearchResult {
	trimmed := strings.TrimSpace(content)

	var items []any

	switch {
	case strings.HasPrefix(trimmed, "{"):
		object := map[string]any{}
		if err := json.Unmarshal([]byte(trimmed), &object); err != nil {
			return nil
		}

		nested, ok := object["results"].([]any)
		if !ok {
			return nil
		}

		items = nested
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil
		}
	default:
		return nil
	}

	results := make([]SearchResult, 0, len(items))

	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}

		rawURL, _ := entry["url"].(string)
		if rawURL == "" {
			continue
		}

		result := SearchResult{URL: rawURL, Domain: domainOf(rawURL)}
		result.Favicon = fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=64", result.Domain)

		if title, _ := entry["title"].(string); title != "" {
			result.Title = title
		} else {
			result.Title = result.Domain
		}

		if date, _ := entry["published_date"].(string); date != "" {
			result.Date = date
		} else if date, _ := entry["date"].(string); date != "" {
			result.Date = date
		}

		results = append(results, result)

		if len(results) == maxSearchResults {
			break
		}
	}

	return results
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}

	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
