package artifacts

import "regexp"

// extractionRule describes how one integration's tool output maps to
// an artifact. UniqueIDFields are field names that by themselves
// identify the integration; URLFields confirm a generic "id" field;
// URLTemplate synthesizes a link when the output carries only an id;
// URLPattern recognizes the integration's links in plain text.
type extractionRule struct {
	Integration    string
	Type           string
	UniqueIDFields []string
	URLFields      []string
	URLTemplate    string
	URLPattern     *regexp.Regexp
}

// Order matters: unique-field rules are tried before rules that rely
// on a generic id, and notion's catch-all "url" confirmation comes
// last.
var extractionRules = []extractionRule{
	{
		Integration:    "google_docs",
		Type:           "document",
		UniqueIDFields: []string{"documentId"},
		URLFields:      []string{"documentUrl"},
		URLTemplate:    "https://docs.google.com/document/d/%s/edit",
		URLPattern:     regexp.MustCompile(`https://docs\.google\.com/document/d/([A-Za-z0-9_-]+)(?:/[^\s)"'<>]*)?`),
	},
	{
		Integration:    "google_sheets",
		Type:           "spreadsheet",
		UniqueIDFields: []string{"spreadsheetId"},
		URLFields:      []string{"spreadsheetUrl"},
		URLTemplate:    "https://docs.google.com/spreadsheets/d/%s/edit",
		URLPattern:     regexp.MustCompile(`https://docs\.google\.com/spreadsheets/d/([A-Za-z0-9_-]+)(?:/[^\s)"'<>]*)?`),
	},
	{
		Integration:    "google_slides",
		Type:           "presentation",
		UniqueIDFields: []string{"presentationId"},
		URLFields:      []string{"presentationUrl"},
		URLTemplate:    "https://docs.google.com/presentation/d/%s/edit",
		URLPattern:     regexp.MustCompile(`https://docs\.google\.com/presentation/d/([A-Za-z0-9_-]+)(?:/[^\s)"'<>]*)?`),
	},
	{
		Integration: "google_drive",
		Type:        "file",
		URLFields:   []string{"webViewLink"},
		URLPattern:  regexp.MustCompile(`https://drive\.google\.com/file/d/([A-Za-z0-9_-]+)(?:/[^\s)"'<>]*)?`),
	},
	{
		Integration: "google_calendar",
		Type:        "event",
		URLFields:   []string{"htmlLink"},
		URLPattern:  regexp.MustCompile(`https://calendar\.google\.com/[^\s)"'<>]+`),
	},
	{
		// Gmail results carry only a generic id and no link, so they
		// are accepted through an explicit integration hint alone.
		Integration: "gmail",
		Type:        "email",
	},
	{
		Integration: "notion",
		Type:        "page",
		URLFields:   []string{"url"},
		URLPattern:  regexp.MustCompile(`https://(?:www\.)?notion\.so/[^\s)"'<>]+`),
	},
}

func ruleForIntegration(integration string) *extractionRule {
	for i := range extractionRules {
		if extractionRules[i].Integration == integration {
			return &extractionRules[i]
		}
	}

	return nil
}

// classifyURL maps a bare URL to the rule that recognizes it.
func classifyURL(url string) *extractionRule {
	for i := range extractionRules {
		rule := &extractionRules[i]
		if rule.URLPattern != nil && rule.URLPattern.MatchString(url) {
			return rule
		}
	}

	return nil
}
