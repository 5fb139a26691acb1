// Package classifier selects the integrations a user request needs.
// Phase 1 is instant lexical scoring over stemmed keywords, fuzzy
// phrases and legacy regex patterns; phase 2 is an LLM fallback used
// only when phase 1 is empty, low-confidence or ambiguous.
package classifier

import "strings"

type suffixRule struct {
	suffix  string
	minStem int
}

// Inflectional suffixes only. Derivational suffixes (-tion, -ment,
// -ness, -able, -ive) are deliberately absent: stripping them makes
// singular and plural forms of the same noun diverge ("document" must
// never become "docu" while "documents" becomes "document").
var suffixRules = []suffixRule{
	{suffix: "ing", minStem: 5},
	{suffix: "ed", minStem: 3},
	{suffix: "ly", minStem: 3},
}

// Stem maps a word to a normalized root so that singular/plural and
// common verb inflections converge. Pure and case-insensitive; rules
// apply in order, first match wins.
func Stem(word string) string {
	stemmed := strings.ToLower(word)

	if len(stemmed) <= 3 {
		return stemmed
	}

	if len(stemmed) > 4 && strings.HasSuffix(stemmed, "ies") {
		return stemmed[:len(stemmed)-3] + "y"
	}

	if len(stemmed) > 4 && strings.HasSuffix(stemmed, "ied") {
		return stemmed[:len(stemmed)-3] + "y"
	}

	if strings.HasSuffix(stemmed, "sses") {
		return stemmed[:len(stemmed)-2]
	}

	if len(stemmed) > 4 && strings.HasSuffix(stemmed, "es") && endsInSibilant(stemmed[:len(stemmed)-2]) {
		return stemmed[:len(stemmed)-2]
	}

	for _, rule := range suffixRules {
		if strings.HasSuffix(stemmed, rule.suffix) && len(stemmed)-len(rule.suffix) >= rule.minStem {
			return stemmed[:len(stemmed)-len(rule.suffix)]
		}
	}

	if len(stemmed) > 3 && strings.HasSuffix(stemmed, "s") && !strings.HasSuffix(stemmed, "ss") {
		return stemmed[:len(stemmed)-1]
	}

	return stemmed
}

func endsInSibilant(stem string) bool {
	if stem == "" {
		return false
	}

	if strings.HasSuffix(stem, "sh") || strings.HasSuffix(stem, "ch") {
		return true
	}

	switch stem[len(stem)-1] {
	case 's', 'x', 'z':
		return true
	}

	return false
}
