package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStemSingularPluralConverge(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"document", "documents"},
		{"email", "emails"},
		{"meeting", "meetings"},
		{"file", "files"},
		{"folder", "folders"},
		{"calendar", "calendars"},
		{"note", "notes"},
		{"page", "pages"},
		{"spreadsheet", "spreadsheets"},
		{"task", "tasks"},
	}

	for _, pair := range pairs {
		assert.Equal(t, Stem(pair[0]), Stem(pair[1]),
			"%q and %q should share a stem", pair[0], pair[1])
	}
}

func TestStemRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		word     string
		expected string
	}{
		{"studies", "study"},
		{"tried", "try"},
		{"classes", "class"},
		{"boxes", "box"},
		{"searches", "search"},
		{"searching", "search"},
		{"scheduled", "schedul"},
		{"quickly", "quick"},
		{"documents", "document"},
		{"meeting", "meeting"}, // stem would be too short to strip "ing"
		{"docs", "doc"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, Stem(test.word), "stem of %q", test.word)
	}
}

func TestStemShortWordsUnchanged(t *testing.T) {
	t.Parallel()

	for _, word := range []string{"a", "is", "doc", "the", "api"} {
		assert.Equal(t, word, Stem(word), "words of length <= 3 pass through")
	}

	assert.Equal(t, "api", Stem("API"), "short words are still lowercased")
}

func TestStemCaseInsensitive(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Stem("documents"), Stem("DOCUMENTS"))
	assert.Equal(t, Stem("email"), Stem("Email"))
	assert.Equal(t, Stem("meetings"), Stem("MeEtInGs"))
}

// Derivational suffixes must survive: stripping them makes inflected
// forms of the same word diverge.
func TestStemKeepsDerivationalSuffixes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "document", Stem("document"))
	assert.Equal(t, "presentation", Stem("presentation"))
	assert.Equal(t, "management", Stem("management"))
	assert.NotEqual(t, "docu", Stem("document"))
}
