package bundle

import (
	"strings"
	"unicode"

	"github.com/danmuck/crankctl/internal/manifest"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title word-cases a raw target identifier: "hello_world", "hello-world" and
// "helloWorld" all become "Hello World". It is pure and deterministic.
func Title(raw string) string {
	caser := cases.Title(language.Und)
	words := splitWords(raw)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// DisplayTitle is Title(raw) unless metadata declares a display name.
func DisplayTitle(raw string, md *manifest.Metadata) string {
	if md != nil && md.Name != nil {
		if name := strings.TrimSpace(*md.Name); name != "" {
			return name
		}
	}
	return Title(raw)
}

func splitWords(raw string) []string {
	runes := []rune(raw)
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range runes {
		if r == '_' || r == '-' || r == '.' || unicode.IsSpace(r) {
			flush()
			continue
		}
		if unicode.IsUpper(r) && len(cur) > 0 {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
