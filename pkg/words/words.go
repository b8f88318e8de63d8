package words

import (
	"strings"
	"unicode"
)

// StripTags removes HTML/rich-text markup from s, leaving plain text. Tag
// boundaries are replaced with spaces so adjacent block elements do not run
// their words together.
func StripTags(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}

	return decodeEntities(b.String())
}

// Count returns the number of words in the given markup, after stripping
// tags. A word is any run of non-space characters.
func Count(s string) int {
	return len(strings.FieldsFunc(StripTags(s), unicode.IsSpace))
}

var entities = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

func decodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entities.Replace(s)
}
