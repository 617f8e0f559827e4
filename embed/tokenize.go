package embed

import (
	"strings"
	"unicode"
)

// tokenize lowercases the text and splits it on anything that is not a letter
// or digit. Both built-in encoders share this so that trained and query-time
// vectors see identical tokens.
func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	return strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
