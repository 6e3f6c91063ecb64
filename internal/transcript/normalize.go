// Package transcript tidies dictated text before it is shown or sent.
package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

// abbreviations end in a period that does not close a sentence.
var abbreviations = map[string]struct{}{
	"approx": {},
	"dr":     {},
	"e.g":    {},
	"eg":     {},
	"i.e":    {},
	"ie":     {},
	"mr":     {},
	"mrs":    {},
	"ms":     {},
	"no":     {},
	"prof":   {},
	"st":     {},
	"vs":     {},
}

var pronounI = regexp.MustCompile(`\bi\b(['’](?:m|d|ll|ve|re|s)\b)?`)

// Normalize collapses whitespace, capitalizes sentence starts, and
// uppercases the standalone pronoun "i".
func Normalize(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	text = capitalizeSentences(text)
	return pronounI.ReplaceAllStringFunc(text, func(match string) string {
		return "I" + match[1:]
	})
}

func capitalizeSentences(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		switch {
		case capitalize && unicode.IsLetter(r):
			runes[i] = unicode.ToUpper(r)
			capitalize = false
		case capitalize && unicode.IsDigit(r):
			capitalize = false
		case r == '!' || r == '?':
			capitalize = true
		case r == '.':
			capitalize = endsSentence(runes, i)
		}
	}
	return string(runes)
}

// endsSentence decides whether the period at idx closes a sentence.
func endsSentence(runes []rune, idx int) bool {
	if idx+1 < len(runes) && !unicode.IsSpace(runes[idx+1]) && !isClosingQuote(runes[idx+1]) {
		// 2.5, e.g, example.com
		return false
	}

	start := idx
	for start > 0 && (unicode.IsLetter(runes[start-1]) || runes[start-1] == '.') {
		start--
	}
	word := strings.ToLower(string(runes[start:idx]))
	if _, ok := abbreviations[word]; ok {
		return false
	}
	return true
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', '’', '”', ')':
		return true
	default:
		return false
	}
}
