package ranking

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// minTokenLen is the shortest token kept. Articles and prepositions ("de", "em") fall below it.
const minTokenLen = 3

// Tokenize lowercases s in NFC form and splits it on anything that is not a letter or digit.
// Tokens shorter than minTokenLen runes are dropped.
func Tokenize(s string) []string {
	s = strings.ToLower(norm.NFC.String(s))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})

	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// tokenizeAll tokenizes every phrase and concatenates the results.
func tokenizeAll(phrases []string) []string {
	var out []string
	for _, p := range phrases {
		out = append(out, Tokenize(p)...)
	}
	return out
}

// overlap returns the fraction of query tokens that share a substring relation (either direction)
// with any content token. An empty query yields 0.
func overlap(query, content []string) float64 {
	if len(query) == 0 {
		return 0
	}
	matches := 0
	for _, q := range query {
		for _, c := range content {
			if strings.Contains(c, q) || strings.Contains(q, c) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(query))
}
