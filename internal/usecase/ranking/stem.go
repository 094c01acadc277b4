package ranking

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Stem reduces a single lowercase word to a crude singular form.
func Stem(word string) string {
	n := len(word)
	switch {
	case strings.HasSuffix(word, "ves") && n > 3:
		return word[:n-3] + "f"
	case strings.HasSuffix(word, "ies") && n > 3:
		return word[:n-3] + "y"
	case hasAnySuffix(word, "shes", "ches", "xes", "zes", "ses"):
		return word[:n-2]
	case strings.HasSuffix(word, "oes") && n > 4:
		return word[:n-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") && n > 1:
		return word[:n-1]
	default:
		return word
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// StemPhrase normalizes a label (trim, lowercase, NFC, collapsed whitespace) and stems every word.
func StemPhrase(s string) string {
	words := strings.Fields(strings.ToLower(norm.NFC.String(s)))
	for i, w := range words {
		words[i] = Stem(w)
	}
	return strings.Join(words, " ")
}

// StemMatch reports whether a and b are equal after StemPhrase. Empty labels never match.
func StemMatch(a, b string) bool {
	sa, sb := StemPhrase(a), StemPhrase(b)
	return sa != "" && sa == sb
}

// typeMatch is StemMatch or substring containment in either direction of the stemmed labels.
func typeMatch(a, b string) bool {
	sa, sb := StemPhrase(a), StemPhrase(b)
	if sa == "" || sb == "" {
		return false
	}
	return sa == sb || strings.Contains(sa, sb) || strings.Contains(sb, sa)
}
