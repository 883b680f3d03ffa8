package highlight

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"briefdoc/internal/textclean"
)

const (
	maxTitleLength   = 90
	minClauseCut     = 30
	defaultSlug      = "section"
	clauseBoundaries = ",;:–—"
)

// Title derives a heading of at most 90 runes from a sentence. Long
// sentences are cut at the last clause boundary past rune 30, otherwise at
// a word boundary with an ellipsis. The first letter is capitalized.
func Title(sentence string) string {
	s := strings.TrimSpace(strings.Join(strings.Fields(sentence), " "))
	s = strings.TrimRight(s, ".!?")
	runes := []rune(s)
	if len(runes) <= maxTitleLength {
		return capitalize(s)
	}

	window := runes[:maxTitleLength]
	for i := len(window) - 1; i >= minClauseCut; i-- {
		if strings.ContainsRune(clauseBoundaries, window[i]) {
			return capitalize(strings.TrimSpace(string(window[:i])))
		}
	}
	return capitalize(textclean.Truncate(s, maxTitleLength))
}

// Slugify lowercases s and joins its ASCII letter and digit runs with
// hyphens. It returns "section" when nothing is left.
func Slugify(s string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return defaultSlug
	}
	return b.String()
}

// TrimToSentence shortens text to at most limit runes, ending on the last
// complete sentence that fits. Without one it cuts at a word boundary and
// appends an ellipsis.
func TrimToSentence(text string, limit int) string {
	s := strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)[:limit]
	for i := len(runes) - 1; i > 0; i-- {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				return string(runes[:i+1])
			}
		}
	}
	return textclean.Truncate(s, limit)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
