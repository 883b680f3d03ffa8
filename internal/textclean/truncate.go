package textclean

import (
	"strings"
	"unicode"
)

// Ellipsis marks text shortened by Truncate.
const Ellipsis = "…"

// Truncate shortens s to at most limit runes. A cut falls on the last word
// boundary that fits and is marked with Ellipsis. When that boundary lies in
// the first half of the kept text the word is cut instead.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	keep := limit - 1
	cut := keep
	for i := keep; i > keep/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " ,;:–—") + Ellipsis
}
