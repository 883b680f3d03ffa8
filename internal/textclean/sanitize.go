// Package textclean strips navigation boilerplate and markup noise from
// retrieved knowledge-base text.
package textclean

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minLineWithToken = 12
	minLineRelaxed   = 25
	minLineStrict    = 40

	minTextRelaxed = 60
	minTextStrict  = 80
)

var (
	imagePattern      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingPattern    = regexp.MustCompile(`^\s*#{1,6}\s*`)
	listPrefix        = regexp.MustCompile(`^\s*(?:[-*+•]|\d{1,2}[.)])\s+`)
	emphasisPattern   = regexp.MustCompile("(\\*\\*|__|`+)")
	whitespacePattern = regexp.MustCompile(`\s+`)

	// Section codes (B3-3.1-08), tax forms (Form 1040-SR) and schedules (Schedule E).
	domainTokenPattern = regexp.MustCompile(`\b(?:[A-Z]\d{1,2}-\d{1,2}(?:\.\d{1,2})*(?:-\d{1,2})?|[Ff]orm\s+\d{3,5}(?:-[A-Z]{1,3})?|[Ss]chedule\s+[A-Z0-9]{1,2})\b`)

	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bskip to (?:main )?content\b`),
		regexp.MustCompile(`(?i)\btoggle (?:navigation|menu)\b`),
		regexp.MustCompile(`(?i)\b(?:main|site|primary) (?:menu|navigation)\b`),
		regexp.MustCompile(`(?i)\bhome ?page\b`),
		regexp.MustCompile(`(?i)\b(?:log ?in|log ?out|sign ?in|sign ?up)\b`),
		regexp.MustCompile(`(?i)\b[\w-]+ logo\b`),
		regexp.MustCompile(`©[^\n]*`),
		regexp.MustCompile(`(?i)\bcopyright\s*(?:\(c\)\s*)?\d{4}[^\n]*`),
		regexp.MustCompile(`(?i)\ball rights reserved\b`),
		regexp.MustCompile(`(?i)\bback to top\b`),
		regexp.MustCompile(`(?i)\bcontact us\b`),
		regexp.MustCompile(`(?i)\b(?:privacy policy|terms of (?:use|service)|cookie (?:settings|preferences))\b`),
		regexp.MustCompile(`(?i)\b(?:print|share) this page\b`),
		regexp.MustCompile(`(?i)\byou are here:?`),
	}

	menuLabels = []string{
		"home", "menu", "about", "products", "services", "resources", "support",
		"search", "careers", "news", "blog", "guides", "tools", "faq",
	}
)

// Sanitize removes markup artifacts, navigation boilerplate and short or tabular
// lines, returning the surviving text on a single line, or "" when too little
// is left. Relaxed mode keeps shorter lines and skips the menu heuristic.
//
// The cleaning pass is repeated until it no longer changes the text, so
// Sanitize(Sanitize(x, m), m) == Sanitize(x, m).
func Sanitize(text string, relaxed bool) string {
	cur := text
	for {
		next := sanitizePass(cur, relaxed)
		if next == cur {
			return next
		}
		cur = next
	}
}

// HasDomainToken reports whether s contains a form or section citation.
func HasDomainToken(s string) bool {
	return domainTokenPattern.MatchString(s)
}

// Collapse trims s and folds every whitespace run into a single space.
func Collapse(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

func sanitizePass(text string, relaxed bool) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = imagePattern.ReplaceAllString(text, " ")
	text = linkPattern.ReplaceAllString(text, "$1")
	for _, re := range boilerplatePatterns {
		text = re.ReplaceAllString(text, " ")
	}

	kept := make([]string, 0, 8)
	for _, raw := range strings.Split(text, "\n") {
		if !relaxed && isMenuLine(raw) {
			continue
		}
		line := headingPattern.ReplaceAllString(raw, "")
		line = listPrefix.ReplaceAllString(line, "")
		line = emphasisPattern.ReplaceAllString(line, "")
		line = Collapse(line)
		if line == "" {
			continue
		}
		hasToken := HasDomainToken(line)
		if utf8.RuneCountInString(line) < minLineLength(hasToken, relaxed) {
			continue
		}
		if strings.Contains(line, "|") && !hasToken {
			continue
		}
		kept = append(kept, line)
	}

	out := Collapse(strings.Join(kept, " "))
	floor := minTextStrict
	if relaxed {
		floor = minTextRelaxed
	}
	if utf8.RuneCountInString(out) < floor {
		return ""
	}
	return out
}

func minLineLength(hasToken, relaxed bool) int {
	switch {
	case hasToken:
		return minLineWithToken
	case relaxed:
		return minLineRelaxed
	default:
		return minLineStrict
	}
}

// isMenuLine flags lines made of several bullet-separated items that include
// a navigation label, e.g. "Home • Products • Support".
func isMenuLine(line string) bool {
	bullets := strings.Count(line, "•") + strings.Count(line, "·") +
		strings.Count(line, " - ") + strings.Count(line, " * ") + strings.Count(line, " > ")
	if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		bullets++
	}
	if bullets < 2 {
		return false
	}
	lower := strings.ToLower(line)
	for _, label := range menuLabels {
		if containsWord(lower, label) {
			return true
		}
	}
	return false
}

func containsWord(haystack, word string) bool {
	for start := 0; ; {
		i := strings.Index(haystack[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if (i == 0 || !isWordByte(haystack[i-1])) && (end == len(haystack) || !isWordByte(haystack[end])) {
			return true
		}
		start = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
