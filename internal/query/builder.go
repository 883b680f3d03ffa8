// Package query derives knowledge-base search queries from a free-text brief.
package query

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxQueryTokens  = 10
	maxQueryLength  = 200
	maxPrefixLength = 160
	maxQuoted       = 3
	minQuotedLength = 4
	minTokenLength  = 3

	// EmptyBriefQuery is issued when a brief yields nothing searchable.
	EmptyBriefQuery = "overview"

	topicLabel = "Topic: "
)

var quotedPattern = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "your": true, "all": true, "any": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true, "has": true,
	"have": true, "what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "how": true, "this": true, "that": true, "these": true, "those": true,
	"with": true, "from": true, "into": true, "about": true, "there": true, "their": true,
	"they": true, "them": true, "then": true, "than": true, "will": true, "would": true,
	"should": true, "could": true, "does": true, "did": true, "doing": true, "been": true,
	"being": true, "were": true, "its": true, "also": true, "some": true, "such": true,
	"more": true, "most": true, "other": true, "only": true, "over": true, "very": true,
	"just": true, "like": true, "need": true, "needs": true, "want": true, "make": true,
	"please": true, "write": true, "create": true, "give": true, "tell": true, "explain": true,
	"describe": true, "document": true, "page": true, "article": true, "using": true, "use": true,
}

// DefaultVocabulary is the phrase list used by BuildTopicQuery when none is configured.
var DefaultVocabulary = []string{
	"rental income",
	"self-employment income",
	"employment verification",
	"asset verification",
	"debt-to-income ratio",
	"credit report",
	"appraisal",
	"underwriting",
	"documentation requirements",
	"eligibility",
}

// DefaultTopics is used by BuildTopicQuery when the brief matches no vocabulary phrase.
var DefaultTopics = []string{"documentation requirements", "eligibility", "underwriting"}

// BuildQuery turns a brief into a single keyword query: the most frequent
// non-stopword tokens, at most ten, joined by spaces. It falls back to the raw
// brief when no token survives.
func BuildQuery(brief string) string {
	ranked := rankTokens(brief, minTokenLength)
	if len(ranked) == 0 {
		return truncateWords(strings.Join(strings.Fields(brief), " "), maxQueryLength)
	}
	if len(ranked) > maxQueryTokens {
		ranked = ranked[:maxQueryTokens]
	}
	return truncateWords(strings.Join(ranked, " "), maxQueryLength)
}

// SalientTerms returns up to n of the brief's most frequent tokens of four or
// more characters. They drive term-aligned filtering and the tight retry query.
func SalientTerms(brief string, n int) []string {
	ranked := rankTokens(brief, 4)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BuildTopicQuery matches the brief against a fixed phrase vocabulary and
// returns the matched phrases behind a "Topic: " label, or the default topics
// when nothing matches.
func BuildTopicQuery(brief string, vocabulary, defaults []string) string {
	if len(vocabulary) == 0 {
		vocabulary = DefaultVocabulary
	}
	if len(defaults) == 0 {
		defaults = DefaultTopics
	}
	lower := strings.ToLower(brief)
	matched := make([]string, 0, len(vocabulary))
	for _, phrase := range vocabulary {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p != "" && strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		matched = defaults
	}
	return topicLabel + strings.Join(matched, ", ")
}

// BuildQueryVariants combines the keyword query, up to three quoted phrases
// from the brief and a raw prefix of the brief. The result is deduplicated and
// never empty.
func BuildQueryVariants(brief string) []string {
	variants := make([]string, 0, 2+maxQuoted)
	if strings.TrimSpace(brief) != "" {
		variants = append(variants, BuildQuery(brief))
	}
	variants = append(variants, QuotedPhrases(brief)...)
	variants = append(variants, truncateWords(strings.Join(strings.Fields(brief), " "), maxPrefixLength))

	out := uniqueNonEmpty(variants)
	if len(out) == 0 {
		return []string{EmptyBriefQuery}
	}
	return out
}

// QuotedPhrases extracts up to three double-quoted substrings of at least four characters.
func QuotedPhrases(brief string) []string {
	var out []string
	for _, m := range quotedPattern.FindAllStringSubmatch(brief, -1) {
		phrase := m[1]
		if phrase == "" {
			phrase = m[2]
		}
		phrase = strings.Join(strings.Fields(phrase), " ")
		if utf8.RuneCountInString(phrase) < minQuotedLength {
			continue
		}
		out = append(out, phrase)
		if len(out) == maxQuoted {
			break
		}
	}
	return out
}

// rankTokens lowercases, strips punctuation and orders the remaining tokens by
// frequency, ties broken by first occurrence.
func rankTokens(brief string, minLen int) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return unicode.ToLower(r)
		}
		return ' '
	}, brief)

	counts := map[string]int{}
	order := make([]string, 0, 16)
	for _, tok := range strings.Fields(cleaned) {
		tok = strings.Trim(tok, "-")
		if utf8.RuneCountInString(tok) < minLen || stopwords[tok] {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}

func uniqueNonEmpty(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, q := range in {
		n := strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(q)), " "))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, strings.TrimSpace(q))
	}
	return out
}

// truncateWords cuts s to at most limit runes, preferring a word boundary.
func truncateWords(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
