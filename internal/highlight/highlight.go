// Package highlight picks the strongest standalone sentences out of ranked
// passages and turns them into titled, anchored items.
package highlight

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"briefdoc/internal/textclean"
)

const (
	minSentenceLength = 50
	maxSentenceLength = 260
	lengthBucket      = 120
	maxLengthBonus    = 3
	maxCapsTokens     = 3
)

// Highlight is a titled excerpt derived from one sentence.
type Highlight struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Slug  string `json:"slug"`
	Score int    `json:"score"`
}

// DefaultKeywords is the scoring vocabulary used when none is configured.
var DefaultKeywords = []string{
	"income", "documentation", "document", "verify", "verification", "eligib",
	"require", "borrower", "tax return", "schedule", "form", "employment",
	"asset", "lender", "underwrit", "deadline", "must",
}

var (
	noisePhrases = []string{
		"click here", "learn more", "read more", "cookie", "javascript",
		"subscribe", "page not found",
	}
	bulletPairPattern = regexp.MustCompile(`[•·▪‣].*[•·▪‣]|\s[-*]\s.*\s[-*]\s`)
)

// Extractor scores sentences against a keyword vocabulary.
type Extractor struct {
	keywords []string
}

func NewExtractor(keywords []string) *Extractor {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	if len(kw) == 0 {
		kw = DefaultKeywords
	}
	return &Extractor{keywords: kw}
}

// Extract runs the default extractor.
func Extract(texts []string, limit int) []Highlight {
	return NewExtractor(nil).Extract(texts, limit)
}

// Extract splits texts into sentences, keeps the well-formed ones, scores
// them and returns up to limit highlights, best first. Equal scores keep text
// order; sentences with the same normalized text appear once.
func (e *Extractor) Extract(texts []string, limit int) []Highlight {
	if limit <= 0 {
		return nil
	}

	var candidates []Highlight
	for _, text := range texts {
		for _, s := range SplitSentences(text) {
			if !acceptable(s) {
				continue
			}
			candidates = append(candidates, Highlight{Text: s, Score: e.score(s)})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	seen := map[uint64]bool{}
	out := make([]Highlight, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		h := xxhash.Sum64String(strings.ToLower(textclean.Collapse(c.Text)))
		if seen[h] {
			continue
		}
		seen[h] = true
		c.Title = Title(c.Text)
		c.Slug = Slugify(c.Title)
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (e *Extractor) score(s string) int {
	lower := strings.ToLower(s)
	score := 0
	for _, k := range e.keywords {
		if strings.Contains(lower, k) {
			score++
		}
	}
	return score + min(utf8.RuneCountInString(s)/lengthBucket, maxLengthBonus)
}

func acceptable(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < minSentenceLength || n > maxSentenceLength {
		return false
	}
	if strings.Contains(s, "|") || bulletPairPattern.MatchString(s) {
		return false
	}
	lower := strings.ToLower(s)
	for _, p := range noisePhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return capsTokens(s) < maxCapsTokens
}

// capsTokens counts words of two or more letters written entirely in capitals.
func capsTokens(s string) int {
	n := 0
	for _, f := range strings.Fields(s) {
		letters, upper := 0, 0
		for _, r := range f {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					upper++
				}
			}
		}
		if letters >= 2 && letters == upper {
			n++
		}
	}
	return n
}

// SplitSentences cuts text after '.', '!' or '?' when whitespace follows.
// Whitespace inside each sentence is collapsed.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				if s := textclean.Collapse(string(runes[start : i+1])); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := textclean.Collapse(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
