package composer

import (
	"strings"

	"briefdoc/internal/highlight"
	"briefdoc/internal/ranking"
	"briefdoc/internal/textclean"
)

// Fallback builds a deterministic plan from extracted highlights. The first
// highlights become cards, titled by the highlight title and described by
// the matching entry of blurbs or, when that is empty, by the part of the
// highlight the title does not already show. A highlight whose card would
// fall outside the shape bounds goes to the highlights list instead, as do
// the highlights past MaxCards, up to maxItems entries in all. Quotes come
// from groups and skip passages already shown as a card or highlight.
func Fallback(highlights []highlight.Highlight, groups []ranking.SourceGroup, maxItems int, blurbs []string) Plan {
	plan := Plan{Mode: ModeDeterministic}
	used := map[string]bool{}

	for i, h := range highlights {
		if len(plan.Cards)+len(plan.Highlights) >= maxItems {
			break
		}
		used[normalized(h.Text)] = true
		if len(plan.Cards) < MaxCards {
			blurb := ""
			if i < len(blurbs) {
				blurb = blurbs[i]
			}
			if blurb == "" {
				blurb = remainderBlurb(h)
			}
			if bound(h.Title, minCardTitle, maxCardTitle) != "" && bound(blurb, minBlurb, maxBlurb) != "" {
				plan.Cards = append(plan.Cards, Card{Title: h.Title, Blurb: blurb})
				continue
			}
		}
		plan.Highlights = append(plan.Highlights, h.Text)
	}

	for k := range usedTexts(plan) {
		used[k] = true
	}
	plan.Quotes = FillQuotes(groups, used)
	return Normalize(plan, maxItems)
}

// remainderBlurb returns the highlight text that follows its title, marked
// as a continuation and trimmed to a sentence boundary. It returns "" when
// the title already covers the whole sentence. A title that is not a prefix
// of the text leaves the text whole.
func remainderBlurb(h highlight.Highlight) string {
	text := textclean.Collapse(h.Text)
	head := strings.TrimSuffix(textclean.Collapse(h.Title), textclean.Ellipsis)
	if head == "" || len(head) > len(text) || !strings.EqualFold(text[:len(head)], head) {
		return highlight.TrimToSentence(text, maxBlurb)
	}
	rest := strings.TrimLeft(text[len(head):], " ,;:–—.!?")
	if rest == "" {
		return ""
	}
	return highlight.TrimToSentence(textclean.Ellipsis+rest, maxBlurb)
}

// FillQuotes takes up to MaxQuotes excerpts from groups, walking the groups
// in order. Passages that contain, or are contained in, text already shown
// elsewhere in the plan are skipped. Each quote is trimmed to a sentence
// boundary and tagged with its group's domain.
func FillQuotes(groups []ranking.SourceGroup, exclude map[string]bool) []Quote {
	var quotes []Quote
	for _, g := range groups {
		domain := g.Label
		if domain == ranking.DefaultSourceLabel {
			domain = ""
		}
		for _, p := range g.Passages {
			if len(quotes) >= MaxQuotes {
				return quotes
			}
			if overlaps(normalized(p.Text), exclude) {
				continue
			}
			text := highlight.TrimToSentence(p.Text, maxQuote)
			if bound(text, minQuote, maxQuote) == "" {
				continue
			}
			quotes = append(quotes, Quote{Text: text, Domain: domain})
		}
	}
	return quotes
}

func overlaps(text string, shown map[string]bool) bool {
	for s := range shown {
		if s == "" {
			continue
		}
		if strings.Contains(text, s) || strings.Contains(s, text) {
			return true
		}
	}
	return false
}

// CompleteQuotes fills the quotes of a generative plan that came back
// without any, and records that in LocalParts.
func CompleteQuotes(plan Plan, groups []ranking.SourceGroup) Plan {
	if len(plan.Quotes) > 0 {
		return plan
	}
	quotes := FillQuotes(groups, usedTexts(plan))
	if len(quotes) == 0 {
		return plan
	}
	plan.Quotes = Normalize(Plan{Quotes: quotes}, 0).Quotes
	plan.LocalParts = append(plan.LocalParts, LocalQuotes)
	return plan
}

func usedTexts(p Plan) map[string]bool {
	used := map[string]bool{}
	for _, h := range p.Highlights {
		used[normalized(h)] = true
	}
	for _, c := range p.Cards {
		used[normalized(c.Blurb)] = true
	}
	return used
}

func normalized(s string) string {
	return strings.ToLower(textclean.Collapse(s))
}
