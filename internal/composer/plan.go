// Package composer turns ranked passages into a CompositionPlan, either by
// asking a generative backend for a grounded structured plan or
// deterministically from extracted highlights.
package composer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"briefdoc/internal/knowledge"
	"briefdoc/internal/textclean"
)

// Mode tells which path produced a plan.
type Mode string

const (
	ModeGenerative    Mode = "generative"
	ModeDeterministic Mode = "deterministic"
)

// Shape bounds, in runes.
const (
	MaxCards  = 4
	MaxQuotes = 4

	minHighlight = 40
	maxHighlight = 260
	minCardTitle = 10
	maxCardTitle = 90
	minBlurb     = 40
	maxBlurb     = 240
	minQuote     = 40
	maxQuote     = 240
	maxIntro     = 600

	// LocalQuotes names the quotes field in Plan.LocalParts.
	LocalQuotes = "quotes"
)

// Palette is the closed set of card colors.
var Palette = []string{"blue", "green", "amber", "violet", "slate"}

var hostPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]*[a-z0-9])?)*\.[a-z]{2,}$`)

type Card struct {
	Title string `json:"title"`
	Blurb string `json:"blurb"`
	Color string `json:"color,omitempty"`
}

type Quote struct {
	Text   string `json:"text"`
	Domain string `json:"domain,omitempty"`
}

// Plan is what the renderer consumes. Every populated field satisfies the
// shape bounds above.
type Plan struct {
	Intro      string   `json:"intro,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
	Cards      []Card   `json:"cards,omitempty"`
	Quotes     []Quote  `json:"quotes,omitempty"`

	Mode Mode `json:"-"`
	// LocalParts lists fields of a generative plan that were filled locally.
	LocalParts []string `json:"-"`
}

// Empty reports whether the plan has nothing to render.
func (p Plan) Empty() bool {
	return p.Intro == "" && len(p.Highlights) == 0 && len(p.Cards) == 0 && len(p.Quotes) == 0
}

// Normalize trims and bounds every field of p. Entries below a lower bound
// are dropped, entries above an upper bound are truncated with an ellipsis,
// arrays are clamped to their maximum count, unknown card colors are
// replaced by the palette color for their position and implausible quote
// domains are removed. Mode and LocalParts are kept.
func Normalize(p Plan, maxItems int) Plan {
	out := Plan{Mode: p.Mode, LocalParts: p.LocalParts}

	out.Intro = bound(p.Intro, 1, maxIntro)

	for _, h := range p.Highlights {
		if len(out.Highlights) >= maxItems {
			break
		}
		if h = bound(h, minHighlight, maxHighlight); h != "" {
			out.Highlights = append(out.Highlights, h)
		}
	}

	for _, c := range p.Cards {
		if len(out.Cards) >= MaxCards {
			break
		}
		title := bound(c.Title, minCardTitle, maxCardTitle)
		blurb := bound(c.Blurb, minBlurb, maxBlurb)
		if title == "" || blurb == "" {
			continue
		}
		out.Cards = append(out.Cards, Card{
			Title: title,
			Blurb: blurb,
			Color: cardColor(c.Color, len(out.Cards)),
		})
	}

	for _, q := range p.Quotes {
		if len(out.Quotes) >= MaxQuotes {
			break
		}
		text := bound(q.Text, minQuote, maxQuote)
		if text == "" {
			continue
		}
		out.Quotes = append(out.Quotes, Quote{Text: text, Domain: plausibleDomain(q.Domain)})
	}
	return out
}

// bound collapses whitespace and truncates above hi. It returns "" when the
// result is shorter than lo runes.
func bound(s string, lo, hi int) string {
	s = textclean.Truncate(textclean.Collapse(s), hi)
	if s == "" || utf8.RuneCountInString(s) < lo {
		return ""
	}
	return s
}

func cardColor(c string, pos int) string {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, p := range Palette {
		if c == p {
			return c
		}
	}
	return Palette[pos%len(Palette)]
}

func plausibleDomain(d string) string {
	d = strings.TrimSpace(d)
	if d == "" {
		return ""
	}
	host := knowledge.Host(d)
	if !hostPattern.MatchString(host) {
		return ""
	}
	return host
}
