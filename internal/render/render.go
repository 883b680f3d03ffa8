// Package render produces the self-contained HTML fragment for a document.
// Every piece of brief, passage or model text is escaped; only the fixed
// markup below is emitted.
package render

import (
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"briefdoc/internal/composer"
	"briefdoc/internal/highlight"
	"briefdoc/internal/knowledge"
	"briefdoc/internal/ranking"
)

// ClassPrefix scopes every class name and the inline stylesheet.
const ClassPrefix = "kbdoc-"

const (
	NoPassagesNotice  = "No matching passages found in the knowledge base for this brief."
	PlaceholderNotice = "This document could not be generated because the knowledge base is not configured."
)

// Input is everything Render needs for one document.
type Input struct {
	Brief   string
	Plan    composer.Plan
	Sources []string
	Hits    int
}

// Render emits the full fragment: style, header, intro, highlights, cards,
// quotes grouped by domain with citation markers and the sources list.
func Render(in Input) string {
	var b strings.Builder
	writeStyle(&b)
	fmt.Fprintf(&b, "<div class=\"%sdoc\">\n", ClassPrefix)
	writeHeader(&b, in.Brief)

	if in.Plan.Intro != "" {
		fmt.Fprintf(&b, "<p class=\"%sintro\">%s</p>\n", ClassPrefix, esc(in.Plan.Intro))
	}

	slugs := newSlugSet()
	writeHighlights(&b, in.Plan.Highlights, slugs)
	writeCards(&b, in.Plan.Cards, slugs)
	writeQuotes(&b, in.Plan.Quotes, in.Sources, slugs)
	writeSources(&b, in.Sources)

	b.WriteString("</div>\n")
	writeDiagnostics(&b, in.Hits, in.Plan)
	return b.String()
}

// RenderEmpty is the fragment for a brief that produced no usable passages.
func RenderEmpty(brief string) string {
	var b strings.Builder
	writeStyle(&b)
	fmt.Fprintf(&b, "<div class=\"%sdoc\">\n", ClassPrefix)
	writeHeader(&b, brief)
	fmt.Fprintf(&b, "<p class=\"%sempty\">%s</p>\n", ClassPrefix, esc(NoPassagesNotice))
	b.WriteString("</div>\n")
	writeDiagnostics(&b, 0, composer.Plan{Mode: composer.ModeDeterministic})
	return b.String()
}

// RenderPlaceholder is the fragment written when required configuration is
// missing. It tells the operator which keys to set.
func RenderPlaceholder(brief string, missingKeys []string) string {
	var b strings.Builder
	writeStyle(&b)
	fmt.Fprintf(&b, "<div class=\"%sdoc\">\n", ClassPrefix)
	writeHeader(&b, brief)
	fmt.Fprintf(&b, "<p class=\"%snotice\">%s</p>\n", ClassPrefix, esc(PlaceholderNotice))
	if len(missingKeys) > 0 {
		fmt.Fprintf(&b, "<p class=\"%snotice\">Set the following configuration keys:</p>\n<ul class=\"%smissing\">\n", ClassPrefix, ClassPrefix)
		for _, k := range missingKeys {
			fmt.Fprintf(&b, "<li><code>%s</code></li>\n", esc(k))
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n")
	fmt.Fprintf(&b, "<!-- kbdoc placeholder missing=%d -->\n", len(missingKeys))
	return b.String()
}

func writeHeader(b *strings.Builder, brief string) {
	fmt.Fprintf(b, "<header class=\"%sheader\">\n<p class=\"%slabel\">Knowledge brief</p>\n<h2 class=\"%sbrief\">%s</h2>\n</header>\n",
		ClassPrefix, ClassPrefix, ClassPrefix, esc(strings.TrimSpace(brief)))
}

func writeHighlights(b *strings.Builder, items []string, slugs *slugSet) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "<section class=\"%shighlights\">\n<h3>Highlights</h3>\n<ul>\n", ClassPrefix)
	for _, h := range items {
		id := slugs.unique(highlight.Slugify(highlight.Title(h)))
		fmt.Fprintf(b, "<li class=\"%shighlight\" id=\"%s\">%s</li>\n", ClassPrefix, esc(id), esc(h))
	}
	b.WriteString("</ul>\n</section>\n")
}

func writeCards(b *strings.Builder, cards []composer.Card, slugs *slugSet) {
	if len(cards) == 0 {
		return
	}
	fmt.Fprintf(b, "<section class=\"%scards\">\n", ClassPrefix)
	for _, c := range cards {
		id := slugs.unique(highlight.Slugify(c.Title))
		fmt.Fprintf(b, "<article class=\"%scard %scard-%s\" id=\"%s\">\n", ClassPrefix, ClassPrefix, esc(c.Color), esc(id))
		fmt.Fprintf(b, "<h3><a href=\"#%s\">%s</a></h3>\n", esc(id), esc(c.Title))
		fmt.Fprintf(b, "<p>%s</p>\n", esc(c.Blurb))
		b.WriteString("</article>\n")
	}
	b.WriteString("</section>\n")
}

// writeQuotes groups quotes by domain in first-appearance order. A quote
// carries a citation marker pointing at the first source on its domain.
func writeQuotes(b *strings.Builder, quotes []composer.Quote, sources []string, slugs *slugSet) {
	if len(quotes) == 0 {
		return
	}
	var order []string
	grouped := map[string][]composer.Quote{}
	for _, q := range quotes {
		label := q.Domain
		if label == "" {
			label = ranking.DefaultSourceLabel
		}
		if _, ok := grouped[label]; !ok {
			order = append(order, label)
		}
		grouped[label] = append(grouped[label], q)
	}

	fmt.Fprintf(b, "<section class=\"%squotes\">\n<h3>From the sources</h3>\n", ClassPrefix)
	for _, label := range order {
		id := slugs.unique("source-" + highlight.Slugify(label))
		fmt.Fprintf(b, "<div class=\"%squote-group\" id=\"%s\">\n<h4>%s</h4>\n", ClassPrefix, esc(id), esc(label))
		cite := citationFor(label, sources)
		for _, q := range grouped[label] {
			fmt.Fprintf(b, "<blockquote class=\"%squote\">%s", ClassPrefix, esc(q.Text))
			if cite > 0 {
				fmt.Fprintf(b, " <sup class=\"%scite\"><a href=\"#%ssource-%d\">[%d]</a></sup>", ClassPrefix, ClassPrefix, cite, cite)
			}
			b.WriteString("</blockquote>\n")
		}
		b.WriteString("</div>\n")
	}
	b.WriteString("</section>\n")
}

func writeSources(b *strings.Builder, sources []string) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintf(b, "<section class=\"%ssources\">\n<h3>Sources</h3>\n<ol>\n", ClassPrefix)
	for i, s := range sources {
		fmt.Fprintf(b, "<li id=\"%ssource-%d\">", ClassPrefix, i+1)
		if link, ok := externalLink(s); ok {
			fmt.Fprintf(b, "<a href=\"%s\" rel=\"noopener noreferrer\" target=\"_blank\">%s</a>", esc(link), esc(s))
		} else {
			b.WriteString(esc(s))
		}
		b.WriteString("</li>\n")
	}
	b.WriteString("</ol>\n</section>\n")
}

func writeDiagnostics(b *strings.Builder, hits int, plan composer.Plan) {
	mode := plan.Mode
	if mode == "" {
		mode = composer.ModeDeterministic
	}
	fmt.Fprintf(b, "<!-- kbdoc hits=%d generative=%s mode=%s", hits, strconv.FormatBool(mode == composer.ModeGenerative), mode)
	if len(plan.LocalParts) > 0 {
		fmt.Fprintf(b, " local=%s", strings.Join(plan.LocalParts, ","))
	}
	b.WriteString(" -->\n")
}

func citationFor(label string, sources []string) int {
	if label == ranking.DefaultSourceLabel {
		return 0
	}
	for i, s := range sources {
		if knowledge.Host(s) == label {
			return i + 1
		}
	}
	return 0
}

// externalLink accepts absolute http(s) URLs only.
func externalLink(s string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	return u.String(), true
}

func esc(s string) string {
	return html.EscapeString(s)
}

// slugSet hands out ids that are unique within one fragment.
type slugSet struct {
	seen map[string]int
}

func newSlugSet() *slugSet {
	return &slugSet{seen: map[string]int{}}
}

func (s *slugSet) unique(slug string) string {
	n := s.seen[slug]
	s.seen[slug] = n + 1
	if n == 0 {
		return slug
	}
	candidate := slug + "-" + strconv.Itoa(n+1)
	for s.seen[candidate] > 0 {
		n++
		candidate = slug + "-" + strconv.Itoa(n+1)
	}
	s.seen[candidate] = 1
	return candidate
}
