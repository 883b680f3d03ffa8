package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"briefdoc/internal/composer"
)

const xss = `<script>alert("x")</script> rental income must be documented <img src=x onerror=alert(1)>`

func parseFragment(t *testing.T, fragment string) []*html.Node {
	t.Helper()
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	require.NoError(t, err)
	return nodes
}

func countElements(nodes []*html.Node, a atom.Atom) int {
	n := 0
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == a {
			n++
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range nodes {
		walk(node)
	}
	return n
}

func TestRender_EscapesEverything(t *testing.T) {
	out := Render(Input{
		Brief: xss,
		Plan: composer.Plan{
			Intro:      xss,
			Highlights: []string{xss},
			Cards:      []composer.Card{{Title: xss, Blurb: xss, Color: "blue"}},
			Quotes:     []composer.Quote{{Text: xss, Domain: "irs.gov"}},
			Mode:       composer.ModeGenerative,
		},
		Sources: []string{`https://irs.gov/"><script>alert(1)</script>`, "javascript:alert(1)"},
		Hits:    1,
	})

	assert.NotContains(t, strings.ToLower(out), "<script")
	assert.NotContains(t, out, "<img")
	assert.NotContains(t, out, `href="javascript:`)

	nodes := parseFragment(t, out)
	assert.Zero(t, countElements(nodes, atom.Script))
	assert.Zero(t, countElements(nodes, atom.Img))
	assert.Equal(t, 1, countElements(nodes, atom.Style))
}

func TestRender_Structure(t *testing.T) {
	out := Render(Input{
		Brief: "What is rental income documentation?",
		Plan: composer.Plan{
			Intro:      "Rental income needs tax returns or a lease.",
			Highlights: []string{"Rental income must be documented with signed federal tax returns."},
			Cards: []composer.Card{
				{Title: "Tax returns", Blurb: "Signed returns with Schedule E document rental income.", Color: "green"},
				{Title: "Tax returns", Blurb: "A second card with the same title gets its own anchor.", Color: "amber"},
			},
			Quotes: []composer.Quote{
				{Text: "Lenders may use a current lease agreement for newly acquired property.", Domain: "fanniemae.com"},
				{Text: "Net rental income is reported on Schedule E of Form 1040.", Domain: "irs.gov"},
				{Text: "A second excerpt from the same tax authority source appears here.", Domain: "irs.gov"},
				{Text: "An excerpt without a known domain is grouped under the default label."},
			},
			Mode:       composer.ModeGenerative,
			LocalParts: []string{composer.LocalQuotes},
		},
		Sources: []string{"https://www.irs.gov/e", "https://fanniemae.com/b3", "doc-7"},
		Hits:    5,
	})

	assert.Contains(t, out, `class="kbdoc-intro"`)
	assert.Contains(t, out, `id="tax-returns"`)
	assert.Contains(t, out, `id="tax-returns-2"`)
	assert.Contains(t, out, `href="#tax-returns-2"`)
	assert.Contains(t, out, "kbdoc-card-green")
	assert.Contains(t, out, `<!-- kbdoc hits=5 generative=true mode=generative local=quotes -->`)

	nodes := parseFragment(t, out)
	assert.Equal(t, 4, countElements(nodes, atom.Blockquote))
	assert.Equal(t, 2, countElements(nodes, atom.Article))

	assert.Equal(t, 1, strings.Count(out, `id="source-irs-gov"`))
	assert.Contains(t, out, `<a href="#kbdoc-source-1">[1]</a>`)
	assert.Contains(t, out, `<a href="#kbdoc-source-2">[2]</a>`)
	assert.Contains(t, out, `<h4>Knowledge Base</h4>`)
	assert.Less(t, strings.Index(out, "fanniemae.com</h4>"), strings.Index(out, "irs.gov</h4>"), "groups keep first appearance")

	assert.Contains(t, out, `<a href="https://www.irs.gov/e" rel="noopener noreferrer" target="_blank">`)
	assert.Contains(t, out, `<li id="kbdoc-source-3">doc-7</li>`)
}

func TestRender_OmitsEmptySections(t *testing.T) {
	out := Render(Input{Brief: "b", Plan: composer.Plan{Cards: []composer.Card{{Title: "Only a card", Blurb: "Blurb", Color: "slate"}}}})
	assert.NotContains(t, out, `class="kbdoc-highlights"`)
	assert.NotContains(t, out, `class="kbdoc-quotes"`)
	assert.NotContains(t, out, `class="kbdoc-sources"`)
	assert.NotContains(t, out, `class="kbdoc-intro"`)
	assert.Contains(t, out, "generative=false mode=deterministic")
}

func TestRenderEmpty(t *testing.T) {
	out := RenderEmpty("<b>brief</b>")
	assert.Contains(t, out, NoPassagesNotice)
	assert.Contains(t, out, "&lt;b&gt;brief&lt;/b&gt;")
	assert.Contains(t, out, "hits=0")
	assert.NotContains(t, out, "<html")
	assert.NotContains(t, out, "<body")
}

func TestRenderPlaceholder(t *testing.T) {
	out := RenderPlaceholder("brief", []string{"knowledge_base.id (or BRIEFDOC_KB_ID)"})
	assert.Contains(t, out, PlaceholderNotice)
	assert.Contains(t, out, "<code>knowledge_base.id (or BRIEFDOC_KB_ID)</code>")
}

func TestSlugSet(t *testing.T) {
	s := newSlugSet()
	assert.Equal(t, "a", s.unique("a"))
	assert.Equal(t, "a-2", s.unique("a"))
	assert.Equal(t, "a-3", s.unique("a"))
	assert.Equal(t, "b", s.unique("b"))

	s = newSlugSet()
	assert.Equal(t, "a-2", s.unique("a-2"))
	assert.Equal(t, "a", s.unique("a"))
	assert.Equal(t, "a-3", s.unique("a"))
}
