package ingest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// maxSectionLevel is the deepest heading that starts a new section; deeper
// headings stay inside their parent section as text.
const maxSectionLevel = 3

var markdownParser = goldmark.New().Parser()

// ParseMarkdown splits Markdown into sections at headings up to level 3.
// Text before the first heading goes to an "Introduction" section. Fenced
// and indented code, HTML blocks and thematic breaks are dropped.
func ParseMarkdown(source string, content []byte) Document {
	doc := Document{Source: source}
	root := markdownParser.Parse(text.NewReader(content))

	current := Section{Title: introTitle}
	var blocks []string
	flush := func() {
		body := strings.TrimSpace(strings.Join(blocks, "\n"))
		if body != "" {
			current.Text = body
			doc.Sections = append(doc.Sections, current)
		}
		blocks = blocks[:0]
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(inlineText(node, content))
			if doc.Title == "" && node.Level == 1 {
				doc.Title = title
			}
			if node.Level > maxSectionLevel {
				blocks = append(blocks, title)
				continue
			}
			flush()
			current = Section{Title: title, Level: node.Level}
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
			continue
		default:
			if s := strings.TrimSpace(blockText(n, content)); s != "" {
				blocks = append(blocks, s)
			}
		}
	}
	flush()

	if doc.Title == "" && len(doc.Sections) > 0 && doc.Sections[0].Title != introTitle {
		doc.Title = doc.Sections[0].Title
	}
	return doc
}

// blockText renders a block node as plain text, one line per paragraph or
// list item.
func blockText(n ast.Node, source []byte) string {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return inlineText(n, source)
	case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
		return ""
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s := strings.TrimSpace(blockText(c, source)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.URL(source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
