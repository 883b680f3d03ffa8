// Package ingest loads Markdown, HTML, plain-text and feed sources, splits
// them into chunks and stores their embeddings in a knowledge index.
package ingest

import (
	"path/filepath"
	"strings"
)

// introTitle names the content found before the first heading.
const introTitle = "Introduction"

// Document is one loaded source, split at its headings.
type Document struct {
	Source   string
	Title    string
	Sections []Section
}

type Section struct {
	Title string
	Level int
	Text  string
}

// Kind selects the loader for a file.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
	KindText     Kind = "text"
	KindFeed     Kind = "feed"
	KindUnknown  Kind = ""
)

// KindOf maps a file extension to a loader.
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return KindMarkdown
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".txt", ".text":
		return KindText
	case ".rss", ".atom", ".xml":
		return KindFeed
	default:
		return KindUnknown
	}
}

// PlainText wraps unstructured text as a single-section document.
func PlainText(source, title, text string) Document {
	text = strings.TrimSpace(text)
	if text == "" {
		return Document{Source: source, Title: title}
	}
	return Document{
		Source:   source,
		Title:    title,
		Sections: []Section{{Title: title, Text: text}},
	}
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("-", " ", "_", " ").Replace(base)
	return strings.TrimSpace(base)
}
