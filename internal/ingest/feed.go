package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
)

// FeedLoader reads RSS, Atom and JSON feeds. Each item becomes a Document
// sourced at the item link.
type FeedLoader struct {
	parser    *gofeed.Parser
	converter *HTMLConverter
}

func NewFeedLoader(converter *HTMLConverter) *FeedLoader {
	if converter == nil {
		converter = NewHTMLConverter()
	}
	return &FeedLoader{parser: gofeed.NewParser(), converter: converter}
}

// Fetch downloads and parses the feed at url.
func (l *FeedLoader) Fetch(ctx context.Context, url string) ([]Document, error) {
	feed, err := l.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	return l.documents(feed, url), nil
}

// Parse reads a feed from r. fallbackSource is used for items without a link.
func (l *FeedLoader) Parse(r io.Reader, fallbackSource string) ([]Document, error) {
	feed, err := l.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return l.documents(feed, fallbackSource), nil
}

func (l *FeedLoader) documents(feed *gofeed.Feed, fallbackSource string) []Document {
	docs := make([]Document, 0, len(feed.Items))
	for i, it := range feed.Items {
		body := it.Content
		if strings.TrimSpace(body) == "" {
			body = it.Description
		}
		text, err := l.converter.ConvertFragment(body)
		if err != nil {
			// Not HTML after all; index the raw text.
			text = body
		}

		source := strings.TrimSpace(it.Link)
		if source == "" {
			source = fmt.Sprintf("%s#item-%d", fallbackSource, i+1)
		}
		title := strings.TrimSpace(it.Title)
		doc := PlainText(source, title, text)
		if len(doc.Sections) == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
