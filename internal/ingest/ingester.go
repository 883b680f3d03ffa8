package ingest

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"briefdoc/internal/knowledge"
	"briefdoc/internal/logging"
)

// embedBatch bounds how many chunks go to the embedder per call.
const embedBatch = 64

// Stats summarizes one ingestion run.
type Stats struct {
	Files     int
	Documents int
	Chunks    int
	Skipped   int
}

type Options struct {
	Collection string
	// BaseURL, when set, turns relative file paths into http(s) sources so
	// passages group by that site and link back to it.
	BaseURL   string
	ChunkSize int
	Logger    *zap.Logger
}

// Ingester loads sources, chunks them and writes embedded records to an index.
type Ingester struct {
	embedder  knowledge.Embedder
	index     knowledge.Index
	opts      Options
	crawler   *Crawler
	converter *HTMLConverter
	feeds     *FeedLoader
	logger    *zap.Logger
}

func New(embedder knowledge.Embedder, index knowledge.Index, opts Options) (*Ingester, error) {
	if embedder == nil || index == nil {
		return nil, fmt.Errorf("embedder and index are required")
	}
	if strings.TrimSpace(opts.Collection) == "" {
		return nil, fmt.Errorf("collection is required")
	}
	converter := NewHTMLConverter()
	return &Ingester{
		embedder:  embedder,
		index:     index,
		opts:      opts,
		crawler:   NewCrawler(),
		converter: converter,
		feeds:     NewFeedLoader(converter),
		logger:    logging.OrNop(opts.Logger),
	}, nil
}

// IngestDir loads every file under root matching patterns. A file that
// fails to load is logged and skipped.
func (in *Ingester) IngestDir(ctx context.Context, root string, patterns []string) (Stats, error) {
	var stats Stats
	files, err := in.crawler.Find(root, patterns)
	if err != nil {
		return stats, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	var docs []Document
	for _, rel := range files {
		loaded, err := in.loadFile(root, rel)
		if err != nil {
			in.logger.Warn("skipping source file", zap.String("path", rel), zap.Error(err))
			stats.Skipped++
			continue
		}
		stats.Files++
		docs = append(docs, loaded...)
	}

	n, err := in.IngestDocuments(ctx, docs)
	stats.Documents = len(docs)
	stats.Chunks = n
	return stats, err
}

// IngestFeed fetches a feed and ingests its items.
func (in *Ingester) IngestFeed(ctx context.Context, feedURL string) (Stats, error) {
	docs, err := in.feeds.Fetch(ctx, feedURL)
	if err != nil {
		return Stats{}, err
	}
	n, err := in.IngestDocuments(ctx, docs)
	return Stats{Documents: len(docs), Chunks: n}, err
}

// IngestDocuments chunks, embeds and stores docs. It returns the number of
// chunks written.
func (in *Ingester) IngestDocuments(ctx context.Context, docs []Document) (int, error) {
	chunker := NewChunker(in.opts.ChunkSize)
	var records []knowledge.Record
	for _, d := range docs {
		records = append(records, chunker.Chunk(in.opts.Collection, d)...)
	}

	written := 0
	for i := 0; i < len(records); i += embedBatch {
		batch := records[i:min(i+embedBatch, len(records))]
		texts := make([]string, len(batch))
		for j, r := range batch {
			texts[j] = embeddingText(r)
		}
		vectors, err := in.embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vectors), len(batch))
		}

		items := make([]knowledge.VectorItem, len(batch))
		for j, r := range batch {
			items[j] = knowledge.VectorItem{Record: r, Embedding: vectors[j]}
		}
		if err := in.index.Add(ctx, items); err != nil {
			return written, fmt.Errorf("failed to store chunks: %w", err)
		}
		written += len(items)
		in.logger.Debug("stored chunk batch", zap.Int("count", len(items)), zap.Int("total", written))
	}
	return written, nil
}

func (in *Ingester) loadFile(root, rel string) ([]Document, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	source := in.sourceFor(root, rel)

	switch KindOf(rel) {
	case KindMarkdown:
		doc := ParseMarkdown(source, content)
		if doc.Title == "" {
			doc.Title = titleFromPath(rel)
		}
		return []Document{doc}, nil
	case KindHTML:
		doc, err := in.converter.Convert(source, content)
		if err != nil {
			return nil, err
		}
		if doc.Title == "" {
			doc.Title = titleFromPath(rel)
		}
		return []Document{doc}, nil
	case KindFeed:
		return in.feeds.Parse(bytes.NewReader(content), source)
	case KindText:
		return []Document{PlainText(source, titleFromPath(rel), string(content))}, nil
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(rel))
	}
}

// sourceFor returns BaseURL/rel when a base is configured, else a file URL.
func (in *Ingester) sourceFor(root, rel string) string {
	if base := strings.TrimRight(strings.TrimSpace(in.opts.BaseURL), "/"); base != "" {
		return base + "/" + rel
	}
	abs, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		abs = filepath.Join(root, rel)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// embeddingText prefixes the section title so headings count in similarity.
func embeddingText(r knowledge.Record) string {
	if r.Title == "" || strings.HasPrefix(r.Text, r.Title) {
		return r.Text
	}
	return r.Title + "\n" + r.Text
}
