package knowledge

import (
	"context"
	"fmt"
	"strings"
)

// VectorRetriever embeds the query text and searches a local vector index.
type VectorRetriever struct {
	embedder Embedder
	index    Index
}

func NewVectorRetriever(em Embedder, idx Index) *VectorRetriever {
	return &VectorRetriever{embedder: em, index: idx}
}

// Retrieve finds records semantically similar to the provided query text.
func (r *VectorRetriever) Retrieve(ctx context.Context, collectionID, query string, topK int) ([]Passage, error) {
	if r.embedder == nil || r.index == nil {
		return nil, fmt.Errorf("embedder or index not initialized")
	}
	if strings.TrimSpace(query) == "" || topK <= 0 {
		return nil, nil
	}

	// 1. Get embedding for the query text
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	// 2. Search index
	hits, err := r.index.Search(ctx, collectionID, vectors[0], topK)
	if err != nil {
		return nil, err
	}

	out := make([]Passage, 0, len(hits))
	for _, h := range hits {
		text := h.Record.Text
		if h.Record.Title != "" && !strings.HasPrefix(text, h.Record.Title) {
			text = h.Record.Title + "\n" + text
		}
		out = append(out, Passage{
			Text:   text,
			Score:  ScoreOf(h.Score),
			Source: h.Record.Source,
		})
	}
	return out, nil
}
