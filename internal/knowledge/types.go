package knowledge

import (
	"context"
	"net/url"
	"strings"
)

// Passage is a unit of text returned by a knowledge-base search.
type Passage struct {
	Text string `json:"text"`
	// Score is the backend relevance score; nil when the backend sent none.
	Score  *float64 `json:"score,omitempty"`
	Source string   `json:"source,omitempty"`
	// AdjustedScore is computed by the ranker, never supplied by a backend.
	AdjustedScore float64 `json:"-"`
}

// BaseScore returns the backend score, or 0 when absent.
func (p Passage) BaseScore() float64 {
	if p.Score == nil {
		return 0
	}
	return *p.Score
}

// ScoreOf returns a pointer suitable for Passage.Score.
func ScoreOf(v float64) *float64 {
	return &v
}

// Retriever searches one knowledge-base collection.
type Retriever interface {
	Retrieve(ctx context.Context, collectionID, query string, topK int) ([]Passage, error)
}

// Embedder defines the interface for converting text to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Record is a stored knowledge-base chunk.
type Record struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	Title      string `json:"title,omitempty"`
}

// VectorItem represents a record paired with its embedding.
type VectorItem struct {
	Record    Record
	Embedding []float32
}

// ScoredRecord is a search hit with its similarity score.
type ScoredRecord struct {
	Record Record
	Score  float64
}

// Index manages the storage and retrieval of VectorItems.
type Index interface {
	Add(ctx context.Context, items []VectorItem) error
	Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]ScoredRecord, error)
}

// Host returns the lowercase host of a URL-like source without a leading
// "www.", or "" when source is empty or opaque.
func Host(source string) string {
	s := strings.TrimSpace(source)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		if strings.ContainsAny(s, " \t") || !strings.Contains(s, ".") {
			return ""
		}
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
