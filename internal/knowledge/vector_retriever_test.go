package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	err   error
	calls [][]string
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls = append(s.calls, texts)
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *stubEmbedder) Dimension() int { return 2 }

type stubIndex struct {
	hits       []ScoredRecord
	collection string
	topK       int
}

func (s *stubIndex) Add(context.Context, []VectorItem) error { return nil }

func (s *stubIndex) Search(_ context.Context, collection string, _ []float32, topK int) ([]ScoredRecord, error) {
	s.collection = collection
	s.topK = topK
	return s.hits, nil
}

func TestVectorRetriever_MapsHitsToPassages(t *testing.T) {
	em := &stubEmbedder{}
	idx := &stubIndex{hits: []ScoredRecord{
		{Record: Record{Text: "Body text", Title: "Guide", Source: "https://a.example/x"}, Score: 0.7},
		{Record: Record{Text: "Guide already leads", Title: "Guide"}, Score: 0.5},
	}}

	r := NewVectorRetriever(em, idx)
	got, err := r.Retrieve(context.Background(), "kb", "self-employed income", 4)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "kb", idx.collection)
	assert.Equal(t, 4, idx.topK)
	assert.Equal(t, [][]string{{"self-employed income"}}, em.calls)

	assert.Equal(t, "Guide\nBody text", got[0].Text)
	assert.Equal(t, "https://a.example/x", got[0].Source)
	assert.InDelta(t, 0.7, got[0].BaseScore(), 1e-9)
	assert.Equal(t, "Guide already leads", got[1].Text)
}

func TestVectorRetriever_EmptyQuery(t *testing.T) {
	em := &stubEmbedder{}
	r := NewVectorRetriever(em, &stubIndex{})
	got, err := r.Retrieve(context.Background(), "kb", "   ", 4)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, em.calls)
}

func TestVectorRetriever_EmbedError(t *testing.T) {
	r := NewVectorRetriever(&stubEmbedder{err: errors.New("quota")}, &stubIndex{})
	_, err := r.Retrieve(context.Background(), "kb", "q", 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}
