package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"briefdoc/internal/config"
	"briefdoc/internal/retry"
)

// NewEmbedder builds the embedder named by the embedding section of the
// configuration. Calls are retried under policy; batch size and delay fall
// back to the provider defaults when the section leaves them at zero.
func NewEmbedder(ctx context.Context, ec config.EmbeddingConfig, policy retry.Policy) (Embedder, error) {
	switch strings.ToLower(strings.TrimSpace(ec.Provider)) {
	case "", "gemini":
		return NewGeminiEmbedder(ctx, ec, policy)
	case "openai":
		return NewOpenAIEmbedder(ec, policy), nil
	case "ollama":
		return NewOllamaEmbedder(ec, policy), nil
	default:
		return nil, fmt.Errorf("embedding provider %q is not supported (gemini, openai, ollama)", ec.Provider)
	}
}

// batcher splits embedding work into requests of at most size texts with
// delay between them.
type batcher struct {
	size  int
	delay time.Duration
}

func newBatcher(ec config.EmbeddingConfig, size int, delay time.Duration) batcher {
	if ec.BatchSize > 0 {
		size = ec.BatchSize
	}
	if ec.BatchDelay > 0 {
		delay = ec.BatchDelay
	}
	return batcher{size: size, delay: delay}
}

// run calls embed once per batch and checks that every batch comes back
// with one vector per text.
func (b batcher) run(ctx context.Context, texts []string, embed func(ctx context.Context, batch []string) ([][]float32, error)) ([][]float32, error) {
	size := b.size
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if start > 0 && !waitOrCancel(ctx, b.delay) {
			return nil, ctx.Err()
		}
		batch := texts[start:min(start+size, len(texts))]
		vecs, err := embed(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(vecs), len(batch))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func waitOrCancel(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
