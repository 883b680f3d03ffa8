package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"briefdoc/internal/config"
	"briefdoc/internal/retry"
)

const (
	geminiBatchSize  = 50
	geminiBatchDelay = 700 * time.Millisecond
)

// GeminiEmbedder implements Embedder using Google's Gemini API. Only rate
// limit errors are retried.
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
	batches   batcher
	policy    retry.Policy
}

func NewGeminiEmbedder(ctx context.Context, ec config.EmbeddingConfig, policy retry.Policy) (*GeminiEmbedder, error) {
	cc := &genai.ClientConfig{
		APIKey:  ec.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if ec.Timeout > 0 {
		cc.HTTPOptions.Timeout = &ec.Timeout
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiEmbedder{
		client:    client,
		model:     ec.Model,
		dimension: ec.Dimension,
		batches:   newBatcher(ec, geminiBatchSize, geminiBatchDelay),
		policy:    policy,
	}, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var cfg *genai.EmbedContentConfig
	if g.dimension > 0 {
		dim := int32(g.dimension)
		cfg = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}

	out, err := g.batches.run(ctx, texts, func(ctx context.Context, batch []string) ([][]float32, error) {
		contents := make([]*genai.Content, 0, len(batch))
		for _, text := range batch {
			contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
		}

		var res *genai.EmbedContentResponse
		err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
			var err error
			res, err = g.client.Models.EmbedContent(ctx, g.model, contents, cfg)
			if err != nil && !isRateLimitError(err) {
				return retry.Permanent(err)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
		vecs := make([][]float32, 0, len(res.Embeddings))
		for _, emb := range res.Embeddings {
			vecs = append(vecs, emb.Values)
		}
		return vecs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	return out, nil
}

func (g *GeminiEmbedder) Dimension() int {
	return g.dimension
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || strings.Contains(s, "quota")
}
