package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"briefdoc/internal/config"
	"briefdoc/internal/retry"
)

const (
	openAIBatchSize  = 64
	openAIBatchDelay = 400 * time.Millisecond
)

// OpenAIEmbedder implements Embedder with the openai-go SDK. Any
// OpenAI-compatible endpoint works through the configured base URL; the SDK
// does the retrying.
type OpenAIEmbedder struct {
	client    openai.Client
	apiKey    string
	model     string
	dimension int
	batches   batcher
}

func NewOpenAIEmbedder(ec config.EmbeddingConfig, policy retry.Policy) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(ec.APIKey)}
	if policy.Attempts > 0 {
		opts = append(opts, option.WithMaxRetries(policy.Attempts-1))
	}
	if ec.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(ec.Timeout))
	}
	if strings.TrimSpace(ec.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(ec.BaseURL))
	}
	return &OpenAIEmbedder{
		client:    openai.NewClient(opts...),
		apiKey:    ec.APIKey,
		model:     ec.Model,
		dimension: ec.Dimension,
		batches:   newBatcher(ec, openAIBatchSize, openAIBatchDelay),
	}
}

func (o *OpenAIEmbedder) Dimension() int {
	return o.dimension
}

func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if strings.TrimSpace(o.apiKey) == "" {
		return nil, fmt.Errorf("openai: embedding.api_key is required")
	}
	if strings.TrimSpace(o.model) == "" {
		return nil, fmt.Errorf("openai: embedding.model is required")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return o.batches.run(ctx, texts, o.embedBatch)
}

func (o *OpenAIEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: batch},
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dimension > 0 {
		params.Dimensions = openai.Int(int64(o.dimension))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request failed: %w", err)
	}

	out := make([][]float32, len(batch))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(batch) {
			continue
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		out[item.Index] = vec
	}
	for i := range out {
		if len(out[i]) == 0 {
			return nil, fmt.Errorf("embedding missing at index %d", i)
		}
	}
	return out, nil
}
