package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"briefdoc/internal/config"
	"briefdoc/internal/retry"
)

const (
	defaultOllamaURL     = "http://127.0.0.1:11434"
	ollamaEmbedPath      = "/api/embed"
	ollamaBatchSize      = 64
	ollamaBatchDelay     = 200 * time.Millisecond
	defaultOllamaTimeout = 90 * time.Second
)

// OllamaEmbedder posts chunk batches to an Ollama server. Inputs longer than
// the model context are truncated server-side instead of failing the batch.
type OllamaEmbedder struct {
	client    *http.Client
	endpoint  string
	model     string
	dimension int
	batches   batcher
	policy    retry.Policy
}

type ollamaEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Truncate   bool     `json:"truncate"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder(ec config.EmbeddingConfig, policy retry.Policy) *OllamaEmbedder {
	timeout := ec.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	return &OllamaEmbedder{
		client:    &http.Client{Timeout: timeout},
		endpoint:  ollamaEndpoint(ec.BaseURL),
		model:     strings.TrimSpace(ec.Model),
		dimension: ec.Dimension,
		batches:   newBatcher(ec, ollamaBatchSize, ollamaBatchDelay),
		policy:    policy,
	}
}

func ollamaEndpoint(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultOllamaURL
	}
	if strings.HasSuffix(base, ollamaEmbedPath) {
		return base
	}
	return base + ollamaEmbedPath
}

// Dimension is the configured size, or the size of the first vector
// returned when none was configured.
func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if o.model == "" {
		return nil, fmt.Errorf("ollama: embedding.model is required")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out, err := o.batches.run(ctx, texts, func(ctx context.Context, batch []string) ([][]float32, error) {
		var vecs [][]float32
		err := retry.Do(ctx, o.policy, func(ctx context.Context) error {
			var err error
			vecs, err = o.post(ctx, batch)
			return err
		})
		return vecs, err
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if o.dimension <= 0 {
		o.dimension = len(out[0])
	}
	return out, nil
}

// post sends one batch. Server errors are retried; client errors and
// undecodable replies are not.
func (o *OllamaEmbedder) post(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{
		Model:      o.model,
		Input:      batch,
		Truncate:   true,
		Dimensions: o.dimension,
	})
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return parsed.Embeddings, nil
}
