package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"briefdoc/internal/retry"
)

const (
	httpConnectTimeout = 3 * time.Second
	httpDefaultTimeout = 30 * time.Second
	maxResponseBytes   = 8 << 20
)

// HTTPRetriever queries a remote knowledge-base search API.
//
// Request:  POST {endpoint} {"collection_id": "...", "query": "...", "top_k": 8}
// Response: {"results": [{"text": "...", "score": 0.82, "source": "https://..."}]}
type HTTPRetriever struct {
	client   *http.Client
	endpoint string
	apiKey   string
	policy   retry.Policy
}

type httpSearchRequest struct {
	CollectionID string `json:"collection_id"`
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
}

type httpSearchResult struct {
	Text   *string  `json:"text"`
	Score  *float64 `json:"score"`
	Source string   `json:"source"`
}

type httpSearchResponse struct {
	Results []httpSearchResult `json:"results"`
}

func NewHTTPRetriever(endpoint, apiKey string, timeout time.Duration, policy retry.Policy) *HTTPRetriever {
	if timeout <= 0 {
		timeout = httpDefaultTimeout
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   httpConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   httpConnectTimeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPRetriever{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   apiKey,
		policy:   policy,
	}
}

func (r *HTTPRetriever) Retrieve(ctx context.Context, collectionID, query string, topK int) ([]Passage, error) {
	if r.endpoint == "" {
		return nil, fmt.Errorf("retrieval endpoint is required")
	}
	body, err := json.Marshal(httpSearchRequest{CollectionID: collectionID, Query: query, TopK: topK})
	if err != nil {
		return nil, err
	}

	var parsed httpSearchResponse
	err = retry.Do(ctx, r.policy, func(ctx context.Context) error {
		raw, status, err := r.post(ctx, body)
		if err != nil {
			return err
		}
		if status == http.StatusTooManyRequests || status >= 500 {
			return fmt.Errorf("retrieval request failed (%d): %s", status, strings.TrimSpace(string(raw)))
		}
		if status < 200 || status >= 300 {
			return retry.Permanent(fmt.Errorf("retrieval request failed (%d): %s", status, strings.TrimSpace(string(raw))))
		}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode retrieval response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toPassages(parsed.Results)
}

func (r *HTTPRetriever) post(ctx context.Context, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

// toPassages validates the backend shape: every result must carry a text field.
func toPassages(results []httpSearchResult) ([]Passage, error) {
	out := make([]Passage, 0, len(results))
	for i, res := range results {
		if res.Text == nil {
			return nil, fmt.Errorf("retrieval result %d has no text field", i)
		}
		out = append(out, Passage{
			Text:   *res.Text,
			Score:  res.Score,
			Source: strings.TrimSpace(res.Source),
		})
	}
	return out, nil
}
