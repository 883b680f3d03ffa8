package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"briefdoc/internal/retry"
)

// GeminiClient implements Client with Gemini text generation.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	policy  retry.Policy
}

func NewGeminiClient(ctx context.Context, s Settings) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	policy := retry.DefaultPolicy()
	if s.Attempts > 0 {
		policy.Attempts = s.Attempts
	}
	return &GeminiClient{
		client:  client,
		model:   s.Model,
		timeout: s.Timeout,
		policy:  policy,
	}, nil
}

func (g *GeminiClient) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	if strings.TrimSpace(prompt.System) != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}
	if prompt.JSON {
		config.ResponseMIMEType = "application/json"
	}

	var text string
	err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt.User), config)
		if err != nil {
			classified := classifyGeminiError(err)
			if IsFatal(classified) {
				return retry.Permanent(classified)
			}
			return classified
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", NewTransientError(fmt.Errorf("gemini returned an empty response"))
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewFatalError(err)
	}
	return NewTransientError(err)
}
