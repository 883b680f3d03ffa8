// Package llm wraps the generative-model backends behind one small interface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Prompt is a single system/user exchange.
type Prompt struct {
	System string
	User   string
	// JSON asks the backend for a JSON-only response when it supports that.
	JSON bool
}

// Client completes a prompt and returns the raw model text.
type Client interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Settings configures a concrete Client.
type Settings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
	Attempts int
}

// New builds the client for s.Provider.
func New(ctx context.Context, s Settings) (Client, error) {
	if strings.TrimSpace(s.APIKey) == "" {
		return nil, NewFatalError(fmt.Errorf("llm api key missing; provide llm.api_key or BRIEFDOC_API_KEY"))
	}
	if strings.TrimSpace(s.Model) == "" {
		return nil, NewFatalError(fmt.Errorf("llm model is required"))
	}

	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", "gemini":
		return NewGeminiClient(ctx, s)
	case "openai":
		return NewOpenAIClient(s), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", s.Provider)
	}
}
