package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"briefdoc/internal/config"
	"briefdoc/internal/knowledge"
	"briefdoc/internal/llm"
	"briefdoc/internal/logging"
	"briefdoc/internal/retry"
	"briefdoc/internal/storage"
)

// app is everything one command needs, built from a single config value.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *storage.SQLiteStore
	closed []func()
}

func setup() (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}
	a.onClose(func() { _ = store.Close() })
	a.onClose(func() { _ = logger.Sync() })
	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closed = append(a.closed, fn)
}

func (a *app) Close() {
	for i := len(a.closed) - 1; i >= 0; i-- {
		a.closed[i]()
	}
}

func (a *app) embedder(ctx context.Context) (knowledge.Embedder, error) {
	policy := retry.DefaultPolicy()
	if a.cfg.Embedding.Attempts > 0 {
		policy.Attempts = a.cfg.Embedding.Attempts
	}
	if p := a.cfg.Embedding.Provider; p == "" || p == "gemini" {
		policy.InitialInterval = 2 * time.Second
		policy.MaxInterval = 10 * time.Second
	}
	return knowledge.NewEmbedder(ctx, a.cfg.Embedding, policy)
}

// retriever returns nil, without error, when the backend cannot be built;
// generation then proceeds as if retrieval were unavailable.
func (a *app) retriever(ctx context.Context) knowledge.Retriever {
	r := a.cfg.Retrieval
	switch r.Backend {
	case "http":
		policy := retry.DefaultPolicy()
		if r.Attempts > 0 {
			policy.Attempts = r.Attempts
		}
		return knowledge.NewHTTPRetriever(r.Endpoint, r.APIKey, r.Timeout, policy)
	case "", "sqlite":
		em, err := a.embedder(ctx)
		if err != nil {
			a.logger.Warn("embedder unavailable, retrieval disabled", zap.Error(err))
			return nil
		}
		return knowledge.NewVectorRetriever(em, a.store)
	default:
		a.logger.Warn("unknown retrieval backend, retrieval disabled", zap.String("backend", r.Backend))
		return nil
	}
}

// llmClient returns nil when no model is configured: composition is then
// deterministic only.
func (a *app) llmClient(ctx context.Context) llm.Client {
	l := a.cfg.LLM
	client, err := llm.New(ctx, llm.Settings{
		Provider: l.Provider,
		Model:    l.Model,
		APIKey:   l.APIKey,
		BaseURL:  l.BaseURL,
		Timeout:  l.Timeout,
		Attempts: l.Attempts,
	})
	if err != nil {
		a.logger.Info("generative backend not configured, using deterministic composition", zap.Error(err))
		return nil
	}
	return client
}

func (a *app) sink(ctx context.Context) (storage.Sink, error) {
	s := a.cfg.Sink
	switch s.Kind {
	case "", "sqlite":
		return a.store, nil
	case "postgres":
		pg, err := storage.NewPostgresSink(ctx, s.DSN)
		if err != nil {
			return nil, err
		}
		a.onClose(pg.Close)
		return pg, nil
	case "nats":
		ns, err := storage.NewNATSSink(s.DSN, s.Subject)
		if err != nil {
			return nil, err
		}
		a.onClose(ns.Close)
		return ns, nil
	default:
		return nil, fmt.Errorf("unsupported sink kind: %s", s.Kind)
	}
}
