// Package generator runs one brief through retrieval, ranking, composition
// and rendering, and hands the finished fragment to a document sink.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"briefdoc/internal/composer"
	"briefdoc/internal/config"
	"briefdoc/internal/highlight"
	"briefdoc/internal/knowledge"
	"briefdoc/internal/llm"
	"briefdoc/internal/logging"
	"briefdoc/internal/metrics"
	"briefdoc/internal/query"
	"briefdoc/internal/ranking"
	"briefdoc/internal/render"
	"briefdoc/internal/retrieval"
	"briefdoc/internal/storage"
)

// DefaultTitle is used when neither the request nor the content yields one.
const DefaultTitle = "Knowledge Brief"

const salientTermCount = 5

// Document modes beyond the two composition modes.
const (
	ModeEmpty       = "empty"
	ModePlaceholder = "placeholder"
)

var errNoSink = errors.New("document sink is required")

type Request struct {
	Brief string
	// Title overrides the derived document title when set.
	Title string
}

type Result struct {
	Document   storage.Document
	Handle     storage.DocumentHandle
	Highlights []highlight.Highlight
	Plan       composer.Plan
	Report     *Report
}

// Options carries the collaborators of a Generator. Retriever and LLM may be
// nil: a missing retriever behaves like an unavailable backend and a missing
// LLM means deterministic composition only.
type Options struct {
	Retriever knowledge.Retriever
	LLM       llm.Client
	Sink      storage.Sink
	Logger    *zap.Logger
	Metrics   *metrics.Pipeline
	Ranker    *ranking.Ranker
}

// Generator holds only immutable configuration and shareable clients, so
// one instance may serve concurrent Generate calls.
type Generator struct {
	cfg       config.Config
	retriever knowledge.Retriever
	client    llm.Client
	planner   *composer.Planner
	extractor *highlight.Extractor
	ranker    *ranking.Ranker
	sink      storage.Sink
	logger    *zap.Logger
	metrics   *metrics.Pipeline
}

func New(cfg *config.Config, opts Options) (*Generator, error) {
	if opts.Sink == nil {
		return nil, errNoSink
	}
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.OrNop(opts.Logger)
	ranker := opts.Ranker
	if ranker == nil {
		ranker = ranking.New()
	}
	return &Generator{
		cfg:       *cfg,
		retriever: opts.Retriever,
		client:    opts.LLM,
		planner:   composer.NewPlanner(opts.LLM, logger),
		extractor: highlight.NewExtractor(cfg.Highlight.Keywords),
		ranker:    ranker,
		sink:      opts.Sink,
		logger:    logger,
		metrics:   opts.Metrics,
	}, nil
}

// Generate always produces a document. Missing configuration, backend
// failures, malformed model output and empty retrieval each select a
// different content path. The only returned error is a sink failure, and
// Result.Document is filled even then.
func (g *Generator) Generate(ctx context.Context, req Request) (Result, error) {
	brief := strings.TrimSpace(req.Brief)
	report := NewReport(brief)
	res := Result{Report: report}

	if err := g.cfg.Validate(); err != nil {
		missing := g.cfg.MissingKeys()
		g.logger.Warn("configuration incomplete, writing placeholder document",
			zap.Error(err), zap.Strings("missing", missing))
		report.AddSignal("config_missing", "config", SeverityCritical, err.Error(), float64(len(missing)))
		g.metrics.Fallback("config_missing")
		res.Document = g.document(brief, pickTitle(req.Title), render.RenderPlaceholder(brief, missing), ModePlaceholder)
		return g.deliver(ctx, res)
	}

	passages := g.retrieve(ctx, brief, report)
	report.passages = len(passages)
	g.metrics.PassagesKept(len(passages))
	if len(passages) == 0 {
		return g.deliverEmpty(ctx, req, brief, res)
	}

	stage := report.BeginStage("rank")
	ranked := g.ranker.Rank(passages)
	groups := ranking.GroupBySource(ranked, g.cfg.Retrieval.GroupCap)
	texts := make([]string, len(ranked))
	for i, p := range ranked {
		texts[i] = p.Text
	}
	res.Highlights = g.extractor.Extract(texts, g.cfg.Compose.MaxItems)
	report.highlights = len(res.Highlights)
	g.metrics.ObserveStage("rank", report.EndStage(stage, "ok", map[string]float64{
		"passages":   float64(len(ranked)),
		"groups":     float64(len(groups)),
		"highlights": float64(len(res.Highlights)),
	}, nil, nil))

	res.Plan = g.compose(ctx, brief, ranked, groups, res.Highlights, report)
	if res.Plan.Empty() {
		report.AddSignal("no_usable_content", "compose", SeverityWarning, "passages yielded no highlights or quotes", 0)
		return g.deliverEmpty(ctx, req, brief, res)
	}

	stage = report.BeginStage("render")
	body := render.Render(render.Input{
		Brief:   brief,
		Plan:    res.Plan,
		Sources: ranking.Sources(ranked),
		Hits:    len(ranked),
	})
	g.metrics.ObserveStage("render", report.EndStage(stage, "ok", map[string]float64{"bytes": float64(len(body))}, nil, nil))

	title := pickTitle(req.Title, firstHighlightTitle(res.Highlights), firstCardTitle(res.Plan))
	res.Document = g.document(brief, title, body, string(res.Plan.Mode))
	return g.deliver(ctx, res)
}

// retrieve builds the queries for the configured strategy, merges their
// results and applies the domain allowlist last.
func (g *Generator) retrieve(ctx context.Context, brief string, report *Report) []knowledge.Passage {
	stage := report.BeginStage("retrieve")
	if g.retriever == nil {
		report.AddSignal("retriever_missing", "retrieve", SeverityCritical, "no retrieval backend configured", 0)
		g.metrics.ObserveStage("retrieve", report.EndStage(stage, "skipped", nil, nil, nil))
		return nil
	}

	queries := g.queries(brief)
	merger := retrieval.NewMerger(g.retriever, g.cfg.KnowledgeBase.ID, g.logger)
	topK := g.cfg.Retrieval.TopK

	var passages []knowledge.Passage
	var stats retrieval.Stats
	if g.cfg.Retrieval.AlignTerms {
		passages, stats = merger.RetrieveAligned(ctx, queries, query.SalientTerms(brief, salientTermCount), topK)
	} else {
		passages, stats = merger.RetrieveMerged(ctx, queries, topK)
	}
	beforeAllowlist := len(passages)
	passages = retrieval.FilterAllowedDomains(passages, g.cfg.Retrieval.AllowedDomains)

	g.metrics.BackendErrors("retrieval", stats.FailedQueries)
	if stats.FailedQueries > 0 {
		severity := SeverityWarning
		if stats.FailedQueries == stats.Queries {
			severity = SeverityCritical
		}
		report.AddSignal("retrieval_failed", "retrieve", severity,
			fmt.Sprintf("%d of %d queries failed", stats.FailedQueries, stats.Queries), float64(stats.FailedQueries))
	}
	if removed := beforeAllowlist - len(passages); removed > 0 {
		report.AddSignal("allowlist_filtered", "retrieve", SeverityInfo,
			fmt.Sprintf("%d passages outside the allowed domains", removed), float64(removed))
	}

	status := "ok"
	if stats.Queries > 0 && stats.FailedQueries == stats.Queries {
		status = "failed"
	}
	notes := []string{string(stats.Phase)}
	g.metrics.ObserveStage("retrieve", report.EndStage(stage, status, map[string]float64{
		"queries":        float64(stats.Queries),
		"failed_queries": float64(stats.FailedQueries),
		"returned":       float64(stats.Returned),
		"sanitized_away": float64(stats.Sanitized),
		"duplicates":     float64(stats.Duplicates),
		"kept":           float64(len(passages)),
	}, notes, nil))
	return passages
}

func (g *Generator) queries(brief string) []string {
	switch g.cfg.Query.Strategy {
	case "single":
		q := query.BuildQuery(brief)
		if q == "" {
			q = query.EmptyBriefQuery
		}
		return []string{q}
	case "topic":
		return []string{query.BuildTopicQuery(brief, g.cfg.Query.Vocabulary, g.cfg.Query.DefaultTopics)}
	default:
		return query.BuildQueryVariants(brief)
	}
}

// compose tries a generative plan first when enabled, then the
// deterministic plan, with model-written blurbs when those come back valid.
func (g *Generator) compose(ctx context.Context, brief string, ranked []knowledge.Passage, groups []ranking.SourceGroup, highlights []highlight.Highlight, report *Report) composer.Plan {
	stage := report.BeginStage("compose")
	maxItems := g.cfg.Compose.MaxItems
	generative := g.cfg.Compose.Enabled && g.client != nil

	if generative {
		if plan, ok := g.planner.Plan(ctx, brief, ranked, maxItems); ok {
			plan = composer.CompleteQuotes(plan, groups)
			g.metrics.ObserveStage("compose", report.EndStage(stage, "ok", planCounters(plan), append([]string{string(plan.Mode)}, plan.LocalParts...), nil))
			return plan
		}
		g.metrics.Fallback("composition")
		report.AddSignal("composition_fallback", "compose", SeverityWarning, "generative plan unavailable, deterministic plan used", 0)
	}

	var blurbs []string
	if generative && len(highlights) > 0 {
		n := min(len(highlights), composer.MaxCards, maxItems)
		sentences := make([]string, n)
		for i := range sentences {
			sentences[i] = highlights[i].Text
		}
		if b, ok := g.planner.SummarizeToBlurbs(ctx, brief, sentences, n); ok {
			blurbs = b
		} else {
			g.metrics.Fallback("blurbs")
			report.AddSignal("blurb_fallback", "compose", SeverityInfo, "card blurbs trimmed locally", 0)
		}
	}

	plan := composer.Fallback(highlights, groups, maxItems, blurbs)
	notes := []string{string(plan.Mode)}
	if blurbs != nil {
		notes = append(notes, "model_blurbs")
	}
	g.metrics.ObserveStage("compose", report.EndStage(stage, "ok", planCounters(plan), notes, nil))
	return plan
}

func (g *Generator) deliverEmpty(ctx context.Context, req Request, brief string, res Result) (Result, error) {
	g.logger.Info("no usable passages for brief", zap.String("brief", brief))
	g.metrics.Fallback("no_passages")
	res.Plan = composer.Plan{Mode: composer.ModeDeterministic}
	res.Document = g.document(brief, pickTitle(req.Title), render.RenderEmpty(brief), ModeEmpty)
	return g.deliver(ctx, res)
}

// deliver calls the sink exactly once.
func (g *Generator) deliver(ctx context.Context, res Result) (Result, error) {
	report := res.Report
	report.Mode = res.Document.Mode

	stage := report.BeginStage("sink")
	handle, err := g.sink.CreateDocument(ctx, res.Document)
	g.metrics.ObserveStage("sink", report.EndStage(stage, "ok", nil, nil, err))
	if err != nil {
		g.metrics.SinkFailed()
		g.logger.Error("document sink failed", zap.String("title", res.Document.Title), zap.Error(err))
		report.AddSignal("sink_failed", "sink", SeverityCritical, err.Error(), 0)
		report.Finalize()
		return res, fmt.Errorf("create document: %w", err)
	}

	res.Handle = handle
	res.Document.ID = handle.ID
	report.DocumentID = handle.ID
	report.Finalize()
	g.metrics.DocumentCreated(res.Document.Mode)
	g.logger.Info("document created",
		zap.String("id", handle.ID),
		zap.String("location", handle.Location),
		zap.String("mode", res.Document.Mode),
		zap.Int("highlights", len(res.Highlights)))
	return res, nil
}

func (g *Generator) document(brief, title, body, mode string) storage.Document {
	return storage.Document{
		Title:     title,
		HTMLBody:  body,
		Status:    storage.StatusDraft,
		Brief:     brief,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
}

func planCounters(p composer.Plan) map[string]float64 {
	return map[string]float64{
		"highlights": float64(len(p.Highlights)),
		"cards":      float64(len(p.Cards)),
		"quotes":     float64(len(p.Quotes)),
	}
}

// pickTitle returns the first non-blank candidate, else DefaultTitle.
func pickTitle(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return DefaultTitle
}

func firstHighlightTitle(hs []highlight.Highlight) string {
	if len(hs) == 0 {
		return ""
	}
	return hs[0].Title
}

func firstCardTitle(p composer.Plan) string {
	if len(p.Cards) == 0 {
		return ""
	}
	return p.Cards[0].Title
}
