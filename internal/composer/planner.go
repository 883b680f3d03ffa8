package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"briefdoc/internal/knowledge"
	"briefdoc/internal/llm"
	"briefdoc/internal/logging"
	"briefdoc/internal/textclean"
)

const (
	maxPlanPassages = 14
	maxPassageRunes = 700
	maxLoggedOutput = 500
)

var errEmptyPlan = errors.New("plan has no usable fields")

const planInstructions = `You compose short knowledge-base briefings.
Rules:
- Use ONLY the numbered passages you are given. Do not invent facts, links, numbers or names.
- Quotes must be copied verbatim from a passage; you may trim them at word boundaries.
- Reply with a single JSON object and nothing else: no prose, no markdown fences.
- Use exactly the keys of the declared shape. Omit a key instead of inventing content for it.`

const blurbInstructions = `You write one-sentence blurbs for knowledge-base highlights.
Rules:
- Use ONLY the sentence you are summarizing. Do not add facts.
- Reply with a JSON array of strings and nothing else, one blurb per input sentence, in input order.`

// Planner asks a generative backend for a CompositionPlan.
type Planner struct {
	client llm.Client
	logger *zap.Logger
}

func NewPlanner(client llm.Client, logger *zap.Logger) *Planner {
	return &Planner{client: client, logger: logging.OrNop(logger)}
}

// Plan requests a generative plan grounded in passages. It returns false on
// any failure: backend error, output that does not parse as the declared
// shape, or a plan left empty after normalization. The caller then falls
// back to Fallback.
func (p *Planner) Plan(ctx context.Context, brief string, passages []knowledge.Passage, maxItems int) (Plan, bool) {
	if p == nil || p.client == nil || len(passages) == 0 || maxItems <= 0 {
		return Plan{}, false
	}

	raw, err := p.client.Complete(ctx, llm.Prompt{
		System: planInstructions,
		User:   buildPlanPrompt(brief, passages, maxItems),
		JSON:   true,
	})
	if err != nil {
		p.logger.Warn("composition request failed, using deterministic plan", zap.Error(err))
		return Plan{}, false
	}

	plan, err := ParsePlan(raw, maxItems)
	if err != nil {
		p.logger.Warn("composition output rejected, using deterministic plan",
			zap.Error(err),
			zap.String("raw", textclean.Truncate(raw, maxLoggedOutput)))
		return Plan{}, false
	}
	return plan, true
}

// ParsePlan validates model output against the plan schema and normalizes
// it. Unknown keys, wrong types, colors outside the palette and an empty
// result are errors.
func ParsePlan(raw string, maxItems int) (Plan, error) {
	body := llm.ExtractJSON(raw)
	if body == "" {
		return Plan{}, fmt.Errorf("no JSON object in output")
	}

	var decoded Plan
	if err := decodeValidated(planSchema, body, &decoded); err != nil {
		return Plan{}, fmt.Errorf("plan: %w", err)
	}

	decoded.Mode = ModeGenerative
	plan := Normalize(decoded, maxItems)
	if plan.Empty() {
		return Plan{}, errEmptyPlan
	}
	return plan, nil
}

// SummarizeToBlurbs asks for one blurb per sentence, in order. It returns
// false unless exactly sentenceCount strings come back. A blurb outside the
// card bounds is returned as "" so the caller can fall back for that item.
func (p *Planner) SummarizeToBlurbs(ctx context.Context, brief string, sentences []string, sentenceCount int) ([]string, bool) {
	if p == nil || p.client == nil || sentenceCount <= 0 || len(sentences) < sentenceCount {
		return nil, false
	}
	sentences = sentences[:sentenceCount]

	raw, err := p.client.Complete(ctx, llm.Prompt{
		System: blurbInstructions,
		User:   buildBlurbPrompt(brief, sentences),
		JSON:   true,
	})
	if err != nil {
		p.logger.Warn("blurb request failed, trimming locally", zap.Error(err))
		return nil, false
	}

	blurbs, err := parseBlurbs(raw, sentenceCount)
	if err != nil {
		p.logger.Warn("blurb output rejected, trimming locally",
			zap.Error(err),
			zap.String("raw", textclean.Truncate(raw, maxLoggedOutput)))
		return nil, false
	}
	return blurbs, true
}

func parseBlurbs(raw string, n int) ([]string, error) {
	body := llm.ExtractJSONArray(raw)
	if body == "" {
		return nil, fmt.Errorf("no JSON array in output")
	}
	var decoded []string
	if err := decodeValidated(blurbsSchema, body, &decoded); err != nil {
		return nil, fmt.Errorf("blurbs: %w", err)
	}
	if len(decoded) != n {
		return nil, fmt.Errorf("expected %d blurbs, got %d", n, len(decoded))
	}
	out := make([]string, n)
	for i, b := range decoded {
		out[i] = bound(b, minBlurb, maxBlurb)
	}
	return out, nil
}

func buildPlanPrompt(brief string, passages []knowledge.Passage, maxItems int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Brief: %s\n\n", textclean.Collapse(brief))
	sb.WriteString("Passages:\n")
	for i, ps := range passages {
		if i >= maxPlanPassages {
			break
		}
		fmt.Fprintf(&sb, "[%d]", i+1)
		if host := knowledge.Host(ps.Source); host != "" {
			fmt.Fprintf(&sb, " (%s)", host)
		}
		fmt.Fprintf(&sb, " %s\n", textclean.Truncate(textclean.Collapse(ps.Text), maxPassageRunes))
	}

	sb.WriteString("\nDeclared shape:\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"intro\": string, optional, at most 600 characters,\n")
	fmt.Fprintf(&sb, "  \"highlights\": at most %d strings, each %d-%d characters,\n", maxItems, minHighlight, maxHighlight)
	fmt.Fprintf(&sb, "  \"cards\": at most %d objects {\"title\": %d-%d characters, \"blurb\": %d-%d characters, \"color\": one of %s},\n",
		MaxCards, minCardTitle, maxCardTitle, minBlurb, maxBlurb, strings.Join(Palette, "|"))
	fmt.Fprintf(&sb, "  \"quotes\": at most %d objects {\"text\": verbatim, %d-%d characters, \"domain\": optional source host}\n",
		MaxQuotes, minQuote, maxQuote)
	sb.WriteString("}\n")
	return sb.String()
}

func buildBlurbPrompt(brief string, sentences []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Brief: %s\n\n", textclean.Collapse(brief))
	fmt.Fprintf(&sb, "Write exactly %d blurbs of %d-%d characters for these sentences:\n", len(sentences), minBlurb, maxBlurb)
	for i, s := range sentences {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, textclean.Collapse(s))
	}
	return sb.String()
}
