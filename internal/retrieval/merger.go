// Package retrieval fans a brief's query variants out to a knowledge
// backend and merges the answers into one clean, deduplicated passage set.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"briefdoc/internal/knowledge"
	"briefdoc/internal/logging"
	"briefdoc/internal/textclean"
)

// Phase names which retrieval attempt produced the final passage set.
type Phase string

const (
	PhaseBroad           Phase = "broad"
	PhaseBroadAligned    Phase = "broad_aligned"
	PhaseTightAligned    Phase = "tight_aligned"
	PhaseTightUnfiltered Phase = "tight_unfiltered"
	PhaseBroadUnfiltered Phase = "broad_unfiltered"
)

// Stats describes one merge for the pipeline report.
type Stats struct {
	Queries       int
	FailedQueries int
	Returned      int
	Sanitized     int
	Duplicates    int
	Kept          int
	Phase         Phase
}

func (s *Stats) add(o Stats) {
	s.Queries += o.Queries
	s.FailedQueries += o.FailedQueries
	s.Returned += o.Returned
	s.Sanitized += o.Sanitized
	s.Duplicates += o.Duplicates
	s.Kept = o.Kept
}

// Merger merges the results of several queries against one collection.
type Merger struct {
	retriever  knowledge.Retriever
	collection string
	logger     *zap.Logger

	// Relaxed selects the lenient sanitizer thresholds.
	Relaxed bool
}

func NewMerger(r knowledge.Retriever, collectionID string, logger *zap.Logger) *Merger {
	return &Merger{
		retriever:  r,
		collection: collectionID,
		logger:     logging.OrNop(logger),
	}
}

// RetrieveMerged calls the backend once per query with the same topK. A
// failing query contributes nothing. Surviving passages are sanitized and
// deduplicated by Fingerprint, first occurrence wins.
func (m *Merger) RetrieveMerged(ctx context.Context, queries []string, topK int) ([]knowledge.Passage, Stats) {
	var stats Stats
	seen := map[string]bool{}
	out := make([]knowledge.Passage, 0, len(queries)*topK)

	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		stats.Queries++
		results, err := m.retriever.Retrieve(ctx, m.collection, q, topK)
		if err != nil {
			stats.FailedQueries++
			m.logger.Warn("retrieval query failed",
				zap.String("collection", m.collection),
				zap.String("query", q),
				zap.Error(err))
			continue
		}
		stats.Returned += len(results)

		for _, p := range results {
			p.Text = textclean.Sanitize(p.Text, m.Relaxed)
			if p.Text == "" {
				stats.Sanitized++
				continue
			}
			fp := Fingerprint(p)
			if seen[fp] {
				stats.Duplicates++
				continue
			}
			seen[fp] = true
			out = append(out, p)
		}
	}

	stats.Kept = len(out)
	stats.Phase = PhaseBroad
	m.logger.Debug("retrieval merged",
		zap.Int("queries", stats.Queries),
		zap.Int("failed", stats.FailedQueries),
		zap.Int("returned", stats.Returned),
		zap.Int("kept", stats.Kept))
	return out, stats
}

// RetrieveAligned runs the two-phase strategy: the broad queries first, then
// a tight query made of terms when no broad passage mentions any term.
// When nothing aligns in either phase the unfiltered tight result is used,
// then the unfiltered broad result.
func (m *Merger) RetrieveAligned(ctx context.Context, queries, terms []string, topK int) ([]knowledge.Passage, Stats) {
	broad, stats := m.RetrieveMerged(ctx, queries, topK)
	terms = normalizeTerms(terms)
	if len(terms) == 0 || (stats.Queries > 0 && stats.FailedQueries == stats.Queries) {
		return broad, stats
	}

	if aligned := matchTerms(broad, terms); len(aligned) > 0 {
		stats.Kept = len(aligned)
		stats.Phase = PhaseBroadAligned
		return aligned, stats
	}

	tight, tightStats := m.RetrieveMerged(ctx, []string{strings.Join(terms, " ")}, topK)
	stats.add(tightStats)

	if aligned := matchTerms(tight, terms); len(aligned) > 0 {
		stats.Kept = len(aligned)
		stats.Phase = PhaseTightAligned
		return aligned, stats
	}
	if len(tight) > 0 {
		stats.Phase = PhaseTightUnfiltered
		return tight, stats
	}
	stats.Kept = len(broad)
	stats.Phase = PhaseBroadUnfiltered
	return broad, stats
}

// Fingerprint identifies a passage by its normalized text and source.
func Fingerprint(p knowledge.Passage) string {
	key := strings.ToLower(textclean.Collapse(p.Text)) + "\x00" + strings.TrimSpace(p.Source)
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}
