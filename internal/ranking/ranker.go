// Package ranking orders passages by backend relevance adjusted for the age
// of the content and buckets them by source domain.
package ranking

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"briefdoc/internal/knowledge"
)

const (
	penaltyPerYear = 0.25
	maxPenalty     = 2.0

	// DefaultSourceLabel groups passages that carry no usable host.
	DefaultSourceLabel = "Knowledge Base"
)

var yearPattern = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)

// Ranker scores passages against a fixed clock.
type Ranker struct {
	Now func() time.Time
}

func New() *Ranker {
	return &Ranker{Now: time.Now}
}

func (r *Ranker) currentYear() int {
	if r == nil || r.Now == nil {
		return time.Now().Year()
	}
	return r.Now().Year()
}

// RecencyPenalty is 0.25 per year between the most recent year mentioned in
// text and the current year, capped at 2. Text without a year, or whose
// newest year lies in the future, has no penalty.
func (r *Ranker) RecencyPenalty(text string) float64 {
	newest := 0
	for _, m := range yearPattern.FindAllString(text, -1) {
		y, err := strconv.Atoi(m)
		if err == nil && y > newest {
			newest = y
		}
	}
	if newest == 0 {
		return 0
	}
	years := r.currentYear() - newest
	if years <= 0 {
		return 0
	}
	return min(penaltyPerYear*float64(years), maxPenalty)
}

// AdjustedScore is the backend score (0 when absent) minus the recency penalty.
func (r *Ranker) AdjustedScore(p knowledge.Passage) float64 {
	return p.BaseScore() - r.RecencyPenalty(p.Text)
}

// Rank returns a copy of passages with AdjustedScore set, sorted by it
// descending. Equal scores keep their input order.
func (r *Ranker) Rank(passages []knowledge.Passage) []knowledge.Passage {
	out := make([]knowledge.Passage, len(passages))
	copy(out, passages)
	for i := range out {
		out[i].AdjustedScore = r.AdjustedScore(out[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AdjustedScore > out[j].AdjustedScore
	})
	return out
}
