package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefdoc/internal/knowledge"
)

func fixedRanker(year int) *Ranker {
	return &Ranker{Now: func() time.Time { return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC) }}
}

func TestRecencyPenalty(t *testing.T) {
	r := fixedRanker(2025)

	assert.Equal(t, 0.0, r.RecencyPenalty("no years here"))
	assert.Equal(t, 0.0, r.RecencyPenalty("updated in 2025"))
	assert.Equal(t, 0.5, r.RecencyPenalty("published 2023"))
	assert.Equal(t, 0.25, r.RecencyPenalty("from 2010, revised 2024"), "newest year wins")
	assert.Equal(t, 2.0, r.RecencyPenalty("circa 1998"))
	assert.Equal(t, 0.0, r.RecencyPenalty("effective 2027"))
	assert.Equal(t, 0.0, r.RecencyPenalty("form 12024 and code 3020"))
}

func TestAdjustedScore_MissingScoreIsZero(t *testing.T) {
	r := fixedRanker(2025)
	assert.Equal(t, -1.0, r.AdjustedScore(knowledge.Passage{Text: "as of 2021"}))
	assert.InDelta(t, 0.9, r.AdjustedScore(knowledge.Passage{Text: "x", Score: knowledge.ScoreOf(0.9)}), 1e-9)
}

func TestAdjustedScore_RecencyMonotonic(t *testing.T) {
	r := fixedRanker(2025)
	for older := 1990; older < 2030; older++ {
		newer := older + 1
		po := knowledge.Passage{Text: fmt.Sprintf("Guidance updated %d.", older), Score: knowledge.ScoreOf(0.7)}
		pn := knowledge.Passage{Text: fmt.Sprintf("Guidance updated %d.", newer), Score: knowledge.ScoreOf(0.7)}
		assert.GreaterOrEqual(t, r.AdjustedScore(pn), r.AdjustedScore(po), "years %d vs %d", newer, older)
	}
}

func TestRank_StableOnTies(t *testing.T) {
	r := fixedRanker(2025)
	in := []knowledge.Passage{
		{Text: "a", Score: knowledge.ScoreOf(0.5)},
		{Text: "b", Score: knowledge.ScoreOf(0.9)},
		{Text: "c", Score: knowledge.ScoreOf(0.5)},
		{Text: "d"},
		{Text: "e", Score: knowledge.ScoreOf(0.5)},
		{Text: "f"},
	}

	got := r.Rank(in)
	var order []string
	for _, p := range got {
		order = append(order, p.Text)
	}
	assert.Equal(t, []string{"b", "a", "c", "e", "d", "f"}, order)
	assert.Equal(t, 0.0, in[0].AdjustedScore, "input is not mutated")
}

func TestRank_OldContentSinks(t *testing.T) {
	r := fixedRanker(2025)
	got := r.Rank([]knowledge.Passage{
		{Text: "Rules as of 2015.", Score: knowledge.ScoreOf(0.9)},
		{Text: "Current rules.", Score: knowledge.ScoreOf(0.4)},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "Current rules.", got[0].Text)
	assert.InDelta(t, -1.1, got[1].AdjustedScore, 1e-9)
}
