package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"briefdoc/internal/knowledge"
)

func scored(text, source string, s float64) knowledge.Passage {
	return knowledge.Passage{Text: text, Source: source, Score: knowledge.ScoreOf(s), AdjustedScore: s}
}

func TestGroupBySource_CapsPerDomain(t *testing.T) {
	in := []knowledge.Passage{
		scored("a1", "https://a.example/1", 0.4),
		scored("a2", "https://www.a.example/2", 0.9),
		scored("a3", "https://a.example/3", 0.6),
		scored("b1", "https://b.example/1", 0.5),
		scored("c1", "https://c.example/1", 0.95),
		scored("d1", "https://d.example/1", 0.1),
	}

	groups := GroupBySource(in, 2)
	require.Len(t, groups, 4)

	total := 0
	for _, g := range groups {
		assert.LessOrEqual(t, len(g.Passages), 2, g.Label)
		total += len(g.Passages)
	}
	assert.LessOrEqual(t, total, 2*len(groups))

	assert.Equal(t, "c.example", groups[0].Label)
	assert.Equal(t, "a.example", groups[1].Label)
	assert.Equal(t, []string{"a2", "a3"}, []string{groups[1].Passages[0].Text, groups[1].Passages[1].Text})
	assert.Equal(t, "b.example", groups[2].Label)
	assert.Equal(t, "d.example", groups[3].Label)
}

func TestGroupBySource_TwoSameDomainThreeDistinct(t *testing.T) {
	in := []knowledge.Passage{
		scored("s1", "https://same.example/a", 0.5),
		scored("s2", "https://same.example/b", 0.5),
		scored("x", "https://x.example", 0.5),
		scored("y", "https://y.example", 0.5),
		scored("z", "https://z.example", 0.5),
	}

	groups := GroupBySource(in, 2)
	require.Len(t, groups, 4)
	assert.Equal(t, "same.example", groups[0].Label, "ties keep first appearance")
	assert.Len(t, groups[0].Passages, 2)

	total := 0
	for _, g := range groups {
		total += len(g.Passages)
	}
	assert.Equal(t, 5, total)
}

func TestGroupBySource_DefaultLabelAndCapFloor(t *testing.T) {
	in := []knowledge.Passage{
		scored("n1", "", 0.3),
		scored("n2", "chunk-7", 0.8),
	}
	groups := GroupBySource(in, 0)
	require.Len(t, groups, 1)
	assert.Equal(t, DefaultSourceLabel, groups[0].Label)
	require.Len(t, groups[0].Passages, 1)
	assert.Equal(t, "n2", groups[0].Passages[0].Text)
}

func TestSources(t *testing.T) {
	in := []knowledge.Passage{
		{Source: "https://a"}, {Source: ""}, {Source: "https://b"}, {Source: "https://a"},
	}
	assert.Equal(t, []string{"https://a", "https://b"}, Sources(in))
}
