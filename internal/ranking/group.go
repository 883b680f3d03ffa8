package ranking

import (
	"sort"

	"briefdoc/internal/knowledge"
)

// SourceGroup is the excerpt bucket for one source domain.
type SourceGroup struct {
	Label    string
	Passages []knowledge.Passage
}

// SourceDomain returns the grouping label for a source: its host without
// "www.", or DefaultSourceLabel.
func SourceDomain(source string) string {
	if host := knowledge.Host(source); host != "" {
		return host
	}
	return DefaultSourceLabel
}

// GroupBySource buckets passages by SourceDomain, sorts each bucket by
// AdjustedScore descending (stable) and keeps at most capPerSource entries.
// Groups are ordered by their best adjusted score, ties by first appearance.
// A cap below 1 is treated as 1.
func GroupBySource(passages []knowledge.Passage, capPerSource int) []SourceGroup {
	if capPerSource < 1 {
		capPerSource = 1
	}

	index := map[string]int{}
	var groups []SourceGroup
	for _, p := range passages {
		label := SourceDomain(p.Source)
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, SourceGroup{Label: label})
		}
		groups[i].Passages = append(groups[i].Passages, p)
	}

	for i := range groups {
		ps := groups[i].Passages
		sort.SliceStable(ps, func(a, b int) bool { return ps[a].AdjustedScore > ps[b].AdjustedScore })
		if len(ps) > capPerSource {
			groups[i].Passages = ps[:capPerSource]
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Passages[0].AdjustedScore > groups[b].Passages[0].AdjustedScore
	})
	return groups
}

// Sources lists the distinct non-empty sources in first-appearance order.
func Sources(passages []knowledge.Passage) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range passages {
		if p.Source == "" || seen[p.Source] {
			continue
		}
		seen[p.Source] = true
		out = append(out, p.Source)
	}
	return out
}
