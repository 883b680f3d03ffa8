package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"briefdoc/internal/knowledge"
)

func TestAlignToTerms_NeverStarves(t *testing.T) {
	in := []knowledge.Passage{{Text: assetText}, {Text: scheduleE}}

	got, applied := AlignToTerms(in, []string{"SCHEDULE E"})
	assert.True(t, applied)
	assert.Equal(t, []knowledge.Passage{{Text: scheduleE}}, got)

	got, applied = AlignToTerms(in, []string{"zoning"})
	assert.False(t, applied)
	assert.Equal(t, in, got)

	got, applied = AlignToTerms(in, []string{" ", ""})
	assert.False(t, applied)
	assert.Equal(t, in, got)
}

func TestFilterAllowedDomains(t *testing.T) {
	in := []knowledge.Passage{
		{Text: "a", Source: "https://www.irs.gov/forms"},
		{Text: "b", Source: "https://selling-guide.fanniemae.com/b3"},
		{Text: "c", Source: "https://blog.example.com/post"},
		{Text: "d", Source: "doc-17"},
		{Text: "e", Source: "https://notfanniemae.com/x"},
	}

	got := FilterAllowedDomains(in, []string{"IRS.gov", "fanniemae.com"})
	var texts []string
	for _, p := range got {
		texts = append(texts, p.Text)
	}
	assert.Equal(t, []string{"a", "b"}, texts)

	assert.Equal(t, in, FilterAllowedDomains(in, nil))
	assert.Empty(t, FilterAllowedDomains(in, []string{"gov.uk"}))
}
