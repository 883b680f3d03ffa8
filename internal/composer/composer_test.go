package composer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"briefdoc/internal/highlight"
	"briefdoc/internal/knowledge"
	"briefdoc/internal/llm"
	"briefdoc/internal/ranking"
	"briefdoc/internal/textclean"
)

type scriptedClient struct {
	replies []string
	err     error
	prompts []llm.Prompt
}

func (s *scriptedClient) Complete(_ context.Context, p llm.Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no reply scripted")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

var passages = []knowledge.Passage{
	{Text: "Rental income must be documented with the borrower's most recent signed federal income tax returns, including Schedule E for each property.", Source: "https://www.irs.gov/e"},
	{Text: "Lenders may use a current lease agreement when the property was acquired after the most recent tax filing period ended.", Source: "https://selling-guide.fanniemae.com/b3"},
}

const validPlan = `{
  "intro": "Rental income documentation depends on how long the borrower has owned the property.",
  "highlights": ["Rental income must be documented with the borrower's most recent signed federal income tax returns."],
  "cards": [
    {"title": "Tax returns", "blurb": "Signed federal tax returns with Schedule E document rental income for each property.", "color": "green"},
    {"title": "Lease agreements", "blurb": "A current lease can be used when the property was bought after the last tax filing."}
  ],
  "quotes": [
    {"text": "Lenders may use a current lease agreement when the property was acquired after the most recent tax filing period ended.", "domain": "selling-guide.fanniemae.com"}
  ]
}`

func TestPlanner_Plan_AcceptsValidShape(t *testing.T) {
	client := &scriptedClient{replies: []string{"```json\n" + validPlan + "\n```"}}
	p := NewPlanner(client, zap.NewNop())

	plan, ok := p.Plan(context.Background(), "rental income documentation", passages, 6)
	require.True(t, ok)
	assert.Equal(t, ModeGenerative, plan.Mode)
	assert.Len(t, plan.Highlights, 1)
	require.Len(t, plan.Cards, 2)
	assert.Equal(t, "green", plan.Cards[0].Color)
	assert.Equal(t, Palette[1], plan.Cards[1].Color, "missing color filled by position")
	require.Len(t, plan.Quotes, 1)
	assert.Equal(t, "selling-guide.fanniemae.com", plan.Quotes[0].Domain)

	require.Len(t, client.prompts, 1)
	assert.True(t, client.prompts[0].JSON)
	assert.Contains(t, client.prompts[0].User, "[1] (irs.gov)")
	assert.Contains(t, client.prompts[0].System, "verbatim")
}

func TestPlanner_Plan_RejectsMalformedOutput(t *testing.T) {
	outputs := []string{
		"Sorry, I can't help with that.",
		`{"intro": "unterminated`,
		`{"intro": 42}`,
		`{"highlights": "not an array"}`,
		`{"summary": "unknown key is rejected"}`,
		`{"cards": [{"title": "Lease agreements", "blurb": "A current lease can be used when the property was bought recently.", "color": "magenta"}]}`,
		`{"cards": [{"title": "Lease agreements", "blurb": "A current lease can be used when the property was bought recently.", "size": 2}]}`,
		`{"quotes": [{"domain": "irs.gov"}]}`,
		`{"intro": "Rental income is documented with tax returns."} {"intro": "again"}`,
		`{"highlights": ["too short"], "cards": [{"title": "x", "blurb": "y"}]}`,
		`{}`,
	}
	for _, out := range outputs {
		t.Run(out, func(t *testing.T) {
			p := NewPlanner(&scriptedClient{replies: []string{out}}, nil)
			plan, ok := p.Plan(context.Background(), "brief", passages, 6)
			assert.False(t, ok)
			assert.True(t, plan.Empty())
		})
	}
}

func TestPlanSchema_ColorsMatchPalette(t *testing.T) {
	raw, err := schemaFS.ReadFile(planSchema)
	require.NoError(t, err)
	var doc struct {
		Properties struct {
			Cards struct {
				Items struct {
					Properties struct {
						Color struct {
							Enum []string `json:"enum"`
						} `json:"color"`
					} `json:"properties"`
				} `json:"items"`
			} `json:"cards"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, Palette, doc.Properties.Cards.Items.Properties.Color.Enum)

	first, err := loadCompiledSchema(planSchema)
	require.NoError(t, err)
	second, err := loadCompiledSchema(planSchema)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestPlanner_Plan_BackendUnavailable(t *testing.T) {
	p := NewPlanner(&scriptedClient{err: llm.NewTransientError(errors.New("timeout"))}, nil)
	_, ok := p.Plan(context.Background(), "brief", passages, 6)
	assert.False(t, ok)

	_, ok = NewPlanner(nil, nil).Plan(context.Background(), "brief", passages, 6)
	assert.False(t, ok)
}

func TestPlanner_Plan_PromptBoundsPassages(t *testing.T) {
	long := strings.Repeat("word ", 400)
	many := make([]knowledge.Passage, 20)
	for i := range many {
		many[i] = knowledge.Passage{Text: long}
	}
	client := &scriptedClient{replies: []string{validPlan}}
	_, ok := NewPlanner(client, nil).Plan(context.Background(), "brief", many, 3)
	require.True(t, ok)

	prompt := client.prompts[0].User
	assert.Contains(t, prompt, "[14]")
	assert.NotContains(t, prompt, "[15]")
	for _, line := range strings.Split(prompt, "\n") {
		assert.LessOrEqual(t, utf8.RuneCountInString(line), maxPassageRunes+10)
	}
}

func TestNormalize_NeverExceedsBounds(t *testing.T) {
	huge := strings.Repeat("lorem ipsum ", 100)
	plan := Normalize(Plan{
		Intro:      huge,
		Highlights: []string{huge, huge, huge, huge, "tiny"},
		Cards: []Card{
			{Title: huge, Blurb: huge, Color: "BLUE"},
			{Title: "ok title here", Blurb: huge},
			{Title: "short", Blurb: huge},
			{Title: "fourth title", Blurb: huge},
			{Title: "fifth title", Blurb: huge},
			{Title: "sixth title", Blurb: huge},
		},
		Quotes: []Quote{
			{Text: huge, Domain: "not a host"},
			{Text: huge, Domain: "https://www.example.org/page"},
			{Text: "short quote"},
		},
	}, 3)

	assert.LessOrEqual(t, utf8.RuneCountInString(plan.Intro), maxIntro)
	assert.Len(t, plan.Highlights, 3)
	for _, h := range plan.Highlights {
		assert.LessOrEqual(t, utf8.RuneCountInString(h), maxHighlight)
		assert.GreaterOrEqual(t, utf8.RuneCountInString(h), minHighlight)
	}
	assert.Len(t, plan.Cards, MaxCards)
	for _, c := range plan.Cards {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Title), maxCardTitle)
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c.Title), minCardTitle)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Blurb), maxBlurb)
		assert.Contains(t, Palette, c.Color)
	}
	assert.Equal(t, "blue", plan.Cards[0].Color)
	require.Len(t, plan.Quotes, 2)
	assert.Empty(t, plan.Quotes[0].Domain)
	assert.Equal(t, "example.org", plan.Quotes[1].Domain)
}

func TestNormalize_TruncationKeepsLowerBounds(t *testing.T) {
	unbroken := "See https://selling-guide.example.com/" + strings.Repeat("x", 300)
	plan := Normalize(Plan{
		Highlights: []string{unbroken},
		Cards:      []Card{{Title: "See " + strings.Repeat("x", 120), Blurb: unbroken}},
		Quotes:     []Quote{{Text: unbroken}},
	}, 6)

	require.Len(t, plan.Highlights, 1)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(plan.Highlights[0]), minHighlight)
	assert.LessOrEqual(t, utf8.RuneCountInString(plan.Highlights[0]), maxHighlight)
	require.Len(t, plan.Cards, 1)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(plan.Cards[0].Title), minCardTitle)
	assert.LessOrEqual(t, utf8.RuneCountInString(plan.Cards[0].Title), maxCardTitle)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(plan.Cards[0].Blurb), minBlurb)
	require.Len(t, plan.Quotes, 1)
	assert.GreaterOrEqual(t, utf8.RuneCountInString(plan.Quotes[0].Text), minQuote)

	assert.Empty(t, bound("x"+strings.Repeat(",", 100), 40, 50), "a cut below the minimum drops the entry")
}

func TestSummarizeToBlurbs(t *testing.T) {
	sentences := []string{"first sentence", "second sentence", "third sentence"}

	client := &scriptedClient{replies: []string{`["A blurb that is comfortably longer than forty characters.", "too short"]`}}
	blurbs, ok := NewPlanner(client, nil).SummarizeToBlurbs(context.Background(), "brief", sentences, 2)
	require.True(t, ok)
	assert.Equal(t, []string{"A blurb that is comfortably longer than forty characters.", ""}, blurbs)
	assert.Contains(t, client.prompts[0].User, "exactly 2 blurbs")

	client = &scriptedClient{replies: []string{`["only one blurb that is long enough to count here."]`}}
	_, ok = NewPlanner(client, nil).SummarizeToBlurbs(context.Background(), "brief", sentences, 2)
	assert.False(t, ok, "count mismatch")

	client = &scriptedClient{replies: []string{`[1, 2]`}}
	_, ok = NewPlanner(client, nil).SummarizeToBlurbs(context.Background(), "brief", sentences, 2)
	assert.False(t, ok, "wrong element type")

	_, ok = NewPlanner(client, nil).SummarizeToBlurbs(context.Background(), "brief", sentences, 5)
	assert.False(t, ok, "more blurbs than sentences")
}

func testHighlights() []highlight.Highlight {
	return highlight.Extract([]string{
		passages[0].Text + " " + passages[1].Text,
	}, 6)
}

func TestFallback_CardsComeFromHighlights(t *testing.T) {
	hs := testHighlights()
	require.Len(t, hs, 2)
	groups := ranking.GroupBySource(passages, 2)

	plan := Fallback(hs, groups, 6, []string{"", "A summarized blurb that replaces the second highlight text."})
	assert.Equal(t, ModeDeterministic, plan.Mode)
	require.Len(t, plan.Cards, 2)
	assert.Equal(t, hs[0].Title, plan.Cards[0].Title)
	assert.True(t, strings.HasPrefix(plan.Cards[0].Blurb, textclean.Ellipsis))
	assert.Equal(t, hs[0].Text,
		strings.TrimSuffix(hs[0].Title, textclean.Ellipsis)+" "+strings.TrimPrefix(plan.Cards[0].Blurb, textclean.Ellipsis))
	assert.Equal(t, "A summarized blurb that replaces the second highlight text.", plan.Cards[1].Blurb)
	assert.Equal(t, Palette[0], plan.Cards[0].Color)
	assert.Empty(t, plan.Highlights)
	assert.Empty(t, plan.Quotes, "passages shown as cards are not quoted again")

	extra := knowledge.Passage{
		Text:   "Lenders must obtain a signed lease for each unit when the appraisal shows a rent schedule.",
		Source: "https://www.hud.gov/handbook",
	}
	plan = Fallback(hs, ranking.GroupBySource(append(passages, extra), 2), 6, nil)
	require.Len(t, plan.Quotes, 1)
	assert.Equal(t, extra.Text, plan.Quotes[0].Text)
	assert.Equal(t, "hud.gov", plan.Quotes[0].Domain)
}

func TestFallback_TitleTextIsNotRepeated(t *testing.T) {
	sentence := "Schedule E of Form 1040 reports the net rental income from each property, and lenders use that amount to qualify the borrower for the mortgage."
	hs := highlight.Extract([]string{sentence}, 6)
	require.Len(t, hs, 1)
	require.Contains(t, hs[0].Title, "Schedule E")

	groups := ranking.GroupBySource([]knowledge.Passage{{Text: sentence, Source: "https://www.irs.gov/e"}}, 2)
	plan := Fallback(hs, groups, 6, nil)

	require.Len(t, plan.Cards, 1)
	assert.Equal(t, "…and lenders use that amount to qualify the borrower for the mortgage.", plan.Cards[0].Blurb)
	assert.Empty(t, plan.Quotes)

	shown := plan.Cards[0].Title + " " + plan.Cards[0].Blurb
	assert.Equal(t, 1, strings.Count(shown, "Schedule E"))
}

func TestFallback_ShortRemainderBecomesHighlight(t *testing.T) {
	text := "Lenders may use a current lease agreement to document rental income when the property was acquired after the last tax filing."
	hs := []highlight.Highlight{{Title: highlight.Title(text), Text: text}}

	plan := Fallback(hs, nil, 6, nil)
	assert.Empty(t, plan.Cards)
	assert.Equal(t, []string{text}, plan.Highlights)
}

func TestFallback_OverflowGoesToHighlights(t *testing.T) {
	var hs []highlight.Highlight
	for i := 0; i < 6; i++ {
		text := strings.Repeat("x", i+1) + " documented requirement sentence, which is long enough to qualify as a card and still leaves text for its blurb."
		hs = append(hs, highlight.Highlight{Title: highlight.Title(text), Text: text})
	}
	plan := Fallback(hs, nil, 5, nil)
	assert.Len(t, plan.Cards, MaxCards)
	assert.Len(t, plan.Highlights, 1)
	assert.Empty(t, plan.Quotes)
}

func TestCompleteQuotes(t *testing.T) {
	groups := ranking.GroupBySource(passages, 2)
	plan := Plan{Mode: ModeGenerative, Cards: []Card{{Title: "Tax returns", Blurb: "Signed returns document rental income for each property.", Color: "blue"}}}

	got := CompleteQuotes(plan, groups)
	assert.Equal(t, []string{LocalQuotes}, got.LocalParts)
	assert.Len(t, got.Quotes, 2)
	assert.Equal(t, "irs.gov", got.Quotes[0].Domain)

	withQuotes := Plan{Quotes: []Quote{{Text: passages[0].Text}}}
	assert.Equal(t, withQuotes, CompleteQuotes(withQuotes, groups))
}
