package textclean

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const validPassage = "Rental income must be documented with the borrower's most recent signed federal income tax returns, including Schedule E for each property."

func TestSanitize_StripsBoilerplateAndMarkdown(t *testing.T) {
	raw := strings.Join([]string{
		"Skip to main content",
		"Toggle navigation",
		"![Acme logo](https://cdn.example.com/logo.png)",
		"## Rental income",
		"Home • Products • Support • Login",
		validPassage,
		"| Col A | Col B |",
		"Back to top",
		"© 2024 Example Corp. All rights reserved.",
	}, "\n")

	got := Sanitize(raw, false)
	assert.Equal(t, validPassage, got)
	assert.NotContains(t, strings.ToLower(got), "skip to main content")
	assert.NotContains(t, got, "|")
	assert.NotContains(t, got, "©")
}

func TestSanitize_DropsShortText(t *testing.T) {
	assert.Empty(t, Sanitize("Contact us for more information today", false))
	assert.Empty(t, Sanitize("   \n\t", true))
	assert.Empty(t, Sanitize("", false))
}

func TestSanitize_LineThresholdsDependOnMode(t *testing.T) {
	short := "Lenders verify stated income carefully." // 39 runes
	body := strings.Join([]string{
		short,
		"Each borrower must provide two years of documentation for every income source used.",
	}, "\n")

	strict := Sanitize(body, false)
	relaxed := Sanitize(body, true)
	assert.NotContains(t, strict, short)
	assert.Contains(t, relaxed, short)
}

func TestSanitize_DomainTokenKeepsShortAndPipedLines(t *testing.T) {
	body := strings.Join([]string{
		"See Schedule E",
		"Form 1040 | Schedule E | rental",
		"Net rental income is calculated from the property's annual gross rents minus expenses.",
	}, "\n")

	got := Sanitize(body, false)
	assert.Contains(t, got, "See Schedule E")
	assert.Contains(t, got, "Form 1040 | Schedule E | rental")
}

func TestSanitize_MenuHeuristicOnlyInStrictMode(t *testing.T) {
	menu := "- Home - About the program - Resources for lenders and servicers"
	body := menu + "\n" + validPassage

	assert.NotContains(t, Sanitize(body, false), "Resources for lenders")
	assert.Contains(t, Sanitize(body, true), "Resources for lenders")
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		validPassage,
		"# Heading\n" + validPassage + "\n[link text](http://x.test) and more words that make this line long enough to keep.",
		"Home • Menu\n![a](b)\n" + validPassage + "\n# # nested heading marker that should be removed over several passes",
		"short",
		"**Bold** statement about Form 1040-SR eligibility rules for retired borrowers applies here.",
		"copyright 2023 Example\n" + validPassage,
	}
	for _, in := range inputs {
		for _, relaxed := range []bool{false, true} {
			once := Sanitize(in, relaxed)
			assert.Equal(t, once, Sanitize(once, relaxed), "input %q relaxed=%v", in, relaxed)
		}
	}
}

func TestHasDomainToken(t *testing.T) {
	assert.True(t, HasDomainToken("see B3-3.1-08 for details"))
	assert.True(t, HasDomainToken("Form 1040-SR"))
	assert.True(t, HasDomainToken("schedule C income"))
	assert.False(t, HasDomainToken("a regular sentence"))
}
