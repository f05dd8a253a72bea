package analysis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitWithMarker(t *testing.T) {
	text := "Use quick cuts.\n## Detailed Analysis\nSegment 1: 0-5s..."

	r := Split(text)

	assert.True(t, r.HasDetails)
	assert.Equal(t, "Use quick cuts.\n", r.Summary)
	assert.Equal(t, "## Detailed Analysis\nSegment 1: 0-5s...", r.Details)
	assert.Equal(t, text, r.Raw)
}

func TestSplitIsLossless(t *testing.T) {
	cases := []string{
		"## Detailed Analysis",
		"## Detailed Analysis\nonly details",
		"summary only then marker at end ## Detailed Analysis",
		"a\n## Detailed Analysis\nb\n## Detailed Analysis\nc",
		"unicode ✪ summary\n## Detailed Analysis\n時間 0:00-0:05",
	}
	for _, text := range cases {
		r := Split(text)
		assert.True(t, r.HasDetails, text)
		assert.True(t, strings.HasPrefix(r.Details, DetailsMarker), text)
		assert.Equal(t, text, r.Summary+r.Details, text)
		assert.NotContains(t, r.Summary, DetailsMarker, text)
	}
}

func TestSplitWithoutMarker(t *testing.T) {
	for _, text := range []string{"", "Just a summary.", "## Detailed analysis (wrong case)", "# Detailed Analysis"} {
		r := Split(text)
		assert.False(t, r.HasDetails, text)
		assert.Equal(t, text, r.Summary, text)
		assert.Equal(t, MissingDetails, r.Details, text)
	}
}

func TestBuildPromptInterpolatesGoalVerbatim(t *testing.T) {
	goal := "Cut to 30s, keep the 100% best moments & {braces}"

	prompt := BuildPrompt(goal)

	assert.Contains(t, prompt, "User goals: "+goal)
	for _, section := range []string{
		"Detailed timeline segmentation",
		"Redundancy analysis with timestamps",
		"Key narrative moments to enhance",
		"Technical recommendations (cuts, transitions, aspect ratios)",
		DetailsMarker,
	} {
		assert.Contains(t, prompt, section)
	}
}
