package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchOptionExactTextWinsFirst(t *testing.T) {
	options := []optionInfo{
		{Text: "united states", Value: "us-lower", Index: 0},
		{Text: "United States", Value: "US", Index: 1},
	}
	match, ok := matchOption(options, "United States")
	require.True(t, ok)
	assert.Equal(t, "US", match.Value)
}

func TestMatchOptionNormalizedText(t *testing.T) {
	options := []optionInfo{
		{Text: "Canada", Value: "CA", Index: 0},
		{Text: "United  States", Value: "US", Index: 1},
	}
	match, ok := matchOption(options, "united   states")
	require.True(t, ok)
	assert.Equal(t, "US", match.Value)
}

func TestMatchOptionNormalizedBeatsSubstring(t *testing.T) {
	// Both options contain the target as a substring; the normalized exact
	// equality pass must win before containment is consulted.
	options := []optionInfo{
		{Text: "United States Minor Outlying Islands", Value: "UM", Index: 0},
		{Text: "United States", Value: "US", Index: 1},
	}
	match, ok := matchOption(options, "united   states")
	require.True(t, ok)
	assert.Equal(t, "US", match.Value)
}

func TestMatchOptionSubstring(t *testing.T) {
	options := []optionInfo{
		{Text: "-- select --", Value: "", Index: 0},
		{Text: "United States of America", Value: "USA", Index: 1},
	}
	match, ok := matchOption(options, "united states")
	require.True(t, ok)
	assert.Equal(t, "USA", match.Value)
}

func TestMatchOptionByValue(t *testing.T) {
	options := []optionInfo{
		{Text: "Germany", Value: "DE", Index: 0},
		{Text: "France", Value: "FR", Index: 1},
	}
	match, ok := matchOption(options, "FR")
	require.True(t, ok)
	assert.Equal(t, "France", match.Text)
}

func TestMatchOptionCaseInsensitiveTrimmed(t *testing.T) {
	options := []optionInfo{
		{Text: "  GERMANY  ", Value: "DE", Index: 0},
	}
	// Collapsing whitespace already handles most of this; the final pass
	// covers EqualFold without collapsing interior runs.
	match, ok := matchOption(options, "germany")
	require.True(t, ok)
	assert.Equal(t, "DE", match.Value)
}

func TestMatchOptionNoMatch(t *testing.T) {
	options := []optionInfo{
		{Text: "Germany", Value: "DE", Index: 0},
	}
	_, ok := matchOption(options, "Atlantis")
	assert.False(t, ok)
}

func TestMatchOptionEmptyTargetNeverMatchesBySubstring(t *testing.T) {
	options := []optionInfo{
		{Text: "Germany", Value: "DE", Index: 0},
		{Text: "", Value: "", Index: 1},
	}
	match, ok := matchOption(options, "")
	// Empty target can only match the empty option exactly, never by
	// containment against every option.
	require.True(t, ok)
	assert.Equal(t, 1, match.Index)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "united states", normalizeText("  United \t STATES \n"))
	assert.Equal(t, "", normalizeText("   "))
}

func TestLooksLikeSelector(t *testing.T) {
	assert.True(t, looksLikeSelector("#email"))
	assert.True(t, looksLikeSelector("input.form-control"))
	assert.True(t, looksLikeSelector(`input[name="q"]`))
	assert.False(t, looksLikeSelector("Company Name"))
}
