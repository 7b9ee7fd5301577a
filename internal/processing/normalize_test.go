package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"163", 163},
		{"2.1K", 2100},
		{"2.6M", 2.6e6},
		{"1B", 1e9},
		{"3T", 3e12},
		{"1,234", 1234},
	}
	for _, tc := range cases {
		got := parseCount(tc.in)
		require.NotNil(t, got, tc.in)
		assert.InDelta(t, tc.want, *got, 1e-6, tc.in)
	}

	assert.Nil(t, parseCount(""))
	assert.Nil(t, parseCount("n/a"))
}

func TestParseRating(t *testing.T) {
	got := parseRating("9.2/10")
	require.NotNil(t, got)
	assert.InDelta(t, 9.2, *got, 1e-9)

	assert.Nil(t, parseRating(""))
	assert.Nil(t, parseRating("/10"))
}

func TestParseMoney(t *testing.T) {
	got := parseMoney("$6,000,000 (estimated)")
	require.NotNil(t, got)
	assert.InDelta(t, 6_000_000, *got, 1e-6)

	got = parseMoney("$136,381,073")
	require.NotNil(t, got)
	assert.InDelta(t, 136_381_073, *got, 1e-6)

	assert.Nil(t, parseMoney(""))
	assert.Nil(t, parseMoney("unknown"))
}

func TestParseRuntime(t *testing.T) {
	got := parseRuntime("2h 55m")
	require.NotNil(t, got)
	assert.InDelta(t, 175, *got, 1e-9)

	got = parseRuntime("45m")
	require.NotNil(t, got)
	assert.InDelta(t, 45, *got, 1e-9)

	assert.Nil(t, parseRuntime(""))
	assert.Nil(t, parseRuntime("three hours"))
}

func TestParseReleaseDate(t *testing.T) {
	assert.Equal(t, "1972-03-24", parseReleaseDate("March 24, 1972 (United States)"))
	assert.Equal(t, "1972-03-24", parseReleaseDate("March 24, 1972"))
	assert.Empty(t, parseReleaseDate("someday"))
}

func TestParseReviewDate(t *testing.T) {
	assert.Equal(t, "2003-06-14", parseReviewDate("14 June 2003"))
	assert.Empty(t, parseReviewDate(""))
}

func TestSplitHelpfulness(t *testing.T) {
	up, total := splitHelpfulness("1,234 out of 1,500 found this helpful.")
	require.NotNil(t, up)
	require.NotNil(t, total)
	assert.Equal(t, 1234, *up)
	assert.Equal(t, 1500, *total)

	up, total = splitHelpfulness("")
	assert.Nil(t, up)
	assert.Nil(t, total)
}

func TestLastWord(t *testing.T) {
	assert.Equal(t, "Italy", lastWord("Forza d'Agro, Sicily, Italy"))
	assert.Empty(t, lastWord("   "))
}
