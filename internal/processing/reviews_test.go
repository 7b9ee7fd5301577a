package processing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

func sampleReview() *record.ReviewRecord {
	rating := 9
	return &record.ReviewRecord{
		TitleID:     "tt0068646",
		ReviewID:    "rw0000001",
		Rank:        0,
		Text:        "An offer  you can’t refuse.\n\n\n\nStill holds up.",
		Rating:      &rating,
		Date:        "14 June 2003",
		Title:       "A masterpiece\n",
		Author:      "/user/ur1234567/?ref_=tt_urv",
		Helpfulness: "1,234 out of 1,500 found this helpful.",
	}
}

func TestNormalizeReview(t *testing.T) {
	row, err := NormalizeReview(sampleReview(), NewTextCleaner())
	require.NoError(t, err)

	assert.Equal(t, "tt0068646", row.TitleID)
	assert.Equal(t, "rw0000001", row.ReviewID)
	assert.Equal(t, "An offer you can't refuse.\n\nStill holds up.", row.Text)
	assert.Equal(t, "2003-06-14", row.ReviewDate)
	assert.Equal(t, "A masterpiece", row.Title)
	assert.Equal(t, "/user/ur1234567/", row.Author)

	require.NotNil(t, row.Rating)
	assert.InDelta(t, 9, *row.Rating, 1e-9)
	require.NotNil(t, row.Upvotes)
	assert.Equal(t, 1234, *row.Upvotes)
	require.NotNil(t, row.TotalVotes)
	assert.Equal(t, 1500, *row.TotalVotes)
}

func TestNormalizeReviewWithoutOptionalFields(t *testing.T) {
	raw := &record.ReviewRecord{
		TitleID:  "tt0000001",
		ReviewID: "rw0000002",
		Text:     "Fine.",
	}

	row, err := NormalizeReview(raw, NewTextCleaner())
	require.NoError(t, err)

	assert.Nil(t, row.Rating)
	assert.Nil(t, row.Upvotes)
	assert.Empty(t, row.ReviewDate)
	assert.Empty(t, row.Author)
}

func TestNormalizeReviewDropsEmptyText(t *testing.T) {
	raw := sampleReview()
	raw.Text = "  \n  "

	_, err := NormalizeReview(raw, NewTextCleaner())
	require.ErrorIs(t, err, ErrEmptyReviewText)
}

func TestCleanerRules(t *testing.T) {
	c := NewTextCleaner()

	assert.Equal(t, `"quoted" - and...`, c.Clean("“quoted” — and…"))
	assert.Equal(t, "ab", c.Clean("a\x00\x07b"))
	assert.Equal(t, "one\n\ntwo", c.Clean("one\n\n\n\n\ntwo\n"))
}
