package processing

import (
	"errors"
	"strings"

	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

// ErrEmptyReviewText marks a raw review whose body is empty after cleaning.
var ErrEmptyReviewText = errors.New("review has no text after cleaning")

// NormalizeReview converts one raw review capture into a dataset row. The
// text is passed through the cleaner; identifiers are reduced to their
// stable part.
func NormalizeReview(raw *record.ReviewRecord, cleaner *TextCleaner) (*record.ReviewDatasetRecord, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	text := raw.Text
	if cleaner != nil {
		text = cleaner.Clean(text)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyReviewText
	}

	row := &record.ReviewDatasetRecord{
		TitleID:    raw.TitleID,
		ReviewID:   raw.ReviewID,
		Text:       text,
		ReviewDate: parseReviewDate(raw.Date),
		Title:      strings.TrimRight(raw.Title, "\n"),
	}

	// Author links carry referral query strings; only the path identifies
	// the user.
	row.Author, _, _ = strings.Cut(raw.Author, "?")

	if raw.Rating != nil {
		v := float64(*raw.Rating)
		row.Rating = &v
	}
	row.Upvotes, row.TotalVotes = splitHelpfulness(raw.Helpfulness)

	return row, nil
}
