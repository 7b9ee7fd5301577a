package scrape

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/sampling"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

var (
	reviewCountRe = regexp.MustCompile(`([\d,]+)\s*Review`)
	reviewHrefRe  = regexp.MustCompile(`/review/(rw\d+)`)
)

// ReviewExtractor paginates a title's helpfulness-sorted review listing and
// extracts the sampled share of its reviews.
type ReviewExtractor struct {
	fetcher   *fetch.Fetcher
	endpoints Endpoints
	pct       float64
	maxPages  int
}

// NewReviewExtractor creates a review extractor sampling pct percent of each
// title's reviews, bounded to maxPages listing pages per title.
func NewReviewExtractor(fetcher *fetch.Fetcher, endpoints Endpoints, pct float64, maxPages int) *ReviewExtractor {
	return &ReviewExtractor{fetcher: fetcher, endpoints: endpoints, pct: pct, maxPages: maxPages}
}

// ReviewFailure records one selected review whose extraction failed. The
// remaining selected reviews of the title are unaffected.
type ReviewFailure struct {
	ReviewID string
	Rank     int
	Err      error
}

// ReviewResult is the outcome for a single title.
type ReviewResult struct {
	TitleID      string
	TotalReviews int
	Selected     int
	Reviews      []record.ReviewRecord
	Failures     []ReviewFailure
	PagesFetched int
}

// Extract walks a title's review listing in page order. The listing header
// states the total review count up front, so the sample is derived before
// pagination and only the selected ranks are fully extracted. Pagination
// stops as soon as every selected rank has been seen. A failure on one
// selected review is recorded and extraction continues; a failed page fetch
// ends pagination early and is returned alongside whatever was collected.
func (r *ReviewExtractor) Extract(ctx context.Context, ref record.TitleRef) (*ReviewResult, error) {
	logger := logging.GetLogger("reviews")
	result := &ReviewResult{TitleID: ref.ID}

	url := r.endpoints.ReviewsStart(ref.ID)
	raw, err := r.fetcher.Fetch(ctx, url, fetch.KindReviewPage)
	if err != nil {
		return result, err
	}
	result.PagesFetched++

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return result, &ExtractError{TitleID: ref.ID, Kind: SchemaDrift, Err: err}
	}

	result.TotalReviews = parseReviewCount(doc)
	if result.TotalReviews == 0 {
		return result, nil
	}

	selected, err := sampling.SelectSet(result.TotalReviews, r.pct, "reviews:"+ref.ID)
	if err != nil {
		return result, err
	}
	result.Selected = len(selected)
	if len(selected) == 0 {
		return result, nil
	}
	maxRank := 0
	for rank := range selected {
		if rank > maxRank {
			maxRank = rank
		}
	}

	rank := 0
	pageKey := ""
	for {
		r.collectPage(doc, ref.ID, raw, pageKey, &rank, selected, result)
		if rank > maxRank {
			break
		}
		nextKey, ok := doc.Find(".load-more-data[data-key]").First().Attr("data-key")
		if !ok || nextKey == "" {
			break
		}
		if result.PagesFetched >= r.maxPages {
			logger.Warn().
				Str("title_id", ref.ID).
				Int("pages", result.PagesFetched).
				Msg("review pagination hit page cap")
			break
		}

		pageKey = nextKey
		url = r.endpoints.ReviewsPage(ref.ID, pageKey)
		raw, err = r.fetcher.Fetch(ctx, url, fetch.KindReviewPage)
		if err != nil {
			// Reviews already collected stay valid; the caller records
			// the truncation.
			return result, err
		}
		result.PagesFetched++

		doc, err = goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
		if err != nil {
			return result, &ExtractError{TitleID: ref.ID, Kind: SchemaDrift, Err: err}
		}
	}
	return result, nil
}

// collectPage processes one listing page, advancing the running rank and
// extracting containers whose rank is in the sample.
func (r *ReviewExtractor) collectPage(
	doc *goquery.Document,
	titleID string,
	raw *fetch.RawPage,
	pageKey string,
	rank *int,
	selected map[int]struct{},
	result *ReviewResult,
) {
	doc.Find(".review-container").Each(func(_ int, s *goquery.Selection) {
		current := *rank
		*rank = current + 1
		if _, ok := selected[current]; !ok {
			return
		}

		rec, err := parseReview(s, titleID, current)
		if err != nil {
			result.Failures = append(result.Failures, ReviewFailure{
				ReviewID: reviewID(s, current),
				Rank:     current,
				Err:      err,
			})
			return
		}
		rec.PageKey = pageKey
		rec.SourceURL = raw.URL
		rec.CapturedAt = raw.FetchedAt
		result.Reviews = append(result.Reviews, *rec)
	})
}

// parseReviewCount reads the total review count from the listing header.
func parseReviewCount(doc *goquery.Document) int {
	header := doc.Find("div.header").First().Text()
	m := reviewCountRe.FindStringSubmatch(header)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// reviewID extracts the review's own id from its title link, falling back
// to a rank-derived id so a failure still has a stable identity.
func reviewID(s *goquery.Selection, rank int) string {
	if href, ok := s.Find("a.title").First().Attr("href"); ok {
		if m := reviewHrefRe.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}
	return fmt.Sprintf("rank-%d", rank)
}

func parseReview(s *goquery.Selection, titleID string, rank int) (*record.ReviewRecord, error) {
	text := strings.TrimSpace(s.Find("div.text.show-more__control").First().Text())
	if text == "" {
		return nil, &ExtractError{
			TitleID:  titleID,
			ReviewID: reviewID(s, rank),
			Kind:     PartialContent,
			Err:      fmt.Errorf("review container has no text block"),
		}
	}

	rec := &record.ReviewRecord{
		TitleID:     titleID,
		ReviewID:    reviewID(s, rank),
		Rank:        rank,
		Text:        text,
		Date:        strings.TrimSpace(s.Find("span.review-date").First().Text()),
		Title:       s.Find("a.title").First().Text(),
		Helpfulness: strings.TrimSpace(s.Find("div.actions.text-muted").First().Text()),
	}

	if href, ok := s.Find("span.display-name-link a").First().Attr("href"); ok {
		rec.Author = href
	}

	// Reviews without a score render no rating span at all.
	ratingText := strings.TrimSpace(s.Find("span.rating-other-user-rating span").First().Text())
	if ratingText != "" && len(ratingText) <= 2 {
		if v, err := strconv.Atoi(ratingText); err == nil {
			rec.Rating = &v
		}
	}
	return rec, nil
}
