package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyamil/IMDB-scraper/internal/sampling"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

type reviewFixture struct {
	id          string
	rating      string
	title       string
	author      string
	date        string
	text        string
	helpfulness string
}

func buildReviewPage(total int, reviews []reviewFixture, nextKey string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<div class="header"><div>%d Reviews</div></div>`, total)
	for _, r := range reviews {
		b.WriteString(`<div class="review-container"><div class="lister-item-content">`)
		if r.rating != "" {
			fmt.Fprintf(&b,
				`<span class="rating-other-user-rating"><span>%s</span><span class="point-scale">/10</span></span>`,
				r.rating)
		}
		fmt.Fprintf(&b, `<a class="title" href="/review/%s/?ref_=tt_urv">%s</a>`, r.id, r.title)
		fmt.Fprintf(&b,
			`<span class="display-name-link"><a href="/user/%s/?ref_=tt_urv">someone</a></span>`,
			r.author)
		fmt.Fprintf(&b, `<span class="review-date">%s</span>`, r.date)
		if r.text != "" {
			fmt.Fprintf(&b, `<div class="text show-more__control">%s</div>`, r.text)
		}
		fmt.Fprintf(&b, `<div class="actions text-muted">%s</div>`, r.helpfulness)
		b.WriteString(`</div></div>`)
	}
	if nextKey != "" {
		fmt.Fprintf(&b, `<div class="load-more-data" data-key="%s"></div>`, nextKey)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// reviewSite serves a title's review listing split into pages of pageSize
// reviews, chained by pagination keys.
func reviewSite(t *testing.T, titleID string, reviews []reviewFixture, pageSize int) *httptest.Server {
	t.Helper()

	var pages []string
	keys := make(map[string]int)
	for start := 0; start < len(reviews); start += pageSize {
		end := start + pageSize
		if end > len(reviews) {
			end = len(reviews)
		}
		nextKey := ""
		if end < len(reviews) {
			nextKey = fmt.Sprintf("key-%d", len(pages)+1)
			keys[nextKey] = len(pages) + 1
		}
		pages = append(pages, buildReviewPage(len(reviews), reviews[start:end], nextKey))
	}
	if len(pages) == 0 {
		pages = []string{buildReviewPage(0, nil, "")}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case fmt.Sprintf("/title/%s/reviews", titleID):
			fmt.Fprint(w, pages[0])
		case fmt.Sprintf("/title/%s/reviews/_ajax", titleID):
			idx, ok := keys[r.URL.Query().Get("paginationKey")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, pages[idx])
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func makeReviews(n int) []reviewFixture {
	reviews := make([]reviewFixture, n)
	for i := range reviews {
		reviews[i] = reviewFixture{
			id:          fmt.Sprintf("rw%07d", i+1),
			rating:      "8",
			title:       fmt.Sprintf("Review number %d", i+1),
			author:      fmt.Sprintf("ur%07d", i+1),
			date:        "14 June 2003",
			text:        fmt.Sprintf("Body of review %d.", i+1),
			helpfulness: "120 out of 150 found this helpful.",
		}
	}
	return reviews
}

func TestReviewExtractAllPages(t *testing.T) {
	reviews := makeReviews(30)
	srv := reviewSite(t, "tt0000001", reviews, 10)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 100, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000001"})
	require.NoError(t, err)

	assert.Equal(t, 30, result.TotalReviews)
	assert.Equal(t, 30, result.Selected)
	assert.Equal(t, 3, result.PagesFetched)
	assert.Empty(t, result.Failures)
	require.Len(t, result.Reviews, 30)

	first := result.Reviews[0]
	assert.Equal(t, "tt0000001", first.TitleID)
	assert.Equal(t, "rw0000001", first.ReviewID)
	assert.Equal(t, 0, first.Rank)
	assert.Equal(t, "Body of review 1.", first.Text)
	assert.Equal(t, "Review number 1", first.Title)
	assert.Equal(t, "/user/ur0000001/?ref_=tt_urv", first.Author)
	assert.Equal(t, "14 June 2003", first.Date)
	assert.Equal(t, "120 out of 150 found this helpful.", first.Helpfulness)
	assert.Empty(t, first.PageKey, "first page needs no pagination key")
	require.NotNil(t, first.Rating)
	assert.Equal(t, 8, *first.Rating)
	assert.False(t, first.CapturedAt.IsZero())

	// A review from the second page carries the key that reached it.
	assert.Equal(t, "key-1", result.Reviews[10].PageKey)
	assert.Equal(t, 10, result.Reviews[10].Rank)
}

func TestReviewExtractSamplesFromDeclaredTotal(t *testing.T) {
	reviews := makeReviews(40)
	srv := reviewSite(t, "tt0000002", reviews, 10)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 20, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000002"})
	require.NoError(t, err)

	want, serr := sampling.SelectSet(40, 20, "reviews:tt0000002")
	require.NoError(t, serr)
	assert.Equal(t, 40, result.TotalReviews)
	assert.Equal(t, len(want), result.Selected)
	require.Len(t, result.Reviews, len(want))
	for _, rec := range result.Reviews {
		_, ok := want[rec.Rank]
		assert.True(t, ok, "rank %d was not in the sample", rec.Rank)
		assert.Equal(t, fmt.Sprintf("rw%07d", rec.Rank+1), rec.ReviewID)
	}
	assert.LessOrEqual(t, result.PagesFetched, 4)
}

func TestReviewExtractTenPercentOfHundred(t *testing.T) {
	reviews := makeReviews(100)
	srv := reviewSite(t, "tt0000007", reviews, 20)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 10, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000007"})
	require.NoError(t, err)

	assert.Equal(t, 100, result.TotalReviews)
	assert.Equal(t, 10, result.Selected)
	assert.Len(t, result.Reviews, 10)
	assert.LessOrEqual(t, result.PagesFetched, 5)
}

func TestReviewExtractIsolatesBrokenReview(t *testing.T) {
	reviews := makeReviews(10)
	reviews[3].text = ""
	srv := reviewSite(t, "tt0000003", reviews, 10)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 100, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000003"})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, 3, result.Failures[0].Rank)
	assert.Equal(t, "rw0000004", result.Failures[0].ReviewID)
	var ee *ExtractError
	require.ErrorAs(t, result.Failures[0].Err, &ee)
	assert.Equal(t, PartialContent, ee.Kind)

	assert.Len(t, result.Reviews, 9)
}

func TestReviewExtractHonorsPageCap(t *testing.T) {
	reviews := makeReviews(30)
	srv := reviewSite(t, "tt0000004", reviews, 10)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 100, 1)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000004"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.PagesFetched)
	assert.Len(t, result.Reviews, 10)
}

func TestReviewExtractKeepsPartialResultOnPageFailure(t *testing.T) {
	reviews := makeReviews(20)
	page1 := buildReviewPage(20, reviews[:10], "key-1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/title/tt0000006/reviews" {
			fmt.Fprint(w, page1)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 100, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000006"})
	require.Error(t, err)

	assert.Len(t, result.Reviews, 10, "reviews collected before the failure stay")
	assert.Equal(t, 20, result.TotalReviews)
}

func TestReviewExtractNoReviews(t *testing.T) {
	srv := reviewSite(t, "tt0000005", nil, 10)

	e := NewReviewExtractor(newTestFetcher(), Endpoints{Base: srv.URL}, 50, 10)
	result, err := e.Extract(context.Background(), record.TitleRef{ID: "tt0000005"})
	require.NoError(t, err)

	assert.Zero(t, result.TotalReviews)
	assert.Empty(t, result.Reviews)
	assert.Equal(t, 1, result.PagesFetched)
}
