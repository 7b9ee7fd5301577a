package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/sampling"
	"github.com/ilyamil/IMDB-scraper/pkg/ratelimit"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

func newTestFetcher() *fetch.Fetcher {
	cfg := fetch.DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return fetch.NewFetcher(ratelimit.New(0), cfg)
}

func buildListing(ids []string, total int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, `<div class="desc"><span>1-%d of %d titles.</span></div>`, len(ids), total)
	for _, id := range ids {
		fmt.Fprintf(&b,
			`<div class="lister-item-content"><h3><a href="/title/%s/?ref_=adv_li_tt">Some Title</a></h3></div>`,
			id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func genreIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("tt%s%04d", prefix, i+1)
	}
	return ids
}

func listingServer(t *testing.T, catalogs map[string][]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		genre := r.URL.Query().Get("genres")
		ids, ok := catalogs[genre]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		if start < 1 {
			start = 1
		}
		end := start - 1 + ListingPageSize
		if end > len(ids) {
			end = len(ids)
		}
		var page []string
		if start-1 < len(ids) {
			page = ids[start-1 : end]
		}
		fmt.Fprint(w, buildListing(page, len(ids)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverPaginatesGenre(t *testing.T) {
	ids := genreIDs("dr", 60)
	srv := listingServer(t, map[string][]string{"drama": ids})

	d := NewDiscovery(newTestFetcher(), Endpoints{Base: srv.URL}, 10)
	result, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "drama", PctTitles: 100},
	})
	require.NoError(t, err)

	assert.Equal(t, 60, result.Discovered["drama"])
	assert.Len(t, result.Titles, 60)
	assert.Empty(t, result.Failures)
	for _, ref := range result.Titles {
		assert.Equal(t, []string{"drama"}, ref.Genres)
		assert.Equal(t, ref.ID, ids[ref.Rank])
	}
}

func TestDiscoverSamplesPerGenre(t *testing.T) {
	ids := genreIDs("ac", 40)
	srv := listingServer(t, map[string][]string{"action": ids})

	d := NewDiscovery(newTestFetcher(), Endpoints{Base: srv.URL}, 10)
	result, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "action", PctTitles: 25},
	})
	require.NoError(t, err)

	require.Len(t, result.Titles, sampling.Size(40, 25))
	seen := make(map[string]bool)
	for _, ref := range result.Titles {
		assert.Equal(t, ref.ID, ids[ref.Rank], "rank must point back at the listing position")
		assert.False(t, seen[ref.ID])
		seen[ref.ID] = true
	}

	// Same catalog, same percentage: the very same titles come back.
	again, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "action", PctTitles: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, result.Titles, again.Titles)
}

func TestDiscoverMergesGenreMemberships(t *testing.T) {
	shared := []string{"tt0000003", "tt0000004"}
	srv := listingServer(t, map[string][]string{
		"crime": append([]string{"tt0000001", "tt0000002"}, shared...),
		"drama": append(append([]string{}, shared...), "tt0000005", "tt0000006"),
	})

	d := NewDiscovery(newTestFetcher(), Endpoints{Base: srv.URL}, 10)
	result, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "crime", PctTitles: 100},
		{Name: "drama", PctTitles: 100},
	})
	require.NoError(t, err)
	require.Len(t, result.Titles, 6)

	byID := make(map[string]record.TitleRef)
	for _, ref := range result.Titles {
		byID[ref.ID] = ref
	}
	for _, id := range shared {
		assert.Equal(t, []string{"crime", "drama"}, byID[id].Genres)
	}
	assert.Equal(t, []string{"crime"}, byID["tt0000001"].Genres)
	assert.Equal(t, []string{"drama"}, byID["tt0000005"].Genres)
}

func TestDiscoverContinuesPastFailedGenre(t *testing.T) {
	srv := listingServer(t, map[string][]string{
		"western": genreIDs("we", 4),
	})

	d := NewDiscovery(newTestFetcher(), Endpoints{Base: srv.URL}, 10)
	result, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "film-noir", PctTitles: 100},
		{Name: "western", PctTitles: 100},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "film-noir", result.Failures[0].Genre)
	var fe *fetch.FetchError
	require.ErrorAs(t, result.Failures[0].Err, &fe)
	assert.Equal(t, fetch.NotFound, fe.Kind)

	assert.Len(t, result.Titles, 4)
}

func TestDiscoverRejectsInvalidPercentageUpFront(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	d := NewDiscovery(newTestFetcher(), Endpoints{Base: srv.URL}, 10)
	_, err := d.Discover(context.Background(), []record.GenreSpec{
		{Name: "comedy", PctTitles: 150},
	})
	var perr *sampling.InvalidPercentageError
	require.ErrorAs(t, err, &perr)
	assert.Zero(t, calls, "no page may be fetched for an invalid configuration")
}

func TestParseListingExtractsIDsAndTotal(t *testing.T) {
	body := buildListing([]string{"tt0111161", "tt0068646"}, 1250)
	ids, total, err := parseListing([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []string{"tt0111161", "tt0068646"}, ids)
	assert.Equal(t, 1250, total)
}
