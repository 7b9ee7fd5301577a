package scrape

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/sampling"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

var (
	titleHrefRe  = regexp.MustCompile(`/title/(tt\d+)`)
	totalCountRe = regexp.MustCompile(`of\s+([\d,]+)`)
)

// Discovery enumerates genre listings and samples titles per genre.
type Discovery struct {
	fetcher   *fetch.Fetcher
	endpoints Endpoints
	maxPages  int
}

// NewDiscovery creates a discovery bounded to maxPages listing pages per
// genre.
func NewDiscovery(fetcher *fetch.Fetcher, endpoints Endpoints, maxPages int) *Discovery {
	return &Discovery{fetcher: fetcher, endpoints: endpoints, maxPages: maxPages}
}

// GenreFailure records one genre whose discovery could not complete. The
// remaining genres are unaffected.
type GenreFailure struct {
	Genre string
	Err   error
}

// DiscoveryResult is the outcome of Discover: sampled titles deduplicated
// across genres, plus per-genre failures and listing sizes.
type DiscoveryResult struct {
	Titles     []record.TitleRef
	Failures   []GenreFailure
	Discovered map[string]int // titles seen per genre before sampling
}

// Discover paginates every configured genre's listing, assigns discovery
// ranks, samples each genre independently and unions the selections. A title
// in several sampled genres appears once, carrying all its genre
// memberships. A genre whose listing cannot be fetched is recorded as a
// failure; the other genres proceed.
func (d *Discovery) Discover(ctx context.Context, specs []record.GenreSpec) (*DiscoveryResult, error) {
	logger := logging.GetLogger("discovery")

	for _, spec := range specs {
		if err := sampling.ValidatePercentage(spec.PctTitles); err != nil {
			return nil, fmt.Errorf("genre %s: %w", spec.Name, err)
		}
	}

	result := &DiscoveryResult{Discovered: make(map[string]int)}
	merged := make(map[string]*record.TitleRef)

	for _, spec := range specs {
		ids, err := d.listGenre(ctx, spec.Name)
		if err != nil {
			logger.Warn().Str("genre", spec.Name).Err(err).Msg("genre discovery failed, skipping genre")
			result.Failures = append(result.Failures, GenreFailure{Genre: spec.Name, Err: err})
			continue
		}
		result.Discovered[spec.Name] = len(ids)

		selected, err := sampling.Select(len(ids), spec.PctTitles, "genre:"+spec.Name)
		if err != nil {
			return nil, fmt.Errorf("genre %s: %w", spec.Name, err)
		}

		for _, rank := range selected {
			id := ids[rank]
			if ref, seen := merged[id]; seen {
				ref.Genres = appendGenre(ref.Genres, spec.Name)
				continue
			}
			merged[id] = &record.TitleRef{
				ID:     id,
				Genres: []string{spec.Name},
				Rank:   rank,
			}
		}

		logger.Info().
			Str("genre", spec.Name).
			Int("discovered", len(ids)).
			Int("selected", len(selected)).
			Msg("genre discovery complete")
	}

	result.Titles = make([]record.TitleRef, 0, len(merged))
	for _, ref := range merged {
		sort.Strings(ref.Genres)
		result.Titles = append(result.Titles, *ref)
	}
	sort.Slice(result.Titles, func(i, j int) bool {
		return result.Titles[i].ID < result.Titles[j].ID
	})
	return result, nil
}

// listGenre returns every title id of a genre listing in rank order, up to
// the page cap.
func (d *Discovery) listGenre(ctx context.Context, genre string) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	total := -1

	for page := 0; page < d.maxPages; page++ {
		start := page*ListingPageSize + 1
		url := d.endpoints.GenreListing(genre, start)
		raw, err := d.fetcher.Fetch(ctx, url, fetch.KindGenreListing)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page+1, err)
		}

		pageIDs, pageTotal, err := parseListing(raw.Body)
		if err != nil {
			return nil, fmt.Errorf("listing page %d: %w", page+1, err)
		}
		if total < 0 && pageTotal > 0 {
			total = pageTotal
		}
		if len(pageIDs) == 0 {
			break
		}
		for _, id := range pageIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if total >= 0 && len(ids) >= total {
			break
		}
	}
	return ids, nil
}

// parseListing extracts title ids in page order plus the listing's declared
// total count (0 when the page does not state one).
func parseListing(body []byte) ([]string, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	var ids []string
	doc.Find("div.lister-item-content").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a").First().Attr("href")
		if !ok {
			return
		}
		if m := titleHrefRe.FindStringSubmatch(href); m != nil {
			ids = append(ids, m[1])
		}
	})

	total := 0
	descText := doc.Find("div.desc span").First().Text()
	if m := totalCountRe.FindStringSubmatch(descText); m != nil {
		if n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			total = n
		}
	}
	return ids, total, nil
}

func appendGenre(genres []string, name string) []string {
	for _, g := range genres {
		if g == name {
			return genres
		}
	}
	return append(genres, name)
}
