// Package scrape turns fetched IMDb pages into structured records: genre
// listings into title references, title pages into metadata records and
// review listings into review records.
package scrape

import (
	"fmt"
	"net/url"
)

// Genres is the catalog of feature-film genres on the site. The "all"
// configuration keyword expands to this list.
var Genres = []string{
	"action",
	"adventure",
	"animation",
	"biography",
	"comedy",
	"crime",
	"drama",
	"family",
	"fantasy",
	"film-noir",
	"history",
	"horror",
	"music",
	"musical",
	"mystery",
	"romance",
	"sci-fi",
	"sport",
	"thriller",
	"war",
	"western",
}

// ListingPageSize is the number of titles per genre listing page.
const ListingPageSize = 50

// Endpoints builds page URLs. Base is swapped for a test server address in
// tests.
type Endpoints struct {
	Base string
}

// DefaultEndpoints points at the live site.
func DefaultEndpoints() Endpoints {
	return Endpoints{Base: "https://www.imdb.com"}
}

// GenreListing returns the URL of one genre listing page. start is the
// 1-based index of the first title on the page.
func (e Endpoints) GenreListing(genre string, start int) string {
	return fmt.Sprintf(
		"%s/search/title/?title_type=feature&genres=%s&sort=num_votes,desc&start=%d&explore=genres&ref_=adv_nxt",
		e.Base, url.QueryEscape(genre), start,
	)
}

// Title returns the URL of a title's metadata page.
func (e Endpoints) Title(titleID string) string {
	return fmt.Sprintf("%s/title/%s/", e.Base, url.PathEscape(titleID))
}

// ReviewsStart returns the URL of the first review listing page of a title,
// sorted by helpfulness.
func (e Endpoints) ReviewsStart(titleID string) string {
	return fmt.Sprintf(
		"%s/title/%s/reviews?sort=helpfulnessScore&dir=desc&ratingFilter=0",
		e.Base, url.PathEscape(titleID),
	)
}

// ReviewsPage returns the load-more AJAX URL continuing a title's review
// listing from the given pagination key.
func (e Endpoints) ReviewsPage(titleID, paginationKey string) string {
	return fmt.Sprintf(
		"%s/title/%s/reviews/_ajax?sort=helpfulnessScore&dir=desc&ratingFilter=0&paginationKey=%s",
		e.Base, url.PathEscape(titleID), url.QueryEscape(paginationKey),
	)
}
