// Package record defines the data model shared by every pipeline stage:
// discovered titles, raw captures and normalized dataset rows.
package record

import (
	"fmt"
	"strings"
	"time"
)

// GenreSpec names a genre listing to discover titles from and the share of
// its titles to keep for deeper extraction.
type GenreSpec struct {
	Name      string  `json:"name" yaml:"name"`
	PctTitles float64 `json:"pct_titles" yaml:"pct_titles"`
}

// TitleRef identifies one movie discovered from a genre listing. It is
// created by discovery and immutable afterwards. Rank is the position in the
// listing that produced the title first; sampling is derived from ranks, so
// they must be stable for an unchanged listing.
type TitleRef struct {
	ID     string   `json:"id"`
	Genres []string `json:"genres"`
	Rank   int      `json:"rank"`
}

// ReviewSummary holds the raw review-count block of a title page. Values are
// kept as captured (they may carry K/M suffixes); normalization happens in
// preprocessing.
type ReviewSummary struct {
	UserReviews   string `json:"user_review_num,omitempty"`
	CriticReviews string `json:"critic_review_num,omitempty"`
	Metascore     string `json:"metascore,omitempty"`
}

// AggregateRating holds the raw hero rating block ("9.2/10" and a vote count
// such as "2.6M").
type AggregateRating struct {
	AvgRating string `json:"avg_rating"`
	NumVotes  string `json:"num_votes"`
}

// Details holds the details block of a title page. Every field is optional;
// entries are kept verbatim.
type Details struct {
	ReleaseDate         []string `json:"release_date,omitempty"`
	CountriesOfOrigin   []string `json:"countries_of_origin,omitempty"`
	Languages           []string `json:"language,omitempty"`
	AlsoKnownAs         []string `json:"also_known_as,omitempty"`
	ProductionCompanies []string `json:"production_companies,omitempty"`
	FilmingLocations    []string `json:"filming_locations,omitempty"`
	Runtime             string   `json:"runtime,omitempty"`
}

// BoxOffice holds the raw box office block ("$25,000,000 (estimated)" etc).
type BoxOffice struct {
	Budget         string `json:"budget,omitempty"`
	GrossDomestic  string `json:"boxoffice_gross_domestic,omitempty"`
	GrossOpening   string `json:"boxoffice_gross_opening,omitempty"`
	GrossWorldwide string `json:"boxoffice_gross_worldwide,omitempty"`
}

// MetadataRecord is the raw capture of one title's metadata page. Written
// once per title; re-runs overwrite the whole record, fields are never
// merged.
type MetadataRecord struct {
	TitleID         string            `json:"title_id"`
	SourceURL       string            `json:"source_url"`
	CapturedAt      time.Time         `json:"captured_at"`
	OriginalTitle   string            `json:"original_title,omitempty"`
	Genres          []string          `json:"genres,omitempty"`
	Director        string            `json:"director,omitempty"`
	PosterURL       string            `json:"poster_url,omitempty"`
	ReviewSummary   *ReviewSummary    `json:"review_summary,omitempty"`
	AggregateRating *AggregateRating  `json:"agg_rating,omitempty"`
	Actors          map[string]string `json:"actors,omitempty"`
	Recommendations map[string]string `json:"imdb_recommendations,omitempty"`
	Details         Details           `json:"details"`
	BoxOffice       BoxOffice         `json:"boxoffice"`
}

// ReviewRecord is the raw capture of one sampled review. ReviewID is unique
// within a title; Rank is the review's position in the helpfulness-sorted
// listing. PageKey records the pagination cursor of the page the review came
// from.
type ReviewRecord struct {
	TitleID     string    `json:"title_id"`
	ReviewID    string    `json:"review_id"`
	Rank        int       `json:"rank"`
	Text        string    `json:"text,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
	Date        string    `json:"date,omitempty"`
	Title       string    `json:"title,omitempty"`
	Author      string    `json:"author,omitempty"`
	Helpfulness string    `json:"helpfulness,omitempty"`
	PageKey     string    `json:"page_key,omitempty"`
	SourceURL   string    `json:"source_url"`
	CapturedAt  time.Time `json:"captured_at"`
}

// MovieDatasetRecord is the normalized form of a MetadataRecord emitted by
// preprocessing. It fully replaces any previous output for the same title.
type MovieDatasetRecord struct {
	TitleID            string   `json:"title_id"`
	OriginalTitle      string   `json:"original_title,omitempty"`
	Rating             *float64 `json:"rating,omitempty"`
	NumVotes           *float64 `json:"num_votes,omitempty"`
	UserReviews        *float64 `json:"user_review_num,omitempty"`
	CriticReviews      *float64 `json:"critic_review_num,omitempty"`
	Metascore          *float64 `json:"metascore,omitempty"`
	Director           string   `json:"director,omitempty"`
	Genre1             string   `json:"genre_1,omitempty"`
	Genre2             string   `json:"genre_2,omitempty"`
	Genre3             string   `json:"genre_3,omitempty"`
	ReleaseDate        string   `json:"release_date,omitempty"`
	RuntimeMinutes     *float64 `json:"runtime,omitempty"`
	CountryOfOrigin1   string   `json:"country_of_origin_1,omitempty"`
	CountryOfOrigin2   string   `json:"country_of_origin_2,omitempty"`
	CountryOfOrigin3   string   `json:"country_of_origin_3,omitempty"`
	OriginalLanguage   string   `json:"original_language,omitempty"`
	AlsoKnownAs        string   `json:"also_known_as,omitempty"`
	ProductionCompany1 string   `json:"production_company_1,omitempty"`
	ProductionCompany2 string   `json:"production_company_2,omitempty"`
	ProductionCompany3 string   `json:"production_company_3,omitempty"`
	FilmingLocation    string   `json:"filming_location,omitempty"`
	FilmingCountry     string   `json:"filming_country,omitempty"`
	Budget             *float64 `json:"budget,omitempty"`
	GrossDomestic      *float64 `json:"gross_domestic,omitempty"`
	GrossOpening       *float64 `json:"gross_opening,omitempty"`
	GrossWorldwide     *float64 `json:"gross_worldwide,omitempty"`
}

// ReviewDatasetRecord is the normalized form of a ReviewRecord.
type ReviewDatasetRecord struct {
	TitleID    string   `json:"title_id"`
	ReviewID   string   `json:"review_id"`
	Text       string   `json:"text,omitempty"`
	Rating     *float64 `json:"rating,omitempty"`
	ReviewDate string   `json:"review_date,omitempty"`
	Title      string   `json:"title,omitempty"`
	Author     string   `json:"author,omitempty"`
	Upvotes    *int     `json:"upvotes,omitempty"`
	TotalVotes *int     `json:"total_votes,omitempty"`
}

// Store key layout. Raw captures and dataset rows share the same identity so
// preprocessing emits exactly one output key per input key.
const (
	RawMetadataPrefix     = "raw/metadata/"
	RawReviewsPrefix      = "raw/reviews/"
	DatasetMetadataPrefix = "dataset/metadata/"
	DatasetReviewsPrefix  = "dataset/reviews/"
)

// MetadataKey returns the store key for a title's raw metadata.
func MetadataKey(titleID string) string {
	return RawMetadataPrefix + titleID
}

// ReviewKey returns the store key for one raw review of a title.
func ReviewKey(titleID, reviewID string) string {
	return fmt.Sprintf("%s%s/%s", RawReviewsPrefix, titleID, reviewID)
}

// ReviewTitlePrefix returns the key prefix covering every stored review of a
// title.
func ReviewTitlePrefix(titleID string) string {
	return RawReviewsPrefix + titleID + "/"
}

// DatasetMetadataKey returns the dataset key derived from a raw metadata key.
func DatasetMetadataKey(titleID string) string {
	return DatasetMetadataPrefix + titleID
}

// DatasetReviewKey returns the dataset key derived from a raw review key.
func DatasetReviewKey(titleID, reviewID string) string {
	return fmt.Sprintf("%s%s/%s", DatasetReviewsPrefix, titleID, reviewID)
}

// TitleIDFromKey extracts the title identity from any of the keys above.
func TitleIDFromKey(key string) string {
	for _, prefix := range []string{RawMetadataPrefix, RawReviewsPrefix, DatasetMetadataPrefix, DatasetReviewsPrefix} {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			if i := strings.IndexByte(rest, '/'); i >= 0 {
				return rest[:i]
			}
			return rest
		}
	}
	return ""
}

// Validate checks that a metadata record carries its identity fields.
func (m *MetadataRecord) Validate() error {
	if m.TitleID == "" {
		return fmt.Errorf("metadata record has no title id")
	}
	if m.SourceURL == "" {
		return fmt.Errorf("metadata record %s has no source url", m.TitleID)
	}
	return nil
}

// Validate checks that a review record carries its identity fields.
func (r *ReviewRecord) Validate() error {
	if r.TitleID == "" {
		return fmt.Errorf("review record has no title id")
	}
	if r.ReviewID == "" {
		return fmt.Errorf("review record for %s has no review id", r.TitleID)
	}
	return nil
}
