package processing

import (
	"errors"
	"strings"

	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

// ErrNoAggregateRating marks a raw capture without a rating block. Such
// titles carry too little signal to be useful as dataset rows and are
// dropped rather than emitted half-empty.
var ErrNoAggregateRating = errors.New("metadata record has no aggregate rating")

// NormalizeMetadata converts one raw metadata capture into a dataset row.
// Individual fields that fail to normalize are left unset; only a record
// that cannot form a meaningful row at all returns an error.
func NormalizeMetadata(raw *record.MetadataRecord) (*record.MovieDatasetRecord, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	if raw.AggregateRating == nil {
		return nil, ErrNoAggregateRating
	}

	row := &record.MovieDatasetRecord{
		TitleID:       raw.TitleID,
		OriginalTitle: raw.OriginalTitle,
		Director:      raw.Director,
		Rating:        parseRating(raw.AggregateRating.AvgRating),
		NumVotes:      parseCount(raw.AggregateRating.NumVotes),
	}

	if rs := raw.ReviewSummary; rs != nil {
		row.UserReviews = parseCount(rs.UserReviews)
		row.CriticReviews = parseCount(rs.CriticReviews)
		row.Metascore = parseCount(rs.Metascore)
	}

	row.Genre1 = pick(raw.Genres, 0)
	row.Genre2 = pick(raw.Genres, 1)
	row.Genre3 = pick(raw.Genres, 2)

	d := raw.Details
	if len(d.ReleaseDate) > 0 {
		row.ReleaseDate = parseReleaseDate(d.ReleaseDate[0])
	}
	row.RuntimeMinutes = parseRuntime(d.Runtime)
	row.CountryOfOrigin1 = pick(d.CountriesOfOrigin, 0)
	row.CountryOfOrigin2 = pick(d.CountriesOfOrigin, 1)
	row.CountryOfOrigin3 = pick(d.CountriesOfOrigin, 2)
	row.OriginalLanguage = firstNonEmpty(d.Languages)
	row.AlsoKnownAs = pick(d.AlsoKnownAs, 0)
	row.ProductionCompany1 = pick(d.ProductionCompanies, 0)
	row.ProductionCompany2 = pick(d.ProductionCompanies, 1)
	row.ProductionCompany3 = pick(d.ProductionCompanies, 2)
	if len(d.FilmingLocations) > 0 {
		row.FilmingLocation = d.FilmingLocations[0]
		row.FilmingCountry = lastWord(d.FilmingLocations[0])
	}

	bo := raw.BoxOffice
	row.Budget = parseMoney(bo.Budget)
	row.GrossDomestic = parseMoney(bo.GrossDomestic)
	row.GrossOpening = parseMoney(bo.GrossOpening)
	row.GrossWorldwide = parseMoney(bo.GrossWorldwide)

	return row, nil
}

func firstNonEmpty(items []string) string {
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			return s
		}
	}
	return ""
}
