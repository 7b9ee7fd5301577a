package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

// topNActors bounds the billed cast captured per title.
const topNActors = 10

// MetadataExtractor fetches and parses one metadata page per title.
type MetadataExtractor struct {
	fetcher   *fetch.Fetcher
	endpoints Endpoints
}

// NewMetadataExtractor creates a metadata extractor.
func NewMetadataExtractor(fetcher *fetch.Fetcher, endpoints Endpoints) *MetadataExtractor {
	return &MetadataExtractor{fetcher: fetcher, endpoints: endpoints}
}

// Extract fetches a title's metadata page and parses it into a raw record.
// Missing individual fields are tolerated and simply left absent; only a
// failed fetch or a page whose overall shape no longer matches (schema
// drift) is an error. Fetch failures come back as *fetch.FetchError, parse
// failures as *ExtractError with kind SchemaDrift.
func (m *MetadataExtractor) Extract(ctx context.Context, ref record.TitleRef) (*record.MetadataRecord, error) {
	url := m.endpoints.Title(ref.ID)
	raw, err := m.fetcher.Fetch(ctx, url, fetch.KindTitlePage)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Body))
	if err != nil {
		return nil, &ExtractError{TitleID: ref.ID, Kind: SchemaDrift, Err: err}
	}

	rec := &record.MetadataRecord{
		TitleID:    ref.ID,
		SourceURL:  url,
		CapturedAt: raw.FetchedAt,
	}

	rec.OriginalTitle = collectOriginalTitle(doc)
	rec.Genres = collectGenres(doc)
	rec.Director = collectDirector(doc)
	rec.PosterURL = collectPosterURL(doc)
	rec.ReviewSummary = collectReviewSummary(doc)
	rec.AggregateRating = collectAggregateRating(doc)
	rec.Actors = collectActors(doc)
	rec.Recommendations = collectRecommendations(doc)
	rec.Details = collectDetails(doc)
	rec.BoxOffice = collectBoxOffice(doc)

	// A title page always carries its hero title block. When even that is
	// gone the layout has drifted and nothing else can be trusted.
	if rec.OriginalTitle == "" && rec.AggregateRating == nil {
		return nil, &ExtractError{
			TitleID: ref.ID,
			Kind:    SchemaDrift,
			Err:     fmt.Errorf("page has neither a hero title block nor a rating block"),
		}
	}
	return rec, nil
}

func collectOriginalTitle(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find(`h1[data-testid="hero-title-block__title"]`).First().Text())
}

func collectGenres(doc *goquery.Document) []string {
	var genres []string
	doc.Find(`div[data-testid="genres"] a`).Each(func(_ int, s *goquery.Selection) {
		if g := strings.TrimSpace(s.Text()); g != "" {
			genres = append(genres, g)
		}
	})
	return genres
}

func collectDirector(doc *goquery.Document) string {
	sel := "ul.ipc-metadata-list.ipc-metadata-list--dividers-all.title-pc-list.ipc-metadata-list--baseAlt"
	return strings.TrimSpace(doc.Find(sel).First().Find("a").First().Text())
}

func collectPosterURL(doc *goquery.Document) string {
	src, _ := doc.Find(`div[data-testid="hero-media__poster"] img`).First().Attr("src")
	return src
}

func collectReviewSummary(doc *goquery.Document) *record.ReviewSummary {
	scores := doc.Find("span.score")
	if scores.Length() == 0 {
		return nil
	}
	texts := make([]string, 3)
	scores.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= 3 {
			return false
		}
		texts[i] = strings.TrimSpace(s.Text())
		return true
	})
	return &record.ReviewSummary{
		UserReviews:   texts[0],
		CriticReviews: texts[1],
		Metascore:     texts[2],
	}
}

func collectAggregateRating(doc *goquery.Document) *record.AggregateRating {
	block := doc.Find(`div[data-testid="hero-rating-bar__aggregate-rating"]`).First()
	if block.Length() == 0 {
		return nil
	}
	// The block renders as "IMDb RATING<rating>/10<votes>"; the "/10"
	// token separates rating from vote count.
	text := strings.ReplaceAll(block.Text(), "IMDb RATING", "")
	rating, votes, found := strings.Cut(text, "/10")
	if !found {
		return nil
	}
	return &record.AggregateRating{
		AvgRating: strings.TrimSpace(rating) + "/10",
		NumVotes:  strings.TrimSpace(votes),
	}
}

// splitIDAndRank splits hrefs like "/name/nm0000209/?ref_=tt_cl_t_3" into
// the entity id and the trailing rank the page assigned it.
func splitIDAndRank(href string) (id, rank string) {
	if href == "" {
		return "", ""
	}
	id, _, _ = strings.Cut(href, "?")
	if _, after, found := strings.Cut(href, "_t_"); found {
		rank = after
	}
	return id, rank
}

func collectActors(doc *goquery.Document) map[string]string {
	actors := make(map[string]string)
	doc.Find(`a[data-testid="title-cast-item__actor"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= topNActors {
			return false
		}
		href, _ := s.Attr("href")
		id, rank := splitIDAndRank(href)
		if id != "" && rank != "" {
			actors[rank] = id
		}
		return true
	})
	if len(actors) == 0 {
		return nil
	}
	return actors
}

func collectRecommendations(doc *goquery.Document) map[string]string {
	recs := make(map[string]string)
	doc.Find(`a[class*="ipc-poster-card__title"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		id, rank := splitIDAndRank(href)
		if id != "" && rank != "" {
			recs[rank] = id
		}
	})
	if len(recs) == 0 {
		return nil
	}
	return recs
}

func collectListItems(doc *goquery.Document, testID string) []string {
	var items []string
	doc.Find(fmt.Sprintf(`li[data-testid=%q]`, testID)).First().Find("li").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			items = append(items, text)
		}
	})
	return items
}

func collectDetails(doc *goquery.Document) record.Details {
	details := record.Details{
		ReleaseDate:         collectListItems(doc, "title-details-releasedate"),
		CountriesOfOrigin:   collectListItems(doc, "title-details-origin"),
		Languages:           collectListItems(doc, "title-details-languages"),
		AlsoKnownAs:         collectListItems(doc, "title-details-akas"),
		ProductionCompanies: collectListItems(doc, "title-details-companies"),
		FilmingLocations:    collectListItems(doc, "title-details-filminglocations"),
	}
	details.Runtime = strings.TrimSpace(
		doc.Find(`li[data-testid="title-techspec_runtime"]`).First().Find("div").First().Text(),
	)
	return details
}

func collectBoxOfficeItem(doc *goquery.Document, testID string) string {
	return strings.TrimSpace(
		doc.Find(fmt.Sprintf(`li[data-testid=%q]`, testID)).First().Find("li").First().Text(),
	)
}

func collectBoxOffice(doc *goquery.Document) record.BoxOffice {
	return record.BoxOffice{
		Budget:         collectBoxOfficeItem(doc, "title-boxoffice-budget"),
		GrossDomestic:  collectBoxOfficeItem(doc, "title-boxoffice-grossdomestic"),
		GrossOpening:   collectBoxOfficeItem(doc, "title-boxoffice-openingweekenddomestic"),
		GrossWorldwide: collectBoxOfficeItem(doc, "title-boxoffice-cumulativeworldwidegross"),
	}
}
