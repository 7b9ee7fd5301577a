package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ilyamil/IMDB-scraper/internal/config"
	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/processing"
	"github.com/ilyamil/IMDB-scraper/internal/scrape"
	"github.com/ilyamil/IMDB-scraper/internal/storage"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

// Pipeline wires the stages together over a shared fetcher and store. Each
// Run* method is one stage; stages communicate only through the store, so
// they can run in separate invocations.
type Pipeline struct {
	cfg       *config.Config
	store     storage.RawStore
	fetcher   *fetch.Fetcher
	endpoints scrape.Endpoints
	runID     string
}

// New creates a pipeline. A fresh run id ties the stage reports of one
// invocation together.
func New(cfg *config.Config, store storage.RawStore, fetcher *fetch.Fetcher, endpoints scrape.Endpoints) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		endpoints: endpoints,
		runID:     uuid.NewString(),
	}
}

// RunID returns the identifier shared by this pipeline's stage reports.
func (p *Pipeline) RunID() string { return p.runID }

// genreSpecs expands the configured genre list, with the "all" form
// covering the whole catalog.
func (p *Pipeline) genreSpecs() []record.GenreSpec {
	names := []string(p.cfg.Metadata.Genres)
	if p.cfg.Metadata.Genres.All() {
		names = scrape.Genres
	}
	specs := make([]record.GenreSpec, len(names))
	for i, name := range names {
		specs[i] = record.GenreSpec{Name: name, PctTitles: p.cfg.Metadata.PctTitles}
	}
	return specs
}

// RunMetadata discovers titles per genre and captures their metadata pages.
// Titles already in the store are skipped unless overwrite is set. The
// returned report lists every title's outcome; the error covers only
// failures that aborted the stage as a whole.
func (p *Pipeline) RunMetadata(ctx context.Context) (*RunReport, error) {
	logger := logging.GetStageLogger(p.runID, "metadata")
	report := newReport(p.runID, "metadata")

	discovery := scrape.NewDiscovery(p.fetcher, p.endpoints, p.cfg.Metadata.MaxPagesPerGenre)
	discovered, err := discovery.Discover(ctx, p.genreSpecs())
	if err != nil {
		return report, fmt.Errorf("discovery: %w", err)
	}
	for _, failure := range discovered.Failures {
		report.failed("genre/"+failure.Genre, failure.Err)
	}

	extractor := scrape.NewMetadataExtractor(p.fetcher, p.endpoints)
	results := runPool(ctx, p.cfg.Workers, discovered.Titles, func(ctx context.Context, ref record.TitleRef) ItemResult {
		return p.captureMetadata(ctx, extractor, ref)
	})
	for _, item := range results {
		report.add(item)
	}

	report.finalize()
	logger.Info().
		Int("titles", len(discovered.Titles)).
		Int("processed", report.Summary.Processed).
		Int("skipped", report.Summary.Skipped).
		Int("failed", report.Summary.Failed).
		Msg("metadata stage complete")
	return report, nil
}

func (p *Pipeline) captureMetadata(ctx context.Context, extractor *scrape.MetadataExtractor, ref record.TitleRef) ItemResult {
	key := record.MetadataKey(ref.ID)

	if !p.cfg.Metadata.Overwrite {
		exists, err := p.exists(ctx, key)
		if err != nil {
			return failedItem(key, err)
		}
		if exists {
			return ItemResult{Key: key, Status: StatusSkipped}
		}
	}

	rec, err := extractor.Extract(ctx, ref)
	if err != nil {
		return failedItem(key, err)
	}
	// Discovery knows the genre memberships and listing rank; the page
	// itself does not.
	rec.Genres = mergeGenres(rec.Genres, ref.Genres)

	if err := p.putJSON(ctx, key, rec); err != nil {
		return failedItem(key, err)
	}
	return ItemResult{Key: key, Status: StatusProcessed}
}

// RunReviews captures the sampled reviews of every title with stored
// metadata. A title that already has any stored review is skipped unless
// overwrite is set.
func (p *Pipeline) RunReviews(ctx context.Context) (*RunReport, error) {
	logger := logging.GetStageLogger(p.runID, "reviews")
	report := newReport(p.runID, "reviews")

	titles, err := p.reviewTargets(ctx)
	if err != nil {
		return report, err
	}

	extractor := scrape.NewReviewExtractor(
		p.fetcher, p.endpoints,
		p.cfg.Reviews.PctReviews,
		p.cfg.Reviews.MaxPagesPerTitle,
	)
	results := runPool(ctx, p.cfg.Workers, titles, func(ctx context.Context, ref record.TitleRef) []ItemResult {
		return p.captureReviews(ctx, extractor, ref)
	})
	for _, items := range results {
		for _, item := range items {
			report.add(item)
		}
	}

	report.finalize()
	logger.Info().
		Int("titles", len(titles)).
		Int("processed", report.Summary.Processed).
		Int("skipped", report.Summary.Skipped).
		Int("failed", report.Summary.Failed).
		Msg("reviews stage complete")
	return report, nil
}

// reviewTargets lists the titles whose reviews should be captured: every
// title with stored metadata.
func (p *Pipeline) reviewTargets(ctx context.Context) ([]record.TitleRef, error) {
	keys, err := p.store.ListKeys(ctx, record.RawMetadataPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing stored metadata: %w", err)
	}
	titles := make([]record.TitleRef, 0, len(keys))
	for _, key := range keys {
		if id := record.TitleIDFromKey(key); id != "" {
			titles = append(titles, record.TitleRef{ID: id})
		}
	}
	return titles, nil
}

func (p *Pipeline) captureReviews(ctx context.Context, extractor *scrape.ReviewExtractor, ref record.TitleRef) []ItemResult {
	prefix := record.ReviewTitlePrefix(ref.ID)

	if !p.cfg.Reviews.Overwrite {
		existing, err := p.store.ListKeys(ctx, prefix)
		if err != nil {
			return []ItemResult{failedItem(prefix, err)}
		}
		if len(existing) > 0 {
			return []ItemResult{{Key: prefix, Status: StatusSkipped}}
		}
	}

	result, extractErr := extractor.Extract(ctx, ref)

	var items []ItemResult
	for i := range result.Reviews {
		rev := &result.Reviews[i]
		key := record.ReviewKey(rev.TitleID, rev.ReviewID)
		if err := p.putJSON(ctx, key, rev); err != nil {
			items = append(items, failedItem(key, err))
			continue
		}
		items = append(items, ItemResult{Key: key, Status: StatusProcessed})
	}
	for _, failure := range result.Failures {
		items = append(items, failedItem(record.ReviewKey(ref.ID, failure.ReviewID), failure.Err))
	}
	if extractErr != nil {
		// Pagination broke off; reviews stored so far stay valid.
		items = append(items, failedItem(prefix, extractErr))
	}
	return items
}

// RunPreprocess rebuilds the normalized dataset from the raw store.
func (p *Pipeline) RunPreprocess(ctx context.Context) (*RunReport, error) {
	report := newReport(p.runID, "preprocess")

	result, err := processing.NewPreprocessor(p.store).Run(ctx)
	if err != nil {
		report.finalize()
		return report, err
	}

	for _, drop := range result.Dropped {
		report.add(ItemResult{
			Key:       drop.Key,
			Status:    StatusFailed,
			ErrorKind: "dropped",
			Error:     drop.Err,
		})
	}
	report.finalize()
	report.Summary.Processed = result.MetadataProcessed + result.ReviewsProcessed
	return report, nil
}

// runPool fans jobs out to a fixed number of workers and collects their
// results. Result order is not deterministic; reports sort by key.
func runPool[T any](ctx context.Context, workers int, jobs []record.TitleRef, work func(context.Context, record.TitleRef) T) []T {
	if workers < 1 {
		workers = 1
	}
	jobQueue := make(chan record.TitleRef, len(jobs))
	resultQueue := make(chan T, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := logging.GetLogger("worker")
			for ref := range jobQueue {
				select {
				case <-ctx.Done():
					return
				default:
				}
				logger.Debug().Int("worker_id", workerID).Str("title_id", ref.ID).Msg("processing title")
				resultQueue <- work(ctx, ref)
			}
		}(i)
	}

	for _, ref := range jobs {
		jobQueue <- ref
	}
	close(jobQueue)
	wg.Wait()
	close(resultQueue)

	results := make([]T, 0, len(jobs))
	for r := range resultQueue {
		results = append(results, r)
	}
	return results
}

func (p *Pipeline) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := p.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// exists checks key presence without caring about the stored bytes.
func (p *Pipeline) exists(ctx context.Context, key string) (bool, error) {
	if _, err := p.store.Get(ctx, key); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func failedItem(key string, err error) ItemResult {
	return ItemResult{
		Key:       key,
		Status:    StatusFailed,
		ErrorKind: errorKind(err),
		Error:     err.Error(),
	}
}

// mergeGenres unions the page's own genre labels with the discovery
// memberships, preserving page order first.
func mergeGenres(pageGenres, discovered []string) []string {
	seen := make(map[string]bool, len(pageGenres))
	out := make([]string, 0, len(pageGenres)+len(discovered))
	for _, g := range pageGenres {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for _, g := range discovered {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}
