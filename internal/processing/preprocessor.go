package processing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ilyamil/IMDB-scraper/internal/storage"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
	"github.com/ilyamil/IMDB-scraper/pkg/record"
)

// Preprocessor derives the normalized dataset from the raw store. It never
// fetches anything; re-running it rebuilds the same dataset from the same
// captures.
type Preprocessor struct {
	store   storage.RawStore
	cleaner *TextCleaner
}

// NewPreprocessor creates a preprocessor over a raw store.
func NewPreprocessor(store storage.RawStore) *Preprocessor {
	return &Preprocessor{store: store, cleaner: NewTextCleaner()}
}

// Drop records one raw capture that did not make it into the dataset.
type Drop struct {
	Key string `json:"key"`
	Err string `json:"error"`
}

// Result summarizes one preprocessing run.
type Result struct {
	MetadataProcessed int    `json:"metadata_processed"`
	ReviewsProcessed  int    `json:"reviews_processed"`
	Dropped           []Drop `json:"dropped,omitempty"`
}

// Run normalizes every raw capture into its dataset row. A capture that
// cannot be normalized is dropped and recorded; store failures abort the
// run.
func (p *Preprocessor) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	if err := p.runMetadata(ctx, result); err != nil {
		return result, err
	}
	if err := p.runReviews(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Preprocessor) runMetadata(ctx context.Context, result *Result) error {
	logger := logging.GetLogger("preprocess")

	keys, err := p.store.ListKeys(ctx, record.RawMetadataPrefix)
	if err != nil {
		return fmt.Errorf("listing raw metadata: %w", err)
	}

	for _, key := range keys {
		data, err := p.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}

		var raw record.MetadataRecord
		if err := json.Unmarshal(data, &raw); err != nil {
			result.drop(key, err)
			logger.Warn().Str("key", key).Err(err).Msg("raw metadata is not valid JSON, dropping")
			continue
		}

		row, err := NormalizeMetadata(&raw)
		if err != nil {
			result.drop(key, err)
			if !errors.Is(err, ErrNoAggregateRating) {
				logger.Warn().Str("key", key).Err(err).Msg("metadata normalization failed, dropping")
			}
			continue
		}

		if err := p.put(ctx, record.DatasetMetadataKey(raw.TitleID), row); err != nil {
			return err
		}
		result.MetadataProcessed++
	}

	logger.Info().
		Int("processed", result.MetadataProcessed).
		Int("dropped", len(result.Dropped)).
		Msg("metadata preprocessing complete")
	return nil
}

func (p *Preprocessor) runReviews(ctx context.Context, result *Result) error {
	logger := logging.GetLogger("preprocess")
	droppedBefore := len(result.Dropped)

	keys, err := p.store.ListKeys(ctx, record.RawReviewsPrefix)
	if err != nil {
		return fmt.Errorf("listing raw reviews: %w", err)
	}

	for _, key := range keys {
		data, err := p.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", key, err)
		}

		var raw record.ReviewRecord
		if err := json.Unmarshal(data, &raw); err != nil {
			result.drop(key, err)
			logger.Warn().Str("key", key).Err(err).Msg("raw review is not valid JSON, dropping")
			continue
		}

		row, err := NormalizeReview(&raw, p.cleaner)
		if err != nil {
			result.drop(key, err)
			continue
		}

		if err := p.put(ctx, record.DatasetReviewKey(raw.TitleID, raw.ReviewID), row); err != nil {
			return err
		}
		result.ReviewsProcessed++
	}

	logger.Info().
		Int("processed", result.ReviewsProcessed).
		Int("dropped", len(result.Dropped)-droppedBefore).
		Msg("review preprocessing complete")
	return nil
}

func (p *Preprocessor) put(ctx context.Context, key string, row any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := p.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (r *Result) drop(key string, err error) {
	r.Dropped = append(r.Dropped, Drop{Key: key, Err: err.Error()})
}
