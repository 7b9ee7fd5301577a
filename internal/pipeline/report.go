// Package pipeline orchestrates the scraping stages: it fans title work out
// to a worker pool, persists raw captures and reports per-item outcomes.
package pipeline

import (
	"errors"
	"sort"
	"time"

	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/scrape"
)

// ItemStatus is the outcome of one work item.
type ItemStatus string

const (
	StatusProcessed ItemStatus = "processed"
	StatusSkipped   ItemStatus = "skipped"
	StatusFailed    ItemStatus = "failed"
)

// ItemResult is the recorded outcome of one work item. Key is the store key
// the item writes to, or a stage-specific identity for items that never
// reached the store.
type ItemResult struct {
	Key       string     `json:"key"`
	Status    ItemStatus `json:"status"`
	ErrorKind string     `json:"error_kind,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Summary aggregates item outcomes by status and failure kind.
type Summary struct {
	Processed    int            `json:"processed"`
	Skipped      int            `json:"skipped"`
	Failed       int            `json:"failed"`
	FailureKinds map[string]int `json:"failure_kinds,omitempty"`
}

// RunReport describes one stage run. Items are sorted by key once the
// report is finalized, so two runs over the same inputs produce comparable
// reports.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Stage      string       `json:"stage"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Items      []ItemResult `json:"items"`
	Summary    Summary      `json:"summary"`
}

func newReport(runID, stage string) *RunReport {
	return &RunReport{
		RunID:     runID,
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
}

func (r *RunReport) add(item ItemResult) {
	r.Items = append(r.Items, item)
}

func (r *RunReport) processed(key string) {
	r.add(ItemResult{Key: key, Status: StatusProcessed})
}

func (r *RunReport) skipped(key string) {
	r.add(ItemResult{Key: key, Status: StatusSkipped})
}

func (r *RunReport) failed(key string, err error) {
	r.add(ItemResult{
		Key:       key,
		Status:    StatusFailed,
		ErrorKind: errorKind(err),
		Error:     err.Error(),
	})
}

// finalize sorts items and computes the summary. Called once per run, after
// all workers are done.
func (r *RunReport) finalize() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		return r.Items[i].Key < r.Items[j].Key
	})

	r.Summary = Summary{}
	for _, item := range r.Items {
		switch item.Status {
		case StatusProcessed:
			r.Summary.Processed++
		case StatusSkipped:
			r.Summary.Skipped++
		case StatusFailed:
			r.Summary.Failed++
			if r.Summary.FailureKinds == nil {
				r.Summary.FailureKinds = make(map[string]int)
			}
			r.Summary.FailureKinds[item.ErrorKind]++
		}
	}
	r.FinishedAt = time.Now().UTC()
}

// HasFailures reports whether any item failed.
func (r *RunReport) HasFailures() bool {
	return r.Summary.Failed > 0
}

// errorKind maps an error to its report category.
func errorKind(err error) string {
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	var ee *scrape.ExtractError
	if errors.As(err, &ee) {
		return string(ee.Kind)
	}
	return "other"
}
