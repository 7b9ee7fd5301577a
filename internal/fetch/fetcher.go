// Package fetch implements rate-limited page retrieval with bounded retry.
// All scraping traffic goes through one Fetcher sharing one limiter; the
// limiter is the politeness contract, so every attempt (retries included)
// consumes a slot.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ilyamil/IMDB-scraper/pkg/logging"
)

// Kind labels what shape of page the caller expects back. It is carried on
// RawPage so stored captures stay attributable to the listing that produced
// them.
type Kind string

const (
	KindGenreListing Kind = "genre_listing"
	KindTitlePage    Kind = "title_page"
	KindReviewPage   Kind = "review_page"
)

// RawPage is the unit of retry and idempotence: re-fetching the same URL is
// always safe and only ever overwrites the corresponding record downstream.
type RawPage struct {
	URL        string
	Kind       Kind
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
}

// ErrorKind classifies fetch failures for the partial-failure report.
type ErrorKind string

const (
	// Exhausted means transient failures outlasted the retry budget.
	Exhausted ErrorKind = "exhausted"
	// NotFound is a definitive 404/410; never retried.
	NotFound ErrorKind = "not_found"
	// ParseMismatch means the server answered with an unexpected content
	// shape (wrong content type, empty body); never retried.
	ParseMismatch ErrorKind = "parse_mismatch"
)

// FetchError is the typed failure returned by Fetch.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s (status=%d attempts=%d): %v",
		e.URL, e.Kind, e.StatusCode, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Limiter is the shared request limiter. It is an explicit dependency rather
// than a hidden singleton so tests can swap in a zero-delay double.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Config configures fetch behavior.
type Config struct {
	UserAgent      string        `json:"user_agent" yaml:"user_agent"`
	AcceptLanguage string        `json:"accept_language" yaml:"accept_language"`
	Timeout        time.Duration `json:"timeout" yaml:"timeout"`
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoff time.Duration `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" yaml:"max_backoff"`
	MaxBodySize    int64         `json:"max_body_size" yaml:"max_body_size"`
}

// DefaultConfig returns default fetch configuration.
func DefaultConfig() *Config {
	return &Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.5",
		Timeout:        20 * time.Second,
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
	}
}

// Fetcher issues rate-limited HTTP GETs with capped exponential retry on
// transient failures.
type Fetcher struct {
	client  *http.Client
	limiter Limiter
	config  *Config
}

// NewFetcher creates a fetcher. The limiter must be shared with every other
// fetcher in the process.
func NewFetcher(limiter Limiter, config *Config) *Fetcher {
	if config == nil {
		config = DefaultConfig()
	}
	return &Fetcher{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		config:  config,
	}
}

// Fetch retrieves url, retrying timeouts, connection errors and 5xx/429
// responses with capped exponential backoff. Definitive client errors (404,
// unexpected content shape) return immediately without retry. The error, when
// non-nil, is always a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string, kind Kind) (*RawPage, error) {
	logger := logging.GetLogger("fetch")

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.config.InitialBackoff
	policy.MaxInterval = f.config.MaxBackoff
	policy.MaxElapsedTime = 0

	attempts := 0
	var page *RawPage
	var lastStatus int

	op := func() error {
		attempts++
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		p, status, err := f.attempt(ctx, url, kind)
		lastStatus = status
		if err == nil {
			page = p
			return nil
		}

		var fe *FetchError
		if pe, ok := err.(*FetchError); ok {
			fe = pe
		}
		if fe != nil && fe.Kind != Exhausted {
			// NotFound and ParseMismatch are definitive.
			fe.Attempts = attempts
			return backoff.Permanent(fe)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		logger.Debug().
			Str("url", url).
			Int("attempt", attempts).
			Int("status", status).
			Err(err).
			Msg("transient fetch failure, will retry")
		return err
	}

	maxRetries := uint64(0)
	if f.config.MaxAttempts > 1 {
		maxRetries = uint64(f.config.MaxAttempts - 1)
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err == nil {
		return page, nil
	}

	if fe, ok := err.(*FetchError); ok {
		return nil, fe
	}
	return nil, &FetchError{
		URL:        url,
		Kind:       Exhausted,
		StatusCode: lastStatus,
		Attempts:   attempts,
		Err:        err,
	}
}

// attempt performs a single request. Transient failures come back as plain
// errors (retried by Fetch); definitive ones as *FetchError.
func (f *Fetcher) attempt(ctx context.Context, url string, kind Kind) (*RawPage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, &FetchError{URL: url, Kind: ParseMismatch, Err: err}
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept-Language", f.config.AcceptLanguage)

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts and connection resets are transient.
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, resp.StatusCode, &FetchError{
			URL:        url,
			Kind:       NotFound,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("HTTP %d", resp.StatusCode),
		}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, resp.StatusCode, &FetchError{
			URL:        url,
			Kind:       ParseMismatch,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isTextual(ct) {
		return nil, resp.StatusCode, &FetchError{
			URL:        url,
			Kind:       ParseMismatch,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected content type %q", ct),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	if len(body) == 0 {
		return nil, resp.StatusCode, &FetchError{
			URL:        url,
			Kind:       ParseMismatch,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("empty response body"),
		}
	}

	return &RawPage{
		URL:        url,
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Body:       body,
		FetchedAt:  time.Now().UTC(),
	}, resp.StatusCode, nil
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "application/json") ||
		strings.Contains(ct, "text/plain")
}
