package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLimiter records how many slots were consumed.
type countingLimiter struct {
	waits atomic.Int64
}

func (c *countingLimiter) Wait(ctx context.Context) error {
	c.waits.Add(1)
	return ctx.Err()
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en-US,en;q=0.5", r.Header.Get("Accept-Language"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := NewFetcher(limiter, fastConfig())

	page, err := f.Fetch(context.Background(), srv.URL, KindTitlePage)
	require.NoError(t, err)
	assert.Equal(t, KindTitlePage, page.Kind)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "ok")
	assert.False(t, page.FetchedAt.IsZero())
	assert.Equal(t, int64(1), limiter.waits.Load())
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html>recovered</html>"))
	}))
	defer srv.Close()

	limiter := &countingLimiter{}
	f := NewFetcher(limiter, fastConfig())

	page, err := f.Fetch(context.Background(), srv.URL, KindGenreListing)
	require.NoError(t, err)
	assert.Contains(t, string(page.Body), "recovered")
	assert.Equal(t, int64(3), calls.Load())
	// Every attempt, including failed ones, consumed a limiter slot.
	assert.Equal(t, int64(3), limiter.waits.Load())
}

func TestFetchExhaustedAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(&countingLimiter{}, fastConfig())

	_, err := f.Fetch(context.Background(), srv.URL, KindTitlePage)
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, Exhausted, fe.Kind)
	assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	assert.Equal(t, int64(3), calls.Load())
}

func TestFetchNotFoundNoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(&countingLimiter{}, fastConfig())

	_, err := f.Fetch(context.Background(), srv.URL, KindTitlePage)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, NotFound, fe.Kind)
	assert.Equal(t, int64(1), calls.Load(), "404 must not be retried")
}

func TestFetchUnexpectedContentTypeNoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50})
	}))
	defer srv.Close()

	f := NewFetcher(&countingLimiter{}, fastConfig())

	_, err := f.Fetch(context.Background(), srv.URL, KindTitlePage)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ParseMismatch, fe.Kind)
	assert.Equal(t, int64(1), calls.Load())
}

func TestFetchRetriesOn429(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("<html>slow down accepted</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(&countingLimiter{}, fastConfig())

	page, err := f.Fetch(context.Background(), srv.URL, KindReviewPage)
	require.NoError(t, err)
	assert.Contains(t, string(page.Body), "accepted")
}

func TestFetchCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFetcher(&countingLimiter{}, fastConfig())
	_, err := f.Fetch(ctx, srv.URL, KindTitlePage)
	assert.Error(t, err)
}
