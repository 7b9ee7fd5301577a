package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SimpleMetricsCollector provides basic metrics collection for storage
// operations.
type SimpleMetricsCollector struct {
	metrics []Metrics
	mutex   sync.RWMutex
}

// NewSimpleMetricsCollector creates a new simple metrics collector.
func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{
		metrics: make([]Metrics, 0),
	}
}

// RecordMetric records a storage operation metric.
func (s *SimpleMetricsCollector) RecordMetric(metric Metrics) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.metrics = append(s.metrics, metric)

	logger := log.With().
		Str("operation", metric.OperationType).
		Str("backend", metric.Backend).
		Int64("duration_ns", metric.Duration).
		Bool("success", metric.Success).
		Logger()
	if metric.Error != nil {
		logger = logger.With().Err(metric.Error).Logger()
	}
	logger.Debug().Msg("Storage operation metric recorded")
}

// GetMetrics returns a copy of all collected metrics.
func (s *SimpleMetricsCollector) GetMetrics() []Metrics {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make([]Metrics, len(s.metrics))
	copy(result, s.metrics)
	return result
}

// OperationStats aggregates metrics per backend/operation pair.
type OperationStats struct {
	Count         int64
	SuccessCount  int64
	FailureCount  int64
	TotalDuration int64
}

// Summary groups collected metrics by backend and operation.
func (s *SimpleMetricsCollector) Summary() map[string]map[string]*OperationStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	byBackend := make(map[string]map[string]*OperationStats)
	for _, metric := range s.metrics {
		if byBackend[metric.Backend] == nil {
			byBackend[metric.Backend] = make(map[string]*OperationStats)
		}
		stats := byBackend[metric.Backend][metric.OperationType]
		if stats == nil {
			stats = &OperationStats{}
			byBackend[metric.Backend][metric.OperationType] = stats
		}
		stats.Count++
		stats.TotalDuration += metric.Duration
		if metric.Success {
			stats.SuccessCount++
		} else {
			stats.FailureCount++
		}
	}
	return byBackend
}

// instrumentedStore wraps a RawStore and reports every operation to the
// collector.
type instrumentedStore struct {
	inner     RawStore
	backend   string
	collector MetricsCollector
}

func newInstrumentedStore(inner RawStore, backend string, collector MetricsCollector) *instrumentedStore {
	return &instrumentedStore{inner: inner, backend: backend, collector: collector}
}

func (s *instrumentedStore) record(op string, start time.Time, err error) {
	s.collector.RecordMetric(Metrics{
		OperationType: op,
		Duration:      time.Since(start).Nanoseconds(),
		Success:       err == nil,
		Backend:       s.backend,
		Error:         err,
	})
}

func (s *instrumentedStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, data)
	s.record("put", start, err)
	return err
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.Get(ctx, key)
	s.record("get", start, err)
	return data, err
}

func (s *instrumentedStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	keys, err := s.inner.ListKeys(ctx, prefix)
	s.record("list_keys", start, err)
	return keys, err
}
