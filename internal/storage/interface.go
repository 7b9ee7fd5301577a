// Package storage provides the RawStore: a keyed blob store holding raw
// captures and preprocessed dataset records. Writes are idempotent upserts;
// distinct keys never contend, and a write to one key is atomic.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for keys that were never written.
var ErrNotFound = errors.New("storage: key not found")

// RawStore is the persistence boundary of the pipeline. Keys are
// slash-separated paths (see pkg/record). ListKeys is finite and restartable:
// each call iterates the full key set under the prefix from the start.
type RawStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Metrics describes one storage operation for telemetry.
type Metrics struct {
	OperationType string
	Duration      int64 // nanoseconds
	Success       bool
	Backend       string
	Error         error
}

// MetricsCollector receives storage operation metrics.
type MetricsCollector interface {
	RecordMetric(metric Metrics)
}

// Config selects and configures a RawStore backend.
type Config struct {
	Backend string `json:"backend" yaml:"backend"` // s3, local, memory
	// Local backend
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// S3 backend
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region string `json:"region,omitempty" yaml:"region,omitempty"`
}

// S3Credentials carries static credentials injected from the credentials
// file. The core never reads them; it only passes them through to the S3
// backend.
type S3Credentials struct {
	AccessKey       string `yaml:"access_key"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// NewRawStore builds the configured backend. The metrics collector may be
// nil.
func NewRawStore(ctx context.Context, cfg Config, creds S3Credentials, collector MetricsCollector) (RawStore, error) {
	var (
		store RawStore
		err   error
	)
	switch cfg.Backend {
	case "memory":
		store = NewMemoryStore()
	case "local":
		store, err = NewLocalStore(cfg.Path)
	case "s3":
		store, err = NewS3Store(ctx, cfg.Bucket, cfg.Region, creds)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if collector != nil {
		store = newInstrumentedStore(store, cfg.Backend, collector)
	}
	return store, nil
}
