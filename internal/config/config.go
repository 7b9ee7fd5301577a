// Package config loads and validates the scraper configuration and the
// storage credentials. Validation runs before any network activity; an
// invalid sampling percentage aborts the run here.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ilyamil/IMDB-scraper/internal/sampling"
	"github.com/ilyamil/IMDB-scraper/internal/storage"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
)

// Duration wraps time.Duration with YAML support for values like "200ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// GenreList holds the configured genres. The YAML value may be either an
// explicit list or the keyword "all", which leaves the list empty so the
// discovery stage expands it to the full catalog.
type GenreList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *GenreList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s != "all" {
			return fmt.Errorf("genres must be a list or the keyword \"all\", got %q", s)
		}
		*g = nil
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return err
	}
	*g = list
	return nil
}

// All reports whether the full genre catalog was requested.
func (g GenreList) All() bool { return len(g) == 0 }

// FetchConfig mirrors fetch.Config with YAML-friendly durations.
type FetchConfig struct {
	MinInterval    Duration `yaml:"min_interval"`
	Timeout        Duration `yaml:"timeout"`
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff Duration `yaml:"initial_backoff"`
	MaxBackoff     Duration `yaml:"max_backoff"`
	UserAgent      string   `yaml:"user_agent"`
}

// MetadataConfig configures the metadata collection stage.
type MetadataConfig struct {
	Genres           GenreList `yaml:"genres"`
	PctTitles        float64   `yaml:"pct_titles"`
	Overwrite        bool      `yaml:"overwrite"`
	MaxPagesPerGenre int       `yaml:"max_pages_per_genre"`
}

// ReviewsConfig configures the review collection stage.
type ReviewsConfig struct {
	PctReviews       float64 `yaml:"pct_reviews"`
	Overwrite        bool    `yaml:"overwrite"`
	MaxPagesPerTitle int     `yaml:"max_pages_per_title"`
}

// Config is the full scraper configuration read from config.yaml.
type Config struct {
	Logging  *logging.LogConfig `yaml:"logging"`
	Storage  storage.Config     `yaml:"storage"`
	Fetch    FetchConfig        `yaml:"fetch"`
	Workers  int                `yaml:"workers"`
	Metadata MetadataConfig     `yaml:"metadata"`
	Reviews  ReviewsConfig      `yaml:"reviews"`
}

// AWSCredentials carries the blob-store credentials and bucket identity.
type AWSCredentials struct {
	AccessKey       string `yaml:"access_key"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
}

// Credentials is the content of credentials.yaml.
type Credentials struct {
	AWS AWSCredentials `yaml:"aws"`
}

// Default returns the configuration used when a field is omitted.
func Default() *Config {
	return &Config{
		Logging: logging.DefaultLogConfig(),
		Storage: storage.Config{Backend: "local", Path: "data"},
		Fetch: FetchConfig{
			MinInterval:    Duration(200 * time.Millisecond),
			Timeout:        Duration(20 * time.Second),
			MaxAttempts:    5,
			InitialBackoff: Duration(1 * time.Second),
			MaxBackoff:     Duration(30 * time.Second),
		},
		Workers: 4,
		Metadata: MetadataConfig{
			PctTitles:        10,
			MaxPagesPerGenre: 40,
		},
		Reviews: ReviewsConfig{
			PctReviews:       20,
			MaxPagesPerTitle: 200,
		},
	}
}

// Load reads and validates config.yaml, filling omitted fields with
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCredentials reads credentials.yaml. Missing credentials are only an
// error for the s3 backend, checked in Validate via the store factory.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// Validate checks every configured value that could otherwise fail
// mid-scrape. Sampling percentages are validated here so an invalid value
// aborts the run before any fetching.
func (c *Config) Validate() error {
	if err := sampling.ValidatePercentage(c.Metadata.PctTitles); err != nil {
		return fmt.Errorf("metadata.pct_titles: %w", err)
	}
	if err := sampling.ValidatePercentage(c.Reviews.PctReviews); err != nil {
		return fmt.Errorf("reviews.pct_reviews: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got %d", c.Fetch.MaxAttempts)
	}
	if c.Metadata.MaxPagesPerGenre < 1 {
		return fmt.Errorf("metadata.max_pages_per_genre must be at least 1, got %d", c.Metadata.MaxPagesPerGenre)
	}
	if c.Reviews.MaxPagesPerTitle < 1 {
		return fmt.Errorf("reviews.max_pages_per_title must be at least 1, got %d", c.Reviews.MaxPagesPerTitle)
	}
	switch c.Storage.Backend {
	case "s3", "local", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}
