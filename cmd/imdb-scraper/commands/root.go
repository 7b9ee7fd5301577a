// Package commands implements the imdb-scraper CLI. Each stage is its own
// subcommand so stages can run on separate schedules; they share state only
// through the configured store.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ilyamil/IMDB-scraper/internal/config"
	"github.com/ilyamil/IMDB-scraper/internal/fetch"
	"github.com/ilyamil/IMDB-scraper/internal/pipeline"
	"github.com/ilyamil/IMDB-scraper/internal/scrape"
	"github.com/ilyamil/IMDB-scraper/internal/storage"
	"github.com/ilyamil/IMDB-scraper/pkg/logging"
	"github.com/ilyamil/IMDB-scraper/pkg/ratelimit"
)

var (
	configPath      string
	credentialsPath string
)

var rootCmd = &cobra.Command{
	Use:   "imdb-scraper",
	Short: "imdb-scraper samples movie metadata and reviews into a dataset",
	Long: `imdb-scraper walks genre listings, captures a configured share of
titles and their reviews into a raw store, and derives a normalized dataset
from the captures. Stages are re-runnable: work already in the store is not
fetched again.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "credentials.yaml", "path to the credentials file")

	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(preprocessCmd)
}

// ExecuteContext runs the CLI. Any failed stage exits non-zero.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and credentials and wires the pipeline behind
// the subcommands.
func setup(ctx context.Context) (*pipeline.Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	creds, err := config.LoadCredentials(credentialsPath)
	if err != nil {
		return nil, err
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, err
	}

	storageCfg := cfg.Storage
	if storageCfg.Backend == "s3" {
		if storageCfg.Bucket == "" {
			storageCfg.Bucket = creds.AWS.Bucket
		}
		if storageCfg.Region == "" {
			storageCfg.Region = creds.AWS.Region
		}
	}
	store, err := storage.NewRawStore(ctx, storageCfg, storage.S3Credentials{
		AccessKey:       creds.AWS.AccessKey,
		SecretAccessKey: creds.AWS.SecretAccessKey,
	}, storage.NewSimpleMetricsCollector())
	if err != nil {
		return nil, err
	}

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.Timeout = cfg.Fetch.Timeout.Std()
	fetchCfg.MaxAttempts = cfg.Fetch.MaxAttempts
	fetchCfg.InitialBackoff = cfg.Fetch.InitialBackoff.Std()
	fetchCfg.MaxBackoff = cfg.Fetch.MaxBackoff.Std()
	if cfg.Fetch.UserAgent != "" {
		fetchCfg.UserAgent = cfg.Fetch.UserAgent
	}

	limiter := ratelimit.New(cfg.Fetch.MinInterval.Std())
	fetcher := fetch.NewFetcher(limiter, fetchCfg)

	return pipeline.New(cfg, store, fetcher, scrape.DefaultEndpoints()), nil
}

// runStage executes one stage and prints its report. The report goes to
// stdout even when the stage failed partway, so partial progress is always
// visible.
func runStage(ctx context.Context, run func(context.Context) (*pipeline.RunReport, error)) error {
	report, err := run(ctx)
	if report != nil {
		if printErr := printReport(report); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%d of %d items failed", report.Summary.Failed, len(report.Items))
	}
	return nil
}

func printReport(report *pipeline.RunReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
