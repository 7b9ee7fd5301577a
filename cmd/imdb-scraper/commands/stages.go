package commands

import (
	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Discover titles per genre and capture their metadata pages",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), p.RunMetadata)
	},
}

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Capture the sampled reviews of every title with stored metadata",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), p.RunReviews)
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Rebuild the normalized dataset from the raw captures",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		return runStage(cmd.Context(), p.RunPreprocess)
	},
}
