package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"servicedir-etl/internal/pipeline"
)

var ndjsonPath string

func init() {
	transformCmd.Flags().StringVar(&ndjsonPath, "ndjson", "", "also export the cleaned table as NDJSON to this path")
	rootCmd.AddCommand(transformCmd)
}

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Cleans the raw service table and writes the processed dataset.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("transform")
		if err != nil {
			return err
		}
		defer log.Sync()
		if ndjsonPath != "" {
			cfg.Processor.NDJSONPath = ndjsonPath
		}

		if _, err := pipeline.Transform(cmd.Context(), cfg, os.Stdout, log); err != nil {
			log.Errorf("transform failed: %v", err)
			return err
		}
		return nil
	},
}
