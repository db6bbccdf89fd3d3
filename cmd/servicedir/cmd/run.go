package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"servicedir-etl/internal/pipeline"
)

func init() {
	runCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 0, "number of detail pages fetched at once (overrides scraper.concurrency)")
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "record failed services and continue instead of stopping")
	runCmd.Flags().StringVar(&ndjsonPath, "ndjson", "", "also export the cleaned table as NDJSON to this path")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs crawl, scrape and transform in sequence.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("run")
		if err != nil {
			return err
		}
		defer log.Sync()
		applyScrapeFlags(cmd, &cfg.Scraper.Concurrency, &cfg.Scraper.FailFast)
		if ndjsonPath != "" {
			cfg.Processor.NDJSONPath = ndjsonPath
		}
		return pipeline.Run(cmd.Context(), cfg, os.Stdout, log)
	},
}
