package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"servicedir-etl/internal/pipeline"
)

var (
	scrapeConcurrency int
	keepGoing         bool
)

func init() {
	scrapeCmd.Flags().IntVar(&scrapeConcurrency, "concurrency", 0, "number of detail pages fetched at once (overrides scraper.concurrency)")
	scrapeCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "record failed services and continue instead of stopping")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrapes every linked detail page into the raw service table.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("scrape")
		if err != nil {
			return err
		}
		defer log.Sync()
		applyScrapeFlags(cmd, &cfg.Scraper.Concurrency, &cfg.Scraper.FailFast)

		rep, err := pipeline.Scrape(cmd.Context(), cfg, log)
		if err != nil {
			log.Errorf("scrape failed: %v", err)
			return err
		}
		log.Infof("time taken for scraping: %s", rep.Elapsed.Round(10*time.Millisecond))
		return rep.Err()
	},
}

func applyScrapeFlags(cmd *cobra.Command, concurrency *int, failFast **bool) {
	if cmd.Flags().Changed("concurrency") {
		*concurrency = scrapeConcurrency
	}
	if keepGoing {
		no := false
		*failFast = &no
	}
}
