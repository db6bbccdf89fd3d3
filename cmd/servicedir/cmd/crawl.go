package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"servicedir-etl/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(crawlCmd)
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Walks the paginated listing and writes the service link table.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup("crawl")
		if err != nil {
			return err
		}
		defer log.Sync()

		stats, err := pipeline.Crawl(cmd.Context(), cfg, log)
		if err != nil {
			log.Errorf("crawl failed: %v", err)
			return err
		}
		log.Infof("time taken for crawling: %s", stats.Elapsed.Round(10*time.Millisecond))
		log.Infof("all service urls written to %s", cfg.Crawler.LinksDataPath)
		return nil
	},
}
