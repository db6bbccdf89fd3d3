package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"servicedir-etl/internal/config"
	"servicedir-etl/internal/crawler"
	"servicedir-etl/internal/geocode"
	"servicedir-etl/internal/ioformats"
	"servicedir-etl/internal/models"
	"servicedir-etl/internal/parser"
	"servicedir-etl/internal/report"
	"servicedir-etl/internal/scraper"
	"servicedir-etl/internal/storage"
	"servicedir-etl/internal/transform"
	"servicedir-etl/pkg/logger"
)

const (
	dialTimeout = 5 * time.Second
	pageSizeCap = 5 * 1024 * 1024
	topN        = 10
)

func newFetcher(timeout time.Duration, userAgent string) *crawler.HTTPClient {
	return crawler.NewHTTPClient(timeout, dialTimeout, pageSizeCap).WithUserAgent(userAgent)
}

// Crawl runs the pagination stage and writes the link table.
func Crawl(ctx context.Context, cfg config.Config, l *logger.Logger) (crawler.Stats, error) {
	c := cfg.Crawler
	if c.Clear() {
		if err := ioformats.Truncate(c.LinksDataPath); err != nil {
			return crawler.Stats{}, eris.Wrapf(err, "clear %s", c.LinksDataPath)
		}
		l.Infof("cleared existing contents from %s", c.LinksDataPath)
	}

	cr := crawler.New(
		newFetcher(c.Timeout(), c.UserAgent),
		parser.New(),
		ioformats.NewLinkTable(c.LinksDataPath),
		crawler.Options{RootURL: c.RootURL, Delay: c.Delay()},
		l,
	)
	return cr.Crawl(ctx, c.StartPage())
}

// Scrape reads the link table and appends one raw row per scraped service.
// With fail_fast off, per-service failures are only reported in the Report.
func Scrape(ctx context.Context, cfg config.Config, l *logger.Logger) (scraper.Report, error) {
	s := cfg.Scraper
	links, err := ioformats.ReadLinks(s.LinksDataPath)
	if err != nil {
		return scraper.Report{}, eris.Wrapf(err, "read link table %s", s.LinksDataPath)
	}
	l.Infof("loaded %d service links from %s", len(links), s.LinksDataPath)

	if s.Clear() {
		if err := ioformats.Truncate(s.ScrapedDataPath); err != nil {
			return scraper.Report{}, eris.Wrapf(err, "clear %s", s.ScrapedDataPath)
		}
		l.Infof("cleared existing contents from %s", s.ScrapedDataPath)
	}

	sc := scraper.New(
		newFetcher(s.Timeout(), s.UserAgent),
		parser.New(),
		ioformats.NewRawTable(s.ScrapedDataPath),
		scraper.Options{Delay: s.Delay(), Concurrency: s.Concurrency, FailFast: s.StopOnFailure()},
		l,
	)
	rep, err := sc.Run(ctx, links)
	if err != nil {
		return rep, err
	}
	if ferr := rep.Err(); ferr != nil {
		l.Warnf("continuing without failed services: %v", ferr)
	}
	return rep, nil
}

// Transform cleans the raw table, exports it to every configured sink and
// prints the run summary to out.
func Transform(ctx context.Context, cfg config.Config, out io.Writer, l *logger.Logger) (transform.Summary, error) {
	p := cfg.Processor

	sinks, closeAll, err := openSinks(ctx, p, l)
	if err != nil {
		return transform.Summary{}, err
	}
	defer closeAll()

	geo := geocode.NewCached(geocode.NewClient(geocode.Options{
		SearchURL:     p.Geocoder.SearchURL,
		UserAgent:     p.Geocoder.UserAgent,
		Timeout:       p.Geocoder.Timeout(),
		RatePerSecond: p.Geocoder.RatePerSecond,
	}))

	collect := &collector{}
	sum, err := transform.New(geo, l).Run(ctx, p.ScrapedDataPath, p.ProcessedDataPath, append(sinks, collect)...)
	if err != nil {
		return sum, err
	}
	if out != nil {
		report.RenderSummary(out, sum, report.TopCategories(collect.rows, topN))
	}
	return sum, nil
}

func openSinks(ctx context.Context, p config.Processor, l *logger.Logger) ([]transform.Sink, func(), error) {
	var (
		sinks   []transform.Sink
		closers []storage.Sink
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				l.Warnf("close sink: %v", err)
			}
		}
	}

	if p.NDJSONPath != "" {
		sinks = append(sinks, ioformats.NDJSONFile{Path: p.NDJSONPath})
	}
	if p.SQLitePath != "" {
		s, err := storage.NewSQLiteSink(ctx, p.SQLitePath)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks, closers = append(sinks, s), append(closers, s)
		l.Infof("exporting cleaned table to sqlite %s", p.SQLitePath)
	}
	if p.PostgresDSN != "" {
		s, err := storage.NewPostgresSink(ctx, p.PostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks, closers = append(sinks, s), append(closers, s)
		l.Infof("exporting cleaned table to postgres")
	}
	return sinks, closeAll, nil
}

// collector keeps the exported rows for the summary.
type collector struct {
	rows []models.CleanedServiceRecord
}

func (c *collector) Write(_ context.Context, rows []models.CleanedServiceRecord) error {
	c.rows = rows
	return nil
}

// Run executes the three stages in order and stops at the first failing one.
func Run(ctx context.Context, cfg config.Config, out io.Writer, l *logger.Logger) error {
	stages := []struct {
		name string
		fn   func() error
	}{
		{"crawl", func() error { _, err := Crawl(ctx, cfg, l); return err }},
		{"scrape", func() error { _, err := Scrape(ctx, cfg, l); return err }},
		{"transform", func() error { _, err := Transform(ctx, cfg, out, l); return err }},
	}
	for _, st := range stages {
		l.Infof(">>>>>> %s stage started <<<<<<", st.name)
		if err := st.fn(); err != nil {
			return eris.Wrapf(err, "%s stage", st.name)
		}
		l.Infof(">>>>>> %s stage completed <<<<<<", st.name)
	}
	return nil
}
