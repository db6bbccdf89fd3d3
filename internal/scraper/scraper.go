package scraper

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"servicedir-etl/internal/crawler"
	"servicedir-etl/internal/models"
	"servicedir-etl/internal/parser"
	"servicedir-etl/pkg/logger"
)

// RecordSink persists one scraped record. It is only ever called from a
// single goroutine.
type RecordSink interface {
	AppendRecord(models.RawServiceRecord) error
}

type Options struct {
	Delay crawler.Delay
	// Concurrency above 1 fans detail fetches out over that many workers.
	Concurrency int
	// FailFast stops the run at the first record that cannot be scraped.
	// Otherwise failures are collected in the Report and the run continues.
	FailFast bool
}

type Scraper struct {
	fetcher crawler.Fetcher
	parser  *parser.Parser
	sink    RecordSink
	opts    Options
	log     *logger.Logger
	now     func() time.Time
}

func New(f crawler.Fetcher, p *parser.Parser, sink RecordSink, opts Options, l *logger.Logger) *Scraper {
	return &Scraper{fetcher: f, parser: p, sink: sink, opts: opts, log: l, now: time.Now}
}

type Failure struct {
	URL string
	Err error
}

type Report struct {
	Scraped  int
	Failures []Failure
	Elapsed  time.Duration
}

// Err summarises collected failures, or returns nil when there were none.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return eris.Errorf("%d of %d services failed, first: %s: %v",
		len(r.Failures), r.Scraped+len(r.Failures), r.Failures[0].URL, r.Failures[0].Err)
}

// ScrapeOne fetches a detail page and builds its raw record, falling back to
// the listing card's name and address when the page lacks them.
func (s *Scraper) ScrapeOne(ctx context.Context, link models.LinkRecord) (models.RawServiceRecord, error) {
	body, _, ct, _, err := s.fetcher.Fetch(ctx, link.ServiceURL)
	if err != nil {
		return models.RawServiceRecord{}, eris.Wrapf(err, "fetch %s", link.ServiceURL)
	}
	defer body.Close()

	d, err := s.parser.ExtractDetail(body, ct)
	if err != nil {
		return models.RawServiceRecord{}, eris.Wrapf(err, "parse %s", link.ServiceURL)
	}
	if d.Latitude.Missing == parser.ReasonMalformed {
		s.log.Warnf("%s: map link %q has no coordinates", link.ServiceURL, d.AddressHref.Value)
	}

	return models.RawServiceRecord{
		ServiceName:     d.Name.Or(link.ServiceName),
		Address:         d.Address.Or(link.ServiceAddress),
		Latitude:        d.Latitude.Or(""),
		Longitude:       d.Longitude.Or(""),
		ServicesOffered: d.Services.Or(""),
		DetailsURL:      link.ServiceURL,
		ScrapeTS:        s.now().UTC().Format(models.TimestampLayout),
	}, nil
}

// Run scrapes every link, appending each record to the sink as soon as it
// is scraped.
func (s *Scraper) Run(ctx context.Context, links []models.LinkRecord) (Report, error) {
	start := time.Now()
	var (
		rep Report
		err error
	)
	if s.opts.Concurrency > 1 {
		rep, err = s.runParallel(ctx, links)
	} else {
		rep, err = s.runSequential(ctx, links)
	}
	rep.Elapsed = time.Since(start)
	s.log.Infof("scraped %d services (%d failed) in %s", rep.Scraped, len(rep.Failures), rep.Elapsed.Round(time.Millisecond))
	return rep, err
}

func (s *Scraper) runSequential(ctx context.Context, links []models.LinkRecord) (Report, error) {
	var rep Report
	for i, link := range links {
		rec, err := s.ScrapeOne(ctx, link)
		if err != nil {
			s.log.Errorf("service %d: %v", i+1, err)
			if s.opts.FailFast {
				return rep, err
			}
			rep.Failures = append(rep.Failures, Failure{URL: link.ServiceURL, Err: err})
		} else {
			if err := s.sink.AppendRecord(rec); err != nil {
				return rep, eris.Wrap(err, "write record")
			}
			rep.Scraped++
			s.log.Infof("%d services detail scraped", rep.Scraped)
		}
		if err := s.opts.Delay.Sleep(ctx); err != nil {
			return rep, eris.Wrap(err, "scrape interrupted")
		}
	}
	return rep, nil
}

// runParallel hands rows from the workers to one writer goroutine so the
// sink never sees concurrent appends.
func (s *Scraper) runParallel(ctx context.Context, links []models.LinkRecord) (Report, error) {
	var (
		rep Report
		mu  sync.Mutex
	)
	rows := make(chan models.RawServiceRecord)
	writeErr := make(chan error, 1)
	go func() {
		var err error
		for rec := range rows {
			if err != nil {
				continue
			}
			if err = s.sink.AppendRecord(rec); err != nil {
				continue
			}
			mu.Lock()
			rep.Scraped++
			mu.Unlock()
		}
		writeErr <- err
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, link := range links {
		link := link
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rec, err := s.ScrapeOne(gctx, link)
			if err != nil {
				s.log.Errorf("%v", err)
				if s.opts.FailFast {
					return err
				}
				mu.Lock()
				rep.Failures = append(rep.Failures, Failure{URL: link.ServiceURL, Err: err})
				mu.Unlock()
			} else {
				select {
				case rows <- rec:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return s.opts.Delay.Sleep(gctx)
		})
	}
	err := g.Wait()
	close(rows)
	if werr := <-writeErr; werr != nil && err == nil {
		err = eris.Wrap(werr, "write record")
	}
	if err != nil {
		return rep, err
	}
	if ctx.Err() != nil {
		return rep, eris.Wrap(ctx.Err(), "scrape interrupted")
	}
	return rep, nil
}
