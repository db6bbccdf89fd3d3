
package crawler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"servicedir-etl/internal/models"
	"servicedir-etl/internal/parser"
	"servicedir-etl/pkg/logger"
)

var ErrCycle = errors.New("pagination revisits a page")

// LinkSink persists discovered links as they are found.
type LinkSink interface {
	AppendLink(models.LinkRecord) error
}

type Crawler struct {
	fetcher Fetcher
	parser  *parser.Parser
	sink    LinkSink
	rootURL string
	delay   Delay
	log     *logger.Logger
}

type Options struct {
	// RootURL is what relative "next page" links are joined against.
	RootURL string
	Delay   Delay
}

func New(f Fetcher, p *parser.Parser, sink LinkSink, opts Options, l *logger.Logger) *Crawler {
	return &Crawler{
		fetcher: f,
		parser:  p,
		sink:    sink,
		rootURL: opts.RootURL,
		delay:   opts.Delay,
		log:     l,
	}
}

type Stats struct {
	Pages   int
	Links   int
	Elapsed time.Duration
}

// Crawl walks the listing pages starting at startURL, following the "next
// page" link until a page has none. Every card is handed to the sink before
// the next page is requested. Any failure ends the crawl.
func (c *Crawler) Crawl(ctx context.Context, startURL string) (Stats, error) {
	start := time.Now()
	var stats Stats

	root := c.rootURL
	if root == "" {
		root = startURL
	}
	base, err := url.Parse(root)
	if err != nil {
		return stats, eris.Wrapf(err, "root url %q", root)
	}

	visited := map[string]struct{}{}
	pageURL := startURL
	for page := 1; ; page++ {
		if _, seen := visited[pageURL]; seen {
			return stats, eris.Wrapf(ErrCycle, "page %d: %s", page, pageURL)
		}
		visited[pageURL] = struct{}{}

		listing, err := c.fetchListing(ctx, pageURL)
		if err != nil {
			return stats, eris.Wrapf(err, "page %d: %s", page, pageURL)
		}
		c.log.Infof("page %d: %d services listed", page, len(listing.Cards))

		for _, card := range listing.Cards {
			rec := models.LinkRecord{
				PageNumber:     page,
				PageURL:        pageURL,
				ServiceURL:     card.URL,
				ServiceName:    card.Name,
				ServiceAddress: card.Address,
			}
			if err := c.sink.AppendLink(rec); err != nil {
				return stats, eris.Wrapf(err, "page %d: write link", page)
			}
			stats.Links++
		}
		stats.Pages++

		if !listing.HasNext() {
			break
		}
		ref, err := url.Parse(listing.NextHref)
		if err != nil {
			return stats, eris.Wrapf(err, "page %d: next link %q", page, listing.NextHref)
		}
		if err := c.delay.Sleep(ctx); err != nil {
			return stats, eris.Wrap(err, "crawl interrupted")
		}
		pageURL = base.ResolveReference(ref).String()
	}

	stats.Elapsed = time.Since(start)
	c.log.Infof("crawl finished: %d pages, %d links in %s", stats.Pages, stats.Links, stats.Elapsed.Round(time.Millisecond))
	return stats, nil
}

func (c *Crawler) fetchListing(ctx context.Context, pageURL string) (parser.Listing, error) {
	body, finalURL, ct, fetchDur, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return parser.Listing{}, err
	}
	defer body.Close()
	c.log.Debugf("fetched %s in %s", finalURL, fetchDur)

	return c.parser.ExtractListing(body, ct, finalURL)
}
