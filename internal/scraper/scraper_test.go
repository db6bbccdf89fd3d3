package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"servicedir-etl/internal/crawler"
	"servicedir-etl/internal/models"
	"servicedir-etl/internal/parser"
	"servicedir-etl/pkg/logger"
)

type recordCollector struct {
	records []models.RawServiceRecord
}

func (c *recordCollector) AppendRecord(r models.RawServiceRecord) error {
	c.records = append(c.records, r)
	return nil
}

const fullDetail = `<html><body><div class="location-box">
<h1>Dandenong Depot</h1>
<div class="info-block"><div class="info-block__title">Address</div>
<div class="info-block__desc"><p><a href="https://maps.google.com/?q=-37.98,145.21">12 Smith St, Dandenong VIC 3175</a></p></div></div>
<div class="info-block"><div class="info-block__title">Services offered</div>
<div class="info-block__desc"><p>Waste Collection, Recycling</p></div></div>
</div></body></html>`

const bareDetail = `<html><body><div class="location-box"><p>Under construction</p></div></body></html>`

func detailServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch {
		case strings.HasPrefix(r.URL.Path, "/full"):
			fmt.Fprint(w, fullDetail)
		case strings.HasPrefix(r.URL.Path, "/bare"):
			fmt.Fprint(w, bareDetail)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newScraper(sink RecordSink, opts Options) *Scraper {
	s := New(crawler.NewHTTPClient(5*time.Second, 2*time.Second, 1<<20), parser.New(), sink, opts, logger.Nop())
	s.now = func() time.Time { return time.Date(2024, 3, 1, 10, 30, 15, 500, time.FixedZone("AEST", 10*3600)) }
	return s
}

func TestScrapeOne(t *testing.T) {
	ts := detailServer(t)
	s := newScraper(&recordCollector{}, Options{})

	rec, err := s.ScrapeOne(context.Background(), models.LinkRecord{ServiceURL: ts.URL + "/full", ServiceName: "card", ServiceAddress: "card address"})
	require.NoError(t, err)
	require.Equal(t, models.RawServiceRecord{
		ServiceName:     "Dandenong Depot",
		Address:         "12 Smith St, Dandenong VIC 3175",
		Latitude:        "-37.98",
		Longitude:       "145.21",
		ServicesOffered: "Waste Collection, Recycling",
		DetailsURL:      ts.URL + "/full",
		ScrapeTS:        "2024-03-01 00:30:15",
	}, rec)
}

func TestScrapeOneFallsBackToHints(t *testing.T) {
	ts := detailServer(t)
	s := newScraper(&recordCollector{}, Options{})

	rec, err := s.ScrapeOne(context.Background(), models.LinkRecord{ServiceURL: ts.URL + "/bare", ServiceName: "Card Name", ServiceAddress: "1 Card St, Perth WA 6000"})
	require.NoError(t, err)
	require.Equal(t, "Card Name", rec.ServiceName)
	require.Equal(t, "1 Card St, Perth WA 6000", rec.Address)
	require.Empty(t, rec.Latitude)
	require.Empty(t, rec.Longitude)
	require.Empty(t, rec.ServicesOffered)
}

func TestRunSequentialAppendsEachRecord(t *testing.T) {
	ts := detailServer(t)
	sink := &recordCollector{}
	s := newScraper(sink, Options{FailFast: true})

	links := []models.LinkRecord{{ServiceURL: ts.URL + "/full"}, {ServiceURL: ts.URL + "/bare", ServiceName: "B"}}
	rep, err := s.Run(context.Background(), links)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Scraped)
	require.NoError(t, rep.Err())
	require.Len(t, sink.records, 2)
	require.Equal(t, "B", sink.records[1].ServiceName)
}

func TestRunFailFastStopsAtFirstError(t *testing.T) {
	ts := detailServer(t)
	sink := &recordCollector{}
	s := newScraper(sink, Options{FailFast: true})

	links := []models.LinkRecord{{ServiceURL: ts.URL + "/full"}, {ServiceURL: ts.URL + "/missing"}, {ServiceURL: ts.URL + "/bare"}}
	rep, err := s.Run(context.Background(), links)
	require.Error(t, err)
	require.Equal(t, 1, rep.Scraped)
	require.Len(t, sink.records, 1)
}

func TestRunKeepGoingCollectsFailures(t *testing.T) {
	ts := detailServer(t)
	sink := &recordCollector{}
	s := newScraper(sink, Options{FailFast: false})

	links := []models.LinkRecord{{ServiceURL: ts.URL + "/full"}, {ServiceURL: ts.URL + "/missing"}, {ServiceURL: ts.URL + "/bare"}}
	rep, err := s.Run(context.Background(), links)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Scraped)
	require.Len(t, rep.Failures, 1)
	require.Equal(t, ts.URL+"/missing", rep.Failures[0].URL)
	require.Error(t, rep.Err())
	require.Len(t, sink.records, 2)
}

func TestRunParallel(t *testing.T) {
	ts := detailServer(t)
	sink := &recordCollector{}
	s := newScraper(sink, Options{Concurrency: 4, FailFast: false})

	var links []models.LinkRecord
	for i := 0; i < 20; i++ {
		links = append(links, models.LinkRecord{ServiceURL: fmt.Sprintf("%s/full/%d", ts.URL, i)})
	}
	links = append(links, models.LinkRecord{ServiceURL: ts.URL + "/missing"})

	rep, err := s.Run(context.Background(), links)
	require.NoError(t, err)
	require.Equal(t, 20, rep.Scraped)
	require.Len(t, rep.Failures, 1)
	require.Len(t, sink.records, 20)

	urls := make([]string, 0, len(sink.records))
	for _, r := range sink.records {
		urls = append(urls, r.DetailsURL)
	}
	sort.Strings(urls)
	for i := 1; i < len(urls); i++ {
		require.NotEqual(t, urls[i-1], urls[i])
	}
}

func TestRunParallelFailFast(t *testing.T) {
	ts := detailServer(t)
	s := newScraper(&recordCollector{}, Options{Concurrency: 2, FailFast: true})

	links := []models.LinkRecord{{ServiceURL: ts.URL + "/missing"}, {ServiceURL: ts.URL + "/full"}}
	_, err := s.Run(context.Background(), links)
	require.Error(t, err)
}
