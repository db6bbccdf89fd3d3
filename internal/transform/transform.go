package transform

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"servicedir-etl/internal/geocode"
	"servicedir-etl/internal/ioformats"
	"servicedir-etl/internal/models"
	"servicedir-etl/pkg/logger"
)

var ErrTimestamp = errors.New("unparsable scrape timestamp")

// longitudeFloor is the smallest valid longitude for the covered region;
// smaller values lost their leading digit upstream.
const longitudeFloor = 100

var timestampLayouts = []string{
	models.TimestampLayout,
	time.RFC3339,
	"02-Jan-2006 15:04:05",
}

// Sink receives the full cleaned table after it has been written to disk.
type Sink interface {
	Write(ctx context.Context, rows []models.CleanedServiceRecord) error
}

type Summary struct {
	RawRows               int
	Duplicates            int
	CoordinatesBackfilled int
	PostcodesBackfilled   int
	GeocodeMisses         int
	GeocodeErrors         int
	Records               int
	CleanedRows           int
	Elapsed               time.Duration
}

type Transformer struct {
	geo geocode.Geocoder
	log *logger.Logger
}

func New(geo geocode.Geocoder, l *logger.Logger) *Transformer {
	return &Transformer{geo: geo, log: l}
}

type record struct {
	models.RawServiceRecord
	ID       string
	State    string
	Postcode string
}

// Transform cleans the raw table. The input is not modified.
func (t *Transformer) Transform(ctx context.Context, raw []models.RawServiceRecord) ([]models.CleanedServiceRecord, Summary, error) {
	sum := Summary{RawRows: len(raw)}

	recs := dedupe(raw)
	sum.Duplicates = len(raw) - len(recs)

	for i := range recs {
		if err := t.backfillCoordinates(ctx, &recs[i], &sum); err != nil {
			return nil, sum, err
		}
	}

	for i := range recs {
		recs[i].State = ExtractState(recs[i].Address)
		recs[i].Postcode = ExtractPostcode(recs[i].Address)
	}

	for i := range recs {
		if err := t.backfillPostcode(ctx, &recs[i], &sum); err != nil {
			return nil, sum, err
		}
	}

	for i := range recs {
		recs[i].ID = models.FormatID(i)
	}
	sum.Records = len(recs)

	out := make([]models.CleanedServiceRecord, 0, len(recs))
	for _, r := range recs {
		for _, category := range explode(r.ServicesOffered) {
			row, err := coerce(r, category)
			if err != nil {
				return nil, sum, err
			}
			if row.Longitude != nil && *row.Longitude < longitudeFloor {
				*row.Longitude += longitudeFloor
			}
			out = append(out, row)
		}
	}
	sum.CleanedRows = len(out)
	return out, sum, nil
}

// Run reads the raw table, transforms it and rewrites the cleaned table from
// scratch, then hands the result to every sink.
func (t *Transformer) Run(ctx context.Context, rawPath, cleanedPath string, sinks ...Sink) (Summary, error) {
	start := time.Now()
	raw, err := ioformats.ReadRaw(rawPath)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "read raw table %s", rawPath)
	}
	t.log.Infof("loaded %d raw rows from %s", len(raw), rawPath)

	rows, sum, err := t.Transform(ctx, raw)
	if err != nil {
		return sum, err
	}
	if err := ioformats.WriteCleaned(cleanedPath, rows); err != nil {
		return sum, eris.Wrapf(err, "write cleaned table %s", cleanedPath)
	}
	for _, s := range sinks {
		if err := s.Write(ctx, rows); err != nil {
			return sum, eris.Wrap(err, "export cleaned table")
		}
	}
	sum.Elapsed = time.Since(start)
	t.log.Infof("wrote %d cleaned rows (%d records) to %s", sum.CleanedRows, sum.Records, cleanedPath)
	return sum, nil
}

// dedupe keeps the first of every group of rows that differ only in their
// scrape timestamp, preserving order.
func dedupe(raw []models.RawServiceRecord) []record {
	seen := make(map[[6]string]struct{}, len(raw))
	out := make([]record, 0, len(raw))
	for _, r := range raw {
		k := r.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, record{RawServiceRecord: r})
	}
	return out
}

func (t *Transformer) lookup(ctx context.Context, address string, sum *Summary) (geocode.Result, error) {
	res := t.geo.Search(ctx, address)
	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "geocoding interrupted")
	}
	switch res.Status {
	case geocode.StatusNotFound:
		sum.GeocodeMisses++
		t.log.Warnf("geocode: no match for %q", address)
	case geocode.StatusServiceError:
		sum.GeocodeErrors++
		t.log.Warnf("geocode: lookup for %q failed: %v", address, res.Err)
	}
	return res, nil
}

// backfillCoordinates fills both coordinates or neither, and never touches a
// record that already has both.
func (t *Transformer) backfillCoordinates(ctx context.Context, r *record, sum *Summary) error {
	if r.Latitude != "" && r.Longitude != "" {
		return nil
	}
	res, err := t.lookup(ctx, r.Address, sum)
	if err != nil {
		return err
	}
	if res.Status != geocode.StatusFound {
		return nil
	}
	lat, lon, ok := res.Coordinates()
	if !ok {
		sum.GeocodeMisses++
		return nil
	}
	r.Latitude, r.Longitude = lat, lon
	sum.CoordinatesBackfilled++
	return nil
}

func (t *Transformer) backfillPostcode(ctx context.Context, r *record, sum *Summary) error {
	if r.Postcode != "" {
		return nil
	}
	res, err := t.lookup(ctx, r.Address, sum)
	if err != nil {
		return err
	}
	if res.Status != geocode.StatusFound {
		return nil
	}
	pc, ok := res.Postcode()
	if !ok {
		sum.GeocodeMisses++
		return nil
	}
	r.Postcode = pc
	sum.PostcodesBackfilled++
	return nil
}

// explode splits a comma list into trimmed categories. A missing list still
// yields one (empty) category so the record is kept.
func explode(services string) []string {
	if services == "" {
		return []string{""}
	}
	parts := strings.Split(services, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func coerce(r record, category string) (models.CleanedServiceRecord, error) {
	row := models.CleanedServiceRecord{
		ID:              r.ID,
		ServiceName:     r.ServiceName,
		Address:         r.Address,
		Latitude:        parseFloat(r.Latitude),
		Longitude:       parseFloat(r.Longitude),
		State:           r.State,
		Postcode:        r.Postcode,
		ServicesOffered: category,
		DetailsURL:      r.DetailsURL,
	}
	if r.ScrapeTS != "" {
		ts, err := parseTimestamp(r.ScrapeTS)
		if err != nil {
			return row, eris.Wrapf(err, "record %s", r.ID)
		}
		row.ScrapeTS = &ts
	}
	return row, nil
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, eris.Wrapf(ErrTimestamp, "%q", s)
}
