package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"servicedir-etl/internal/models"
)

// Sink is an extra destination for the cleaned table. Every Write replaces
// whatever an earlier run stored.
type Sink interface {
	Write(ctx context.Context, rows []models.CleanedServiceRecord) error
	Close() error
}

const table = "cleaned_services"

const batchSize = 50

var columns = []string{
	"id", "service_name", "address", "latitude", "longitude",
	"state", "postcode", "services_offered", "details_url", "scrape_ts",
}

// dialect covers the differences between the supported SQL backends.
type dialect struct {
	placeholder func(n int) string
	schema      string
}

type sqlSink struct {
	db      *sql.DB
	dialect dialect
}

func (s *sqlSink) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.schema)
	return err
}

func (s *sqlSink) Write(ctx context.Context, rows []models.CleanedServiceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "storage: begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return eris.Wrap(err, "storage: clear")
	}
	for i := 0; i < len(rows); i += batchSize {
		end := i + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		query, args := s.insertBatch(rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return eris.Wrapf(err, "storage: insert batch at %d", i)
		}
	}
	return tx.Commit()
}

func (s *sqlSink) insertBatch(batch []models.CleanedServiceRecord) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(columns))

	for idx, r := range batch {
		base := idx * len(columns)
		ph := make([]string, len(columns))
		for j := range columns {
			ph[j] = s.dialect.placeholder(base + j + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			r.ID, r.ServiceName, r.Address, nullFloat(r.Latitude), nullFloat(r.Longitude),
			nullString(r.State), nullString(r.Postcode), nullString(r.ServicesOffered), r.DetailsURL, nullTime(r),
		)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ", "), strings.Join(valueStrings, ","))
	return query, valueArgs
}

func (s *sqlSink) Close() error { return s.db.Close() }

// Count reports how many rows the sink currently holds.
func (s *sqlSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(r models.CleanedServiceRecord) sql.NullTime {
	if r.ScrapeTS == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *r.ScrapeTS, Valid: true}
}
