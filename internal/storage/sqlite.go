package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cleaned_services (
	id               TEXT NOT NULL,
	service_name     TEXT NOT NULL,
	address          TEXT NOT NULL,
	latitude         REAL,
	longitude        REAL,
	state            TEXT,
	postcode         TEXT,
	services_offered TEXT,
	details_url      TEXT NOT NULL,
	scrape_ts        DATETIME
);
CREATE INDEX IF NOT EXISTS idx_cleaned_services_id    ON cleaned_services(id);
CREATE INDEX IF NOT EXISTS idx_cleaned_services_state ON cleaned_services(state);
`

type SQLiteSink struct{ sqlSink }

// NewSQLiteSink opens (creating if needed) the database file at path.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create dir")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{sqlSink{db: db, dialect: dialect{
		placeholder: func(int) string { return "?" },
		schema:      sqliteSchema,
	}}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return s, nil
}
