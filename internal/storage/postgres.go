package storage

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cleaned_services (
	id               VARCHAR(16)      NOT NULL,
	service_name     TEXT             NOT NULL,
	address          TEXT             NOT NULL,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	state            VARCHAR(3),
	postcode         VARCHAR(4),
	services_offered TEXT,
	details_url      TEXT             NOT NULL,
	scrape_ts        TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_cleaned_services_id    ON cleaned_services(id);
CREATE INDEX IF NOT EXISTS idx_cleaned_services_state ON cleaned_services(state);
`

type PostgresSink struct{ sqlSink }

func postgresDialect() dialect {
	return dialect{
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		schema:      postgresSchema,
	}
}

// NewPostgresSink connects with dsn, waiting briefly for the server to come
// up, and makes sure the table exists.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: ping failed after retries")
	}

	s := &PostgresSink{sqlSink{db: db, dialect: postgresDialect()}}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "postgres: migrate")
	}
	return s, nil
}
