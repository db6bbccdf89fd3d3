package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"servicedir-etl/internal/models"
)

func ptr(f float64) *float64 { return &f }

func sampleRows(n int) []models.CleanedServiceRecord {
	ts := time.Date(2024, 3, 1, 0, 30, 15, 0, time.UTC)
	rows := make([]models.CleanedServiceRecord, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, models.CleanedServiceRecord{
			ID:              models.FormatID(i),
			ServiceName:     "Depot",
			Address:         "1 A St, Dandenong VIC 3175",
			Latitude:        ptr(-37.98),
			Longitude:       ptr(145.21),
			State:           "VIC",
			Postcode:        "3175",
			ServicesOffered: "Recycling",
			DetailsURL:      "https://example.test/d",
			ScrapeTS:        &ts,
		})
	}
	return rows
}

func TestSQLiteSinkReplacesContents(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteSink(ctx, filepath.Join(t.TempDir(), "db", "services.db"))
	require.NoError(t, err)
	defer s.Close()

	// more than one insert batch
	require.NoError(t, s.Write(ctx, sampleRows(120)))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 120, n)

	require.NoError(t, s.Write(ctx, sampleRows(3)))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestSQLiteSinkStoresNulls(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteSink(ctx, filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	defer s.Close()

	row := models.CleanedServiceRecord{ID: "SVC1000", ServiceName: "Bare", Address: "Somewhere", DetailsURL: "u"}
	require.NoError(t, s.Write(ctx, []models.CleanedServiceRecord{row}))

	var (
		lat      sql.NullFloat64
		state    sql.NullString
		services sql.NullString
	)
	err = s.db.QueryRowContext(ctx, "SELECT latitude, state, services_offered FROM cleaned_services WHERE id = ?", "SVC1000").
		Scan(&lat, &state, &services)
	require.NoError(t, err)
	require.False(t, lat.Valid)
	require.False(t, state.Valid)
	require.False(t, services.Valid)
}

func TestPostgresPlaceholders(t *testing.T) {
	s := &sqlSink{dialect: postgresDialect()}
	query, args := s.insertBatch(sampleRows(2))
	require.Len(t, args, 2*len(columns))
	require.True(t, strings.HasSuffix(query, "($11,$12,$13,$14,$15,$16,$17,$18,$19,$20)"), query)
}
