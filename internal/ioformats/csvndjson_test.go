
package ioformats

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"servicedir-etl/internal/models"
)

func TestAppendWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "links.csv")
	tbl := NewLinkTable(path)

	require.NoError(t, tbl.AppendLink(models.LinkRecord{PageNumber: 1, PageURL: "https://x/", ServiceURL: "https://x/a", ServiceName: "A", ServiceAddress: "1 A St, Perth WA 6000"}))
	require.NoError(t, tbl.AppendLink(models.LinkRecord{PageNumber: 2, PageURL: "https://x/?pg=2", ServiceURL: "https://x/b", ServiceName: "B"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "page_number,page_url,service_url,service_name,service_address", lines[0])

	links, err := ReadLinks(path)
	require.NoError(t, err)
	require.Len(t, links, 2)
	require.Equal(t, "1 A St, Perth WA 6000", links[0].ServiceAddress)
	require.Equal(t, 2, links[1].PageNumber)
}

func TestTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, Truncate(path))

	tbl := NewRawTable(path)
	require.NoError(t, tbl.AppendRecord(models.RawServiceRecord{ServiceName: "A", ScrapeTS: "2024-01-01 00:00:00"}))
	require.NoError(t, Truncate(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())

	// a truncated table gets its header back on the next append
	require.NoError(t, tbl.AppendRecord(models.RawServiceRecord{ServiceName: "B", ScrapeTS: "2024-01-01 00:00:00"}))
	raw, err := ReadRaw(path)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	require.Equal(t, "B", raw[0].ServiceName)
}

func TestReadRawRequiresHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	require.NoError(t, os.WriteFile(path, []byte("service_name,address\nA,B\n"), 0o644))
	_, err := ReadRaw(path)
	require.Error(t, err)
}

func TestWriteCleanedOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cleaned.csv")
	lat, lon := -37.81, 144.96
	rows := []models.CleanedServiceRecord{
		{ID: "SVC1000", ServiceName: "A", Address: "1 A St, Dandenong VIC 3175", Latitude: &lat, Longitude: &lon, State: "VIC", Postcode: "3175", ServicesOffered: "Recycling"},
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale\nstale\nstale\n"), 0o644))
	require.NoError(t, WriteCleaned(path, rows))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"id,service_name,address,latitude,longitude,state,postcode,services_offered,details_url,scrape_ts\n"+
			"SVC1000,A,\"1 A St, Dandenong VIC 3175\",-37.81,144.96,VIC,3175,Recycling,,\n",
		string(data))
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, []models.LinkRecord{{ServiceURL: "a"}, {ServiceURL: "b"}}))
	require.Equal(t, 2, strings.Count(buf.String(), "\n"))
}

func TestNDJSONFileReplacesContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "cleaned.ndjson")
	sink := NDJSONFile{Path: path}
	rows := []models.CleanedServiceRecord{{ID: "SVC1000"}, {ID: "SVC1001"}}
	require.NoError(t, sink.Write(context.Background(), rows))
	require.NoError(t, sink.Write(context.Background(), rows[:1]))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(b), "\n"))
	require.Contains(t, string(b), `"id":"SVC1000"`)
	require.Contains(t, string(b), `"latitude":null`)
}
