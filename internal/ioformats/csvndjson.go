
package ioformats

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"servicedir-etl/internal/models"
)

// Appender adds one row at a time to a CSV file, writing the header first
// when the file is empty. The file is opened and closed on every call.
type Appender struct {
	Path   string
	Header []string

	mu sync.Mutex
}

func (a *Appender) Append(row []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ensureDir(a.Path); err != nil {
		return err
	}
	f, err := os.OpenFile(a.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("csv: open %q: %w", a.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(a.Header); err != nil {
			return fmt.Errorf("csv: write header: %w", err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// LinkTable is the append-only link table written by the crawler.
type LinkTable struct{ Appender }

func NewLinkTable(path string) *LinkTable {
	return &LinkTable{Appender{Path: path, Header: models.LinkHeader}}
}

func (t *LinkTable) AppendLink(l models.LinkRecord) error { return t.Append(l.Row()) }

// RawTable is the append-only raw record table written by the scraper.
type RawTable struct{ Appender }

func NewRawTable(path string) *RawTable {
	return &RawTable{Appender{Path: path, Header: models.RawHeader}}
}

func (t *RawTable) AppendRecord(r models.RawServiceRecord) error { return t.Append(r.Row()) }

// Truncate empties path if it exists.
func Truncate(path string) error {
	err := os.Truncate(path, 0)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}
	return nil
}

// table is a CSV file read fully into memory, with columns looked up by header name.
type table struct {
	cols map[string]int
	rows [][]string
}

func readTable(path string, required []string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %q is empty", path)
	}
	t := &table{cols: map[string]int{}, rows: rows[1:]}
	for i, h := range rows[0] {
		t.cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, h := range required {
		if _, ok := t.cols[h]; !ok {
			return nil, fmt.Errorf("csv: %q must contain a %q header column", path, h)
		}
	}
	return t, nil
}

func (t *table) get(row []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func ReadLinks(path string) ([]models.LinkRecord, error) {
	t, err := readTable(path, []string{"service_url", "service_name", "service_address"})
	if err != nil {
		return nil, err
	}
	out := make([]models.LinkRecord, 0, len(t.rows))
	for i, row := range t.rows {
		l := models.LinkRecord{
			PageURL:        t.get(row, "page_url"),
			ServiceURL:     t.get(row, "service_url"),
			ServiceName:    t.get(row, "service_name"),
			ServiceAddress: t.get(row, "service_address"),
		}
		if n := t.get(row, "page_number"); n != "" {
			l.PageNumber, err = strconv.Atoi(n)
			if err != nil {
				return nil, fmt.Errorf("csv: %q row %d: page_number: %w", path, i+2, err)
			}
		}
		if l.ServiceURL == "" {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func ReadRaw(path string) ([]models.RawServiceRecord, error) {
	t, err := readTable(path, models.RawHeader)
	if err != nil {
		return nil, err
	}
	out := make([]models.RawServiceRecord, 0, len(t.rows))
	for _, row := range t.rows {
		out = append(out, models.RawServiceRecord{
			ServiceName:     t.get(row, "service_name"),
			Address:         t.get(row, "address"),
			Latitude:        t.get(row, "latitude"),
			Longitude:       t.get(row, "longitude"),
			ServicesOffered: t.get(row, "services_offered"),
			DetailsURL:      t.get(row, "details_url"),
			ScrapeTS:        t.get(row, "scrape_ts"),
		})
	}
	return out, nil
}

// WriteCleaned replaces the file at path with the cleaned table.
func WriteCleaned(path string, rows []models.CleanedServiceRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(models.CleanedHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write(r.Row()); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// WriteNDJSON writes any JSON-marshalable items as NDJSON to w.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if err := enc.Encode(it); err != nil {
			return err
		}
	}
	return nil
}

// NDJSONFile exports the cleaned table as one JSON object per line,
// replacing the file on every Write.
type NDJSONFile struct{ Path string }

func (n NDJSONFile) Write(_ context.Context, rows []models.CleanedServiceRecord) error {
	if err := ensureDir(n.Path); err != nil {
		return err
	}
	f, err := os.Create(n.Path)
	if err != nil {
		return fmt.Errorf("ndjson: create file %q: %w", n.Path, err)
	}
	defer f.Close()
	if err := WriteNDJSON(f, rows); err != nil {
		return fmt.Errorf("ndjson: encode: %w", err)
	}
	return f.Close()
}
