
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"servicedir-etl/internal/models"
	"servicedir-etl/internal/transform"
)

// Category is one services_offered value and the number of cleaned rows
// carrying it.
type Category struct {
	Name  string
	Count int
}

// TopCategories returns the n most frequent categories, ties broken by name.
// Rows without a category are not counted.
func TopCategories(rows []models.CleanedServiceRecord, n int) []Category {
	freq := map[string]int{}
	for _, r := range rows {
		c := strings.TrimSpace(r.ServicesOffered)
		if c == "" {
			continue
		}
		freq[c]++
	}

	list := make([]Category, 0, len(freq))
	for k, v := range freq {
		list = append(list, Category{Name: k, Count: v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Count == list[j].Count {
			return list[i].Name < list[j].Name
		}
		return list[i].Count > list[j].Count
	})
	if n < 0 {
		n = 0
	}
	if n > len(list) {
		n = len(list)
	}
	return list[:n]
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// RenderSummary prints the transform counters followed by the category
// ranking, if any.
func RenderSummary(w io.Writer, sum transform.Summary, top []Category) {
	t := newTable(w)
	t.SetTitle("Transform summary")
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"raw rows", sum.RawRows},
		{"duplicates dropped", sum.Duplicates},
		{"coordinates backfilled", sum.CoordinatesBackfilled},
		{"postcodes backfilled", sum.PostcodesBackfilled},
		{"geocode misses", sum.GeocodeMisses},
		{"geocode errors", sum.GeocodeErrors},
		{"records", sum.Records},
		{"cleaned rows", sum.CleanedRows},
		{"elapsed", sum.Elapsed.Round(time.Millisecond).String()},
	})
	t.Render()

	if len(top) == 0 {
		return
	}
	ct := newTable(w)
	ct.SetTitle(fmt.Sprintf("Top %d categories", len(top)))
	ct.AppendHeader(table.Row{"#", "Category", "Rows"})
	for i, c := range top {
		ct.AppendRow(table.Row{i + 1, c.Name, c.Count})
	}
	ct.Render()
}
