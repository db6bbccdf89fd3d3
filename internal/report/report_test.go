
package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"servicedir-etl/internal/models"
	"servicedir-etl/internal/transform"
)

func rows(categories ...string) []models.CleanedServiceRecord {
	out := make([]models.CleanedServiceRecord, 0, len(categories))
	for _, c := range categories {
		out = append(out, models.CleanedServiceRecord{ServicesOffered: c})
	}
	return out
}

func TestTopCategories(t *testing.T) {
	in := rows("Recycling", "Disability", "Recycling", "Aged Care", "Disability", "Recycling", "")
	top := TopCategories(in, 2)
	if len(top) != 2 {
		t.Fatalf("want 2 categories, got %#v", top)
	}
	if top[0] != (Category{"Recycling", 3}) || top[1] != (Category{"Disability", 2}) {
		t.Fatalf("unexpected ranking: %#v", top)
	}
}

func TestTopCategoriesTiesByName(t *testing.T) {
	top := TopCategories(rows("b", "a", "c"), 10)
	if len(top) != 3 || top[0].Name != "a" || top[2].Name != "c" {
		t.Fatalf("unexpected ranking: %#v", top)
	}
	if got := TopCategories(nil, 5); len(got) != 0 {
		t.Fatalf("want empty ranking, got %#v", got)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	sum := transform.Summary{RawRows: 10, Duplicates: 2, Records: 8, CleanedRows: 12, Elapsed: 1500 * time.Millisecond}
	RenderSummary(&buf, sum, []Category{{"Recycling", 7}})

	out := buf.String()
	for _, want := range []string{"Transform summary", "duplicates dropped", "1.5s", "Top 1 categories", "Recycling"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
