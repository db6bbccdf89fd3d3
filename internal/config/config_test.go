package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"servicedir-etl/internal/crawler"
)

const base = `{
	// listing pages
	crawler: {
		root_url: "https://www.example.test/locations/",
		min_delay_seconds: 0.25,
		max_delay_seconds: 0.5,
	},
	scraper: {
		concurrency: 2,
	},
	processor: {
		sqlite_path: "out/services.db",
	},
}`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.json5", base)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://www.example.test/locations/", cfg.Crawler.StartPage())
	require.Equal(t, 30*time.Second, cfg.Crawler.Timeout())
	require.Equal(t, crawlerDelay(250, 500), cfg.Crawler.Delay())
	require.Equal(t, 3*time.Second, cfg.Scraper.Delay().Max)
	require.True(t, cfg.Crawler.Clear())
	require.Equal(t, 2, cfg.Scraper.Concurrency)
	require.True(t, cfg.Scraper.StopOnFailure())
	require.Equal(t, "artifacts/data/raw/services_info.csv", cfg.Processor.ScrapedDataPath)
	require.Equal(t, 1.0, cfg.Processor.Geocoder.RatePerSecond)
	require.Equal(t, "out/services.db", cfg.Processor.SQLitePath)
}

func TestLoadMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.json5", base)
	write(t, dir, "config.local.json5", `{
		scraper: { concurrency: 8, fail_fast: false },
		processor: { processed_data_path: "elsewhere.csv" },
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Scraper.Concurrency)
	require.False(t, cfg.Scraper.StopOnFailure())
	require.Equal(t, "elsewhere.csv", cfg.Processor.ProcessedDataPath)
	// untouched keys survive the merge
	require.Equal(t, "https://www.example.test/locations/", cfg.Crawler.RootURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.json5", base)
	t.Setenv("SERVICEDIR_POSTGRES_DSN", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("SERVICEDIR_CONCURRENCY", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "postgres://u:p@localhost/db?sslmode=disable", cfg.Processor.PostgresDSN)
	require.Equal(t, 4, cfg.Scraper.Concurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "config.json5", `{ scraper: { concurrency: 1 } }`)
	_, err := Load(path)
	require.ErrorContains(t, err, "root_url")

	cfg := Defaults()
	cfg.Crawler.RootURL = "https://x.test/"
	cfg.Scraper.MinDelaySeconds = 5
	require.ErrorContains(t, cfg.Validate(), "min_delay_seconds")
}

func crawlerDelay(minMs, maxMs int) crawler.Delay {
	return crawler.Delay{Min: time.Duration(minMs) * time.Millisecond, Max: time.Duration(maxMs) * time.Millisecond}
}
