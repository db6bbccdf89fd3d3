package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/titanous/json5"

	"servicedir-etl/internal/crawler"
)

const envPrefix = "SERVICEDIR_"

// Config mirrors config.json5. Booleans are pointers so that an explicit
// false survives merging with defaults.
type Config struct {
	Crawler   Crawler   `json:"crawler"`
	Scraper   Scraper   `json:"scraper"`
	Processor Processor `json:"processor"`
}

type Crawler struct {
	RootURL string `json:"root_url"`
	// StartURL defaults to RootURL.
	StartURL        string  `json:"start_url"`
	UserAgent       string  `json:"user_agent"`
	TimeoutSeconds  float64 `json:"timeout_seconds"`
	ClearContents   *bool   `json:"clear_contents"`
	LinksDataPath   string  `json:"links_data_path"`
	MinDelaySeconds float64 `json:"min_delay_seconds"`
	MaxDelaySeconds float64 `json:"max_delay_seconds"`
}

type Scraper struct {
	UserAgent       string  `json:"user_agent"`
	TimeoutSeconds  float64 `json:"timeout_seconds"`
	ClearContents   *bool   `json:"clear_contents"`
	LinksDataPath   string  `json:"links_data_path"`
	ScrapedDataPath string  `json:"scraped_data_path"`
	MinDelaySeconds float64 `json:"min_delay_seconds"`
	MaxDelaySeconds float64 `json:"max_delay_seconds"`
	Concurrency     int     `json:"concurrency"`
	FailFast        *bool   `json:"fail_fast"`
}

type Processor struct {
	ScrapedDataPath   string   `json:"scraped_data_path"`
	ProcessedDataPath string   `json:"processed_data_path"`
	Geocoder          Geocoder `json:"geocoder"`
	SQLitePath        string   `json:"sqlite_path"`
	PostgresDSN       string   `json:"postgres_dsn"`
	NDJSONPath        string   `json:"ndjson_path"`
}

type Geocoder struct {
	SearchURL      string  `json:"search_url"`
	UserAgent      string  `json:"user_agent"`
	RatePerSecond  float64 `json:"rate_per_second"`
	TimeoutSeconds float64 `json:"timeout_seconds"`
}

func boolPtr(b bool) *bool { return &b }

// Defaults returns the values used for every key a config file leaves out.
func Defaults() Config {
	return Config{
		Crawler: Crawler{
			UserAgent:       crawler.DefaultUserAgent,
			TimeoutSeconds:  30,
			ClearContents:   boolPtr(true),
			LinksDataPath:   "artifacts/data/raw/service_links.csv",
			MinDelaySeconds: 1,
			MaxDelaySeconds: 3,
		},
		Scraper: Scraper{
			UserAgent:       crawler.DefaultUserAgent,
			TimeoutSeconds:  30,
			ClearContents:   boolPtr(true),
			LinksDataPath:   "artifacts/data/raw/service_links.csv",
			ScrapedDataPath: "artifacts/data/raw/services_info.csv",
			MinDelaySeconds: 1,
			MaxDelaySeconds: 3,
			Concurrency:     1,
			FailFast:        boolPtr(true),
		},
		Processor: Processor{
			ScrapedDataPath:   "artifacts/data/raw/services_info.csv",
			ProcessedDataPath: "artifacts/data/processed/services_info_cleaned.csv",
			Geocoder: Geocoder{
				RatePerSecond:  1,
				TimeoutSeconds: 20,
			},
		},
	}
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// Load reads name, then <name>.local.<ext> on top of it, fills unset keys
// from Defaults and finally applies SERVICEDIR_* environment overrides
// (a .env file next to the working directory is honoured).
func Load(name string) (Config, error) {
	var out Config
	found := false

	raw, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, eris.Wrapf(err, "read %s", name)
	}
	if len(raw) > 0 {
		if err := json5.Unmarshal(raw, &out); err != nil {
			return out, eris.Wrapf(err, "parse %s", name)
		}
		found = true
	}

	prefix, ext := splitExt(filepath.Base(name))
	localPath := filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
	raw, err = os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, eris.Wrapf(err, "read %s", localPath)
	}
	if len(raw) > 0 {
		var override Config
		if err := json5.Unmarshal(raw, &override); err != nil {
			return out, eris.Wrapf(err, "parse %s", localPath)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride, mergo.WithoutDereference); err != nil {
			return out, eris.Wrap(err, "merge local overrides")
		}
		found = true
	}

	if !found {
		return out, eris.Wrapf(os.ErrNotExist, "config %s", name)
	}

	if err := mergo.Merge(&out, Defaults(), mergo.WithoutDereference); err != nil {
		return out, eris.Wrap(err, "merge defaults")
	}

	// a missing .env is fine
	_ = godotenv.Load()
	out.applyEnv()

	return out, out.Validate()
}

func (c *Config) applyEnv() {
	if v := getEnv("ROOT_URL"); v != "" {
		c.Crawler.RootURL = v
	}
	if v := getEnv("USER_AGENT"); v != "" {
		c.Crawler.UserAgent = v
		c.Scraper.UserAgent = v
	}
	if v := getEnv("POSTGRES_DSN"); v != "" {
		c.Processor.PostgresDSN = v
	}
	if v := getEnv("SQLITE_PATH"); v != "" {
		c.Processor.SQLitePath = v
	}
	if v := getEnv("GEOCODER_URL"); v != "" {
		c.Processor.Geocoder.SearchURL = v
	}
	if v := getEnv("CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Scraper.Concurrency = n
		}
	}
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

// Validate reports the first missing or inconsistent key.
func (c Config) Validate() error {
	switch {
	case c.Crawler.RootURL == "":
		return eris.New("crawler.root_url is required")
	case c.Crawler.LinksDataPath == "":
		return eris.New("crawler.links_data_path is required")
	case c.Scraper.LinksDataPath == "" || c.Scraper.ScrapedDataPath == "":
		return eris.New("scraper.links_data_path and scraper.scraped_data_path are required")
	case c.Processor.ScrapedDataPath == "" || c.Processor.ProcessedDataPath == "":
		return eris.New("processor.scraped_data_path and processor.processed_data_path are required")
	case c.Crawler.MinDelaySeconds > c.Crawler.MaxDelaySeconds:
		return eris.New("crawler.min_delay_seconds exceeds max_delay_seconds")
	case c.Scraper.MinDelaySeconds > c.Scraper.MaxDelaySeconds:
		return eris.New("scraper.min_delay_seconds exceeds max_delay_seconds")
	case c.Scraper.Concurrency < 0:
		return eris.New("scraper.concurrency must not be negative")
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (c Crawler) Timeout() time.Duration { return seconds(c.TimeoutSeconds) }

func (c Crawler) Delay() crawler.Delay {
	return crawler.Delay{Min: seconds(c.MinDelaySeconds), Max: seconds(c.MaxDelaySeconds)}
}

func (c Crawler) StartPage() string {
	if c.StartURL != "" {
		return c.StartURL
	}
	return c.RootURL
}

func (c Crawler) Clear() bool { return c.ClearContents != nil && *c.ClearContents }

func (s Scraper) Timeout() time.Duration { return seconds(s.TimeoutSeconds) }

func (s Scraper) Delay() crawler.Delay {
	return crawler.Delay{Min: seconds(s.MinDelaySeconds), Max: seconds(s.MaxDelaySeconds)}
}

func (s Scraper) Clear() bool { return s.ClearContents != nil && *s.ClearContents }

func (s Scraper) StopOnFailure() bool { return s.FailFast == nil || *s.FailFast }

func (g Geocoder) Timeout() time.Duration { return seconds(g.TimeoutSeconds) }
