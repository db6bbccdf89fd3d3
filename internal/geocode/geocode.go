package geocode

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const DefaultSearchURL = "https://nominatim.openstreetmap.org/search"

type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusServiceError
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not found"
	case StatusServiceError:
		return "service error"
	}
	return "unknown"
}

// Place is one candidate match. Coordinates stay in the decimal string form
// the service returns them in.
type Place struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

type Result struct {
	Status     Status
	Candidates []Place
	Err        error
}

var postcodeRe = regexp.MustCompile(`.* (\d{4})`)

// Coordinates returns the first candidate's position.
func (r Result) Coordinates() (lat, lon string, ok bool) {
	if r.Status != StatusFound || len(r.Candidates) == 0 {
		return "", "", false
	}
	p := r.Candidates[0]
	if p.Lat == "" || p.Lon == "" {
		return "", "", false
	}
	return p.Lat, p.Lon, true
}

// Postcode returns the postcode of the first candidate whose display name carries one.
func (r Result) Postcode() (string, bool) {
	for _, p := range r.Candidates {
		if m := postcodeRe.FindStringSubmatch(p.DisplayName); m != nil {
			return m[1], true
		}
	}
	return "", false
}

type Geocoder interface {
	Search(ctx context.Context, address string) Result
}

type Options struct {
	SearchURL string
	UserAgent string
	Timeout   time.Duration
	// RatePerSecond caps outgoing requests; zero or less disables the cap.
	RatePerSecond float64
}

type Client struct {
	http      *resty.Client
	searchURL string
	limiter   *rate.Limiter
}

func NewClient(opts Options) *Client {
	if opts.SearchURL == "" {
		opts.SearchURL = DefaultSearchURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	hc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Accept-Language", "en-US")
	if opts.UserAgent != "" {
		hc.SetHeader("User-Agent", opts.UserAgent)
	}
	return &Client{
		http:      hc,
		searchURL: opts.SearchURL,
		limiter:   rate.NewLimiter(limit, 1),
	}
}

func (c *Client) Search(ctx context.Context, address string) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Status: StatusServiceError, Err: err}
	}

	var places []Place
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"q": address, "format": "json"}).
		SetResult(&places).
		Get(c.searchURL)
	if err != nil {
		return Result{Status: StatusServiceError, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return Result{Status: StatusServiceError, Err: fmt.Errorf("geocode: http status %d", res.StatusCode())}
	}
	if len(places) == 0 {
		return Result{Status: StatusNotFound}
	}
	return Result{Status: StatusFound, Candidates: places}
}

// Cached memoises answers per address. Service errors are not remembered.
type Cached struct {
	next Geocoder

	mu      sync.Mutex
	results map[string]Result
}

func NewCached(next Geocoder) *Cached {
	return &Cached{next: next, results: map[string]Result{}}
}

func (c *Cached) Search(ctx context.Context, address string) Result {
	c.mu.Lock()
	r, ok := c.results[address]
	c.mu.Unlock()
	if ok {
		return r
	}

	r = c.next.Search(ctx, address)
	if r.Status != StatusServiceError {
		c.mu.Lock()
		c.results[address] = r
		c.mu.Unlock()
	}
	return r
}
