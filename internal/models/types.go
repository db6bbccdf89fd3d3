
package models

import (
	"strconv"
	"time"
)

const (
	// MiscellaneousCategory is recorded when a detail page lists offerings
	// under a block that is not titled as services.
	MiscellaneousCategory = "Miscellaneous"

	IDPrefix = "SVC"
	IDOffset = 1000

	TimestampLayout = "2006-01-02 15:04:05"
)

var (
	LinkHeader = []string{"page_number", "page_url", "service_url", "service_name", "service_address"}
	RawHeader  = []string{"service_name", "address", "latitude", "longitude", "services_offered", "details_url", "scrape_ts"}

	CleanedHeader = []string{
		"id", "service_name", "address", "latitude", "longitude",
		"state", "postcode", "services_offered", "details_url", "scrape_ts",
	}
)

// LinkRecord is one record card discovered on a listing page.
type LinkRecord struct {
	PageNumber     int    `json:"pageNumber"`
	PageURL        string `json:"pageUrl"`
	ServiceURL     string `json:"serviceUrl"`
	ServiceName    string `json:"serviceName"`
	ServiceAddress string `json:"serviceAddress"`
}

func (l LinkRecord) Row() []string {
	return []string{strconv.Itoa(l.PageNumber), l.PageURL, l.ServiceURL, l.ServiceName, l.ServiceAddress}
}

// RawServiceRecord is a scraped detail page before cleaning. An empty string
// stands for a missing value, the same way an empty CSV cell does.
type RawServiceRecord struct {
	ServiceName     string `json:"serviceName"`
	Address         string `json:"address"`
	Latitude        string `json:"latitude,omitempty"`
	Longitude       string `json:"longitude,omitempty"`
	ServicesOffered string `json:"servicesOffered,omitempty"`
	DetailsURL      string `json:"detailsUrl"`
	ScrapeTS        string `json:"scrapeTs"`
}

func (r RawServiceRecord) Row() []string {
	return []string{r.ServiceName, r.Address, r.Latitude, r.Longitude, r.ServicesOffered, r.DetailsURL, r.ScrapeTS}
}

// Key is the record identity used for deduplication: every column except
// the scrape timestamp.
func (r RawServiceRecord) Key() [6]string {
	return [6]string{r.ServiceName, r.Address, r.Latitude, r.Longitude, r.ServicesOffered, r.DetailsURL}
}

type CleanedServiceRecord struct {
	ID              string     `json:"id"`
	ServiceName     string     `json:"serviceName"`
	Address         string     `json:"address"`
	Latitude        *float64   `json:"latitude"`
	Longitude       *float64   `json:"longitude"`
	State           string     `json:"state,omitempty"`
	Postcode        string     `json:"postcode,omitempty"`
	ServicesOffered string     `json:"servicesOffered,omitempty"`
	DetailsURL      string     `json:"detailsUrl"`
	ScrapeTS        *time.Time `json:"scrapeTs"`
}

func (c CleanedServiceRecord) Row() []string {
	ts := ""
	if c.ScrapeTS != nil {
		ts = c.ScrapeTS.Format(TimestampLayout)
	}
	return []string{
		c.ID, c.ServiceName, c.Address,
		formatFloat(c.Latitude), formatFloat(c.Longitude),
		c.State, c.Postcode, c.ServicesOffered, c.DetailsURL, ts,
	}
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

// FormatID renders the synthetic key for the n-th record (zero based).
func FormatID(n int) string {
	return IDPrefix + strconv.Itoa(IDOffset+n)
}
