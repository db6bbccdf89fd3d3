
package parser

import (
	"bytes"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"

	"servicedir-etl/internal/models"
)

const (
	cardSel        = "div.white-box"
	cardNameSel    = "h2"
	cardAddressSel = "div.location-info__text"
	nextPageSel    = "li.location-pagination__next a"

	nameSel          = "div.location-box h1"
	addressSel       = "div.location-box div.info-block:first-of-type p a"
	lastBlockSel     = "div.location-box div.info-block:last-of-type"
	servicesTitleSel = lastBlockSel + " div.info-block__title"
	servicesDescSel  = lastBlockSel + " div.info-block__desc p"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

var whitespaceRe = regexp.MustCompile(`\s+`)

// Listing is what a single listing page yields.
type Listing struct {
	Cards    []Card
	NextHref string
}

func (l Listing) HasNext() bool { return l.NextHref != "" }

// Card is the summary block of one record on a listing page.
type Card struct {
	URL     string
	Name    string
	Address string
}

func (p *Parser) document(r io.Reader, contentType string) (*goquery.Document, error) {
	// Decode to UTF-8 if needed
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	data := buf.Bytes()

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// fallback: if already utf-8, continue
		if !utf8.Valid(data) {
			return nil, eris.Wrap(err, "decode body")
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return nil, eris.Wrap(err, "parse html")
	}
	return doc, nil
}

// ExtractListing collects the record cards of a listing page and the raw
// href of its "next page" link, if any. Card links are resolved against
// pageURL.
func (p *Parser) ExtractListing(r io.Reader, contentType, pageURL string) (Listing, error) {
	doc, err := p.document(r, contentType)
	if err != nil {
		return Listing{}, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return Listing{}, eris.Wrapf(err, "page url %q", pageURL)
	}

	var out Listing
	var cardErr error
	doc.Find(cardSel).EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Find("a").First().Attr("href")
		if !ok {
			cardErr = eris.Errorf("card %d has no link", i)
			return false
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			cardErr = eris.Wrapf(err, "card %d link", i)
			return false
		}
		address := collapse(s.Find(cardAddressSel).First().Text())
		address = strings.TrimSpace(strings.Replace(address, "Address:", "", 1))
		out.Cards = append(out.Cards, Card{
			URL:     base.ResolveReference(ref).String(),
			Name:    collapse(s.Find(cardNameSel).First().Text()),
			Address: address,
		})
		return true
	})
	if cardErr != nil {
		return Listing{}, cardErr
	}

	if next := doc.Find(nextPageSel).First(); next.Length() > 0 {
		out.NextHref = strings.TrimSpace(next.AttrOr("href", ""))
	}
	return out, nil
}

// Detail holds the fields of a record's detail page.
type Detail struct {
	Name        Field
	Address     Field
	AddressHref Field
	Latitude    Field
	Longitude   Field
	Services    Field
}

func (p *Parser) ExtractDetail(r io.Reader, contentType string) (Detail, error) {
	doc, err := p.document(r, contentType)
	if err != nil {
		return Detail{}, err
	}

	var d Detail
	d.Name = textField(doc.Find(nameSel))

	anchor := doc.Find(addressSel)
	d.Address = textField(anchor)
	d.AddressHref = attrField(anchor, "href")
	if d.AddressHref.OK() {
		d.Latitude, d.Longitude = ParseCoordinates(d.AddressHref.Value)
	} else {
		d.Latitude, d.Longitude = Absent(d.AddressHref.Missing), Absent(d.AddressHref.Missing)
	}

	d.Services = servicesField(doc)
	return d, nil
}

// servicesField only trusts the last info block when its title mentions
// services; any other titled block yields the miscellaneous sentinel.
func servicesField(doc *goquery.Document) Field {
	desc := textField(doc.Find(servicesDescSel))
	if !desc.OK() {
		return desc
	}
	title := textField(doc.Find(servicesTitleSel))
	if title.OK() && strings.Contains(title.Value, "Services") {
		return desc
	}
	return Present(models.MiscellaneousCategory)
}

var coordinatesRe = regexp.MustCompile(`\?q=(.*),(.*)`)

// ParseCoordinates reads the "lat,long" pair embedded after ?q= in a map link.
func ParseCoordinates(href string) (lat, lon Field) {
	if !strings.Contains(href, "?q=") {
		return Absent(ReasonNotFound), Absent(ReasonNotFound)
	}
	m := coordinatesRe.FindStringSubmatch(href)
	if m == nil {
		return Absent(ReasonMalformed), Absent(ReasonMalformed)
	}
	return valueField(m[1]), valueField(m[2])
}

func textField(s *goquery.Selection) Field {
	if s.Length() == 0 {
		return Absent(ReasonNotFound)
	}
	return valueField(s.First().Text())
}

func attrField(s *goquery.Selection, attr string) Field {
	if s.Length() == 0 {
		return Absent(ReasonNotFound)
	}
	v, ok := s.First().Attr(attr)
	if !ok {
		return Absent(ReasonNotFound)
	}
	return valueField(v)
}

func valueField(v string) Field {
	v = collapse(v)
	if v == "" {
		return Absent(ReasonEmpty)
	}
	return Present(v)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
