// Package extract provides pure HTML extraction for marketplace pages.
// Extraction never fails: a selector miss degrades to a missing field or
// an empty result, never to an error.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shoplatch/latchbot/internal/models"
)

// FieldStrategy locates one field. Attr empty means element text.
type FieldStrategy struct {
	Selector string
	Attr     string
}

// firstMatch tries each strategy in order and returns the first
// non-empty value.
func firstMatch(root *goquery.Selection, strategies []FieldStrategy) string {
	for _, st := range strategies {
		sel := root.Find(st.Selector).First()
		if sel.Length() == 0 {
			continue
		}
		var v string
		if st.Attr == "" {
			v = strings.TrimSpace(sel.Text())
		} else {
			v = strings.TrimSpace(sel.AttrOr(st.Attr, ""))
		}
		if v != "" {
			return v
		}
	}
	return ""
}

const unknownTitle = "Unknown Product"

// Extractor extracts listing records from search result pages.
type Extractor struct {
	baseURL string
}

// New creates an extractor. baseURL absolutizes relative product links.
func New(baseURL string) *Extractor {
	return &Extractor{baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Listings extracts the simple search-page listing set: product card
// anchors first, then a generic product-link scan when the card class
// is absent (markup revision fallback). Results are deduplicated by URL.
func (e *Extractor) Listings(doc *goquery.Document) []models.ListingRecord {
	products := make([]models.ListingRecord, 0)

	doc.Find("a.GnxRXv").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" {
			return
		}
		u := e.absolutize(href)

		title := strings.TrimSpace(a.Find("img").First().AttrOr("alt", ""))
		if title == "" {
			title = strings.TrimSpace(a.AttrOr("title", ""))
		}
		if title == "" {
			title = unknownTitle
		}

		products = append(products, models.ListingRecord{
			ID:    IDFromURL(u),
			Title: title,
			URL:   u,
		})
	})

	if len(products) == 0 {
		seen := make(map[string]struct{})
		doc.Find(`a[href*="/p/"]`).Each(func(_ int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			if href == "" {
				return
			}
			u := e.absolutize(href)
			if _, dup := seen[u]; dup {
				return
			}
			seen[u] = struct{}{}

			title := strings.TrimSpace(a.Text())
			if title == "" {
				title = unknownTitle
			}

			products = append(products, models.ListingRecord{
				ID:    IDFromURL(u),
				Title: title,
				URL:   u,
			})
		})
	}

	return products
}

var advancedFields = struct {
	title, image, price, link []FieldStrategy
}{
	title: []FieldStrategy{{Selector: "a.pIpigb[title]", Attr: "title"}},
	image: []FieldStrategy{{Selector: "img.UCc1lI", Attr: "src"}},
	price: []FieldStrategy{{Selector: "div.hZ3P6w"}},
	link:  []FieldStrategy{{Selector: "a.GnxRXv[href]", Attr: "href"}},
}

// AdvancedListings extracts the container-based listing set. A card
// without a usable ID or title is dropped rather than half-filled.
func (e *Extractor) AdvancedListings(doc *goquery.Document) []models.ListingRecord {
	products := make([]models.ListingRecord, 0)

	doc.Find("div[data-id]").Each(func(_ int, card *goquery.Selection) {
		id := strings.TrimSpace(card.AttrOr("data-id", ""))
		if id == "" {
			return
		}

		title := firstMatch(card, advancedFields.title)
		if title == "" {
			return
		}

		price := firstMatch(card, advancedFields.price)
		if price == "" {
			price = "N/A"
		}

		u := firstMatch(card, advancedFields.link)
		if u != "" {
			u = e.absolutize(u)
		}

		products = append(products, models.ListingRecord{
			ID:    id,
			Title: title,
			Image: firstMatch(card, advancedFields.image),
			Price: price,
			URL:   u,
		})
	})

	return products
}

// absolutize prefixes relative links with the extractor base URL.
func (e *Extractor) absolutize(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return e.baseURL + href
}

// IDFromURL extracts the product ID from the pid query parameter.
// Returns "unknown" when absent or unparsable.
func IDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unknown"
	}
	if pid := u.Query().Get("pid"); pid != "" {
		return pid
	}
	return "unknown"
}

// ParseDoc parses raw markup. A parse failure yields an empty document
// so extraction still degrades to empty results.
func ParseDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		empty, _ := goquery.NewDocumentFromReader(strings.NewReader(""))
		return empty
	}
	return doc
}
