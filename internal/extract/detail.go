package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shoplatch/latchbot/internal/models"
)

// Detail-page field chains. The first selector is the current markup
// revision, later ones cover prior revisions.
var detailFields = struct {
	title, price, mrp, discount, rating, reviews, seller, description []FieldStrategy
}{
	title:    []FieldStrategy{{Selector: "h1.CEn5rD"}, {Selector: "h1.yhB1nd"}},
	price:    []FieldStrategy{{Selector: "div.hZ3P6w"}, {Selector: "div._30jeq3"}},
	mrp:      []FieldStrategy{{Selector: "div.kRYCnD"}, {Selector: "div._3I9_wc"}},
	discount: []FieldStrategy{{Selector: "div.HQe8jr"}, {Selector: "div._3Ay6Sb"}},
	rating:   []FieldStrategy{{Selector: "div.MKiFS6"}, {Selector: "div._3LWZlK"}},
	reviews:  []FieldStrategy{{Selector: "span.PvbNMB"}, {Selector: "span._2_R_DZ"}},
	seller:   []FieldStrategy{{Selector: "#sellerName span span"}, {Selector: "div._1RLviY"}},
	description: []FieldStrategy{
		{Selector: "div.cdXR5N"},
		{Selector: "div._1mXcCf"},
		{Selector: "div.R0cy0y"},
		{Selector: "div.tUTk_J div:nth-child(2)"},
	},
}

var highlightSelectors = []string{
	"div.key-features-content ul li",
	"div._2cM9lP ul li",
	"div.x-v-m ul li",
	"li._21lJbe",
	"div._2418kt ul li",
}

var thumbnailSelectors = []string{
	"ul.f67RGv img",
	"ul._3GnUWp img",
	"ul.q6DClP img",
}

var mainImageSelectors = []string{
	"img.UCc1lI",
	"img._396cs4",
	"img._2r_T1I",
}

// Detail extracts a full product detail record from a product page.
// Missing fields degrade to empty values.
func (e *Extractor) Detail(doc *goquery.Document, pageURL string) models.ProductDetail {
	root := doc.Selection

	title := firstMatch(root, detailFields.title)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	price := firstMatch(root, detailFields.price)
	description := description(doc)

	specs := models.NewSpecs()
	for _, kv := range []struct{ key, value string }{
		{"Price", price},
		{"MRP", firstMatch(root, detailFields.mrp)},
		{"Discount", firstMatch(root, detailFields.discount)},
		{"Description", description},
		{"Seller", firstMatch(root, detailFields.seller)},
		{"Rating", firstMatch(root, detailFields.rating)},
		{"Reviews", firstMatch(root, detailFields.reviews)},
	} {
		if kv.value != "" {
			specs.Set(kv.key, kv.value)
		}
	}

	// Spec tables overwrite the base fields; the table value is the
	// more reliable one when keys collide.
	doc.Find("tr.v1Jif8, tr._1s_Smc").Each(func(_ int, row *goquery.Selection) {
		key := strings.TrimSpace(row.Find("td:first-child").Text())
		value := strings.TrimSpace(row.Find("td:nth-child(2)").Text())
		if key != "" && value != "" {
			specs.Set(key, value)
		}
	})

	return models.ProductDetail{
		Title:          title,
		Price:          price,
		Description:    description,
		Specifications: specs,
		Highlights:     highlights(doc),
		Images:         images(doc),
		URL:            pageURL,
	}
}

// description resolves the product description: class chains first, then
// a "Description" label with its following sibling.
func description(doc *goquery.Document) string {
	if d := firstMatch(doc.Selection, detailFields.description); d != "" {
		return d
	}

	var found string
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) != "Description" {
			return true
		}
		// Class length filters out bare layout divs.
		if len(s.AttrOr("class", "")) <= 5 {
			return true
		}
		next := s.Next()
		if next.Length() > 0 {
			found = strings.TrimSpace(next.Text())
			return false
		}
		return true
	})
	return found
}

// highlights collects highlight bullet points: known list classes first,
// then a label-proximity walk from a "Highlights" text node.
func highlights(doc *goquery.Document) []string {
	items := make([]string, 0)

	doc.Find(strings.Join(highlightSelectors, ", ")).Each(func(_ int, li *goquery.Selection) {
		if text := strings.TrimSpace(li.Text()); text != "" {
			items = append(items, text)
		}
	})

	if len(items) == 0 {
		doc.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name := goquery.NodeName(s)
			if name == "script" || name == "style" {
				return true
			}
			if s.Children().Length() != 0 || strings.TrimSpace(s.Text()) != "Highlights" {
				return true
			}

			// Walk up a bounded number of ancestors looking for a list.
			parent := s.Parent()
			for i := 0; i < 5 && parent.Length() > 0; i++ {
				list := parent.Find("ul").First()
				if list.Length() > 0 {
					list.Find("li").Each(func(_ int, li *goquery.Selection) {
						items = append(items, strings.TrimSpace(li.Text()))
					})
					if len(items) > 0 {
						return false
					}
				}
				parent = parent.Parent()
			}
			return true
		})
	}

	return dedupOrdered(items)
}

// images collects the image URL set in high resolution: thumbnails
// first, then main images, insertion-ordered without duplicates.
func images(doc *goquery.Document) []string {
	urls := make([]string, 0)
	seen := make(map[string]struct{})
	add := func(src string) {
		if src == "" {
			return
		}
		hi := HighRes(src)
		if _, dup := seen[hi]; dup {
			return
		}
		seen[hi] = struct{}{}
		urls = append(urls, hi)
	}

	for _, sel := range thumbnailSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			add(img.AttrOr("src", ""))
		})
	}
	for _, sel := range mainImageSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			add(img.AttrOr("src", ""))
		})
	}

	return urls
}

func dedupOrdered(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
