// Package pagekind classifies URLs into the page types the bot knows
// how to operate on. Operations refuse to run against the wrong kind
// instead of scraping garbage out of an unrelated layout.
package pagekind

import (
	"net/url"
	"strings"
)

// Kind is the category of page a URL points at.
type Kind int

const (
	Unknown Kind = iota
	Search
	Product
	Seller
)

func (k Kind) String() string {
	switch k {
	case Search:
		return "search"
	case Product:
		return "product"
	case Seller:
		return "seller"
	default:
		return "unknown"
	}
}

// Classifier maps URLs to kinds. SellerHosts are matched by host
// suffix so portal subdomains classify as Seller.
type Classifier struct {
	sellerHosts []string
}

// NewClassifier builds a classifier. Hosts are lowercased for matching.
func NewClassifier(sellerHosts ...string) *Classifier {
	c := &Classifier{}
	for _, h := range sellerHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			c.sellerHosts = append(c.sellerHosts, h)
		}
	}
	return c
}

// Classify returns the kind of page the URL points at. Seller hosts
// take priority; path markers decide between search and product pages.
func (c *Classifier) Classify(rawURL string) Kind {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Unknown
	}

	host := strings.ToLower(parsed.Host)
	for _, sh := range c.sellerHosts {
		if host == sh || strings.HasSuffix(host, "."+sh) {
			return Seller
		}
	}

	if strings.Contains(rawURL, "/search") {
		return Search
	}
	path := parsed.Path
	if strings.Contains(path, "/p/") || strings.Contains(path, "/P/") {
		return Product
	}
	return Unknown
}

// IsValid reports whether a URL is navigable at all.
func IsValid(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	return parsed.Host != ""
}
