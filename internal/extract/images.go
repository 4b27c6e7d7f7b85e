package extract

import (
	"fmt"
	"regexp"
	"strings"
)

var imageSizeRe = regexp.MustCompile(`/image/\d+/\d+/`)

// HighRes rewrites a thumbnail URL to its fixed high-resolution variant.
// URLs without a size segment, and URLs already rewritten, pass through
// unchanged, so the rewrite is idempotent.
func HighRes(src string) string {
	return imageSizeRe.ReplaceAllString(src, "/image/1280/1280/")
}

// NamedImage pairs an image URL with a generated download filename.
type NamedImage struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ImageManifest generates safe sequential filenames for a product's
// image set, prefixed with a sanitized slice of the title.
func ImageManifest(title string, urls []string) []NamedImage {
	prefix := title
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	prefix = unsafeFilenameRe.ReplaceAllString(prefix, "_")
	if prefix == "" {
		prefix = "product"
	}

	manifest := make([]NamedImage, 0, len(urls))
	for i, u := range urls {
		manifest = append(manifest, NamedImage{
			URL:      u,
			Filename: fmt.Sprintf("%s_%d.jpg", prefix, i+1),
		})
	}
	return manifest
}

// ParsePrice parses a displayed price string into a number, stripping
// the currency symbol and thousands separators. Unparsable input
// yields 0.
func ParsePrice(s string) float64 {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.NewReplacer("₹", "", ",", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return 0
	}

	var v float64
	if _, err := fmt.Sscanf(cleaned, "%f", &v); err != nil {
		return 0
	}
	return v
}
