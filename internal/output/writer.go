// Package output exports scraped products and replay results as JSON
// or CSV.
package output

import (
	"io"

	"github.com/shoplatch/latchbot/internal/models"
)

// Writer exports run artifacts. Listings come in two shapes: the plain
// scan carries title, URL and ID, the advanced scan adds image and
// price columns.
type Writer interface {
	// WriteListings exports scraped listing records.
	WriteListings(items []models.ListingRecord, advanced bool) error

	// WriteDetail exports a single product detail.
	WriteDetail(d *models.ProductDetail) error

	// WriteResults exports per-item replay outcomes.
	WriteResults(results []models.ItemResult) error

	// Flush flushes any buffered output.
	Flush() error

	// Close closes the writer.
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string
	Pretty bool
}

// NewWriter creates a writer for the configured format. JSON is the
// default.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "csv":
		return NewCSVWriter(w)
	default:
		return NewJSONWriter(w, config.Pretty)
	}
}
