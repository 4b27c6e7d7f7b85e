package output

import (
	"io"
	"strings"
	"sync"

	"github.com/shoplatch/latchbot/internal/models"
)

// CSVWriter writes spreadsheet-compatible CSV. Every data cell is
// quoted regardless of content so titles with commas, quotes or line
// breaks survive; encoding/csv only quotes when it has to, which
// produces files some import tools mangle, so quoting is done here.
type CSVWriter struct {
	mu     sync.Mutex
	writer io.Writer
	closed bool
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{writer: w}
}

// Column orders per listing shape.
var (
	simpleHeader   = []string{"Title", "URL", "ID"}
	advancedHeader = []string{"Name", "Image", "Price", "URL", "ID"}
	resultHeader   = []string{"Product", "Status", "Message"}
)

// WriteListings writes listing records with a header row.
func (c *CSVWriter) WriteListings(items []models.ListingRecord, advanced bool) error {
	header := simpleHeader
	if advanced {
		header = advancedHeader
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		if advanced {
			rows = append(rows, []string{it.Title, it.Image, it.Price, it.URL, it.ID})
		} else {
			rows = append(rows, []string{it.Title, it.URL, it.ID})
		}
	}
	return c.writeTable(header, rows)
}

// WriteDetail writes the detail as field/value rows, specifications
// included in their extraction order.
func (c *CSVWriter) WriteDetail(d *models.ProductDetail) error {
	rows := [][]string{
		{"Title", d.Title},
		{"Price", d.Price},
		{"URL", d.URL},
		{"Description", d.Description},
		{"Highlights", strings.Join(d.Highlights, "; ")},
		{"Images", strings.Join(d.Images, "; ")},
	}
	if d.Specifications != nil {
		for _, key := range d.Specifications.Keys() {
			v, _ := d.Specifications.Get(key)
			rows = append(rows, []string{key, v})
		}
	}
	return c.writeTable([]string{"Field", "Value"}, rows)
}

// WriteResults writes replay outcomes with a header row.
func (c *CSVWriter) WriteResults(results []models.ItemResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.Product, string(r.Status), r.Message})
	}
	return c.writeTable(resultHeader, rows)
}

func (c *CSVWriter) writeTable(header []string, rows [][]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(cell))
		}
		b.WriteByte('\n')
	}

	_, err := io.WriteString(c.writer, b.String())
	return err
}

// quote wraps a cell in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Flush flushes the writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if flusher, ok := c.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
