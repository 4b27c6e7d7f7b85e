package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/shoplatch/latchbot/internal/models"
)

// JSONWriter writes output in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty bool) *JSONWriter {
	return &JSONWriter{writer: w, pretty: pretty}
}

// WriteListings writes the listing records as a JSON array. The
// advanced flag has no effect on JSON output: records carry whatever
// fields were extracted.
func (j *JSONWriter) WriteListings(items []models.ListingRecord, _ bool) error {
	return j.write(items)
}

// WriteDetail writes a single product detail.
func (j *JSONWriter) WriteDetail(d *models.ProductDetail) error {
	return j.write(d)
}

// WriteResults writes replay outcomes.
func (j *JSONWriter) WriteResults(results []models.ItemResult) error {
	return j.write(results)
}

func (j *JSONWriter) write(v interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}

	var data []byte
	var err error
	if j.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	if _, err = j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
