// Package models defines the data types shared by the scraping and
// latching pipelines.
package models

import (
	"bytes"
	"encoding/json"
)

// ListingRecord is one product summary scraped from a listing page.
// Records are immutable once produced; uniqueness of ID is enforced by
// the consumer, not the extractor.
type ListingRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Image         string `json:"image,omitempty"`
	Price         string `json:"price,omitempty"`
	OriginalPrice string `json:"originalPrice,omitempty"`
}

// ProductDetail is the full record scraped from a product detail page.
type ProductDetail struct {
	Title          string   `json:"title"`
	Price          string   `json:"price"`
	Description    string   `json:"description"`
	Specifications *Specs   `json:"specifications"`
	Highlights     []string `json:"highlights"`
	Images         []string `json:"images"`
	URL            string   `json:"url"`
}

// Specs is an insertion-ordered string-to-string mapping. Setting an
// existing key overwrites the value but keeps the original position, so
// table-derived values can take precedence over base fields without
// reshuffling the output.
type Specs struct {
	keys   []string
	values map[string]string
}

// NewSpecs returns an empty specification map.
func NewSpecs() *Specs {
	return &Specs{values: make(map[string]string)}
}

// Set inserts or overwrites a key. Later writes win on collision.
func (s *Specs) Set(key, value string) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Get returns the value for key and whether it exists.
func (s *Specs) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (s *Specs) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of entries.
func (s *Specs) Len() int {
	return len(s.keys)
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (s *Specs) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range s.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes a JSON object. Key order follows the document.
func (s *Specs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}
	s.keys = nil
	s.values = make(map[string]string)
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key := kt.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		s.Set(key, value)
	}
	_, err = dec.Token()
	return err
}
