package state

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Deduplicator tracks product IDs already collected in a scrape run
// using a Bloom filter backed by an exact set.
type Deduplicator struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
	exact  map[string]struct{} // Resolves Bloom filter false positives
	count  int
}

// NewDeduplicator creates a new deduplicator sized for the expected
// number of products.
func NewDeduplicator(estimatedItems int) *Deduplicator {
	if estimatedItems < 1000 {
		estimatedItems = 1000
	}

	return &Deduplicator{
		filter: bloom.NewWithEstimates(uint(estimatedItems), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add records a product ID.
func (d *Deduplicator) Add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.exact[id]; !exists {
		d.filter.AddString(id)
		d.exact[id] = struct{}{}
		d.count++
	}
}

// HasSeen checks if a product ID was already collected.
func (d *Deduplicator) HasSeen(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	// Fast check with Bloom filter
	if !d.filter.TestString(id) {
		return false
	}

	_, exists := d.exact[id]
	return exists
}

// Count returns the number of unique IDs seen.
func (d *Deduplicator) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// Reset clears the deduplicator.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.filter.ClearAll()
	d.exact = make(map[string]struct{})
	d.count = 0
}

// AddBatch records multiple IDs at once.
func (d *Deduplicator) AddBatch(ids []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		if _, exists := d.exact[id]; !exists {
			d.filter.AddString(id)
			d.exact[id] = struct{}{}
			d.count++
		}
	}
}
