// Package metrics collects counters for scraping and latching runs.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates run statistics.
type Collector struct {
	// Scraping counters
	pagesVisited   atomic.Int64
	productsFound  atomic.Int64
	duplicatesSkip atomic.Int64

	// Latching counters
	itemsProcessed atomic.Int64
	itemsListed    atomic.Int64
	itemsSkipped   atomic.Int64

	errorsTotal  atomic.Int64
	retriesTotal atomic.Int64

	// Navigation time tracking
	navTimeSum atomic.Int64
	navTimeNum atomic.Int64

	// Status breakdown for latch results
	statusCounts map[string]*atomic.Int64
	statusMu     sync.RWMutex

	// Error breakdown by category
	errorCounts map[string]*atomic.Int64
	errorMu     sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		statusCounts: make(map[string]*atomic.Int64),
		errorCounts:  make(map[string]*atomic.Int64),
		startTime:    time.Now(),
	}
}

// RecordPage increments visited result pages.
func (c *Collector) RecordPage() {
	c.pagesVisited.Add(1)
}

// RecordProducts adds n extracted products.
func (c *Collector) RecordProducts(n int) {
	c.productsFound.Add(int64(n))
}

// RecordDuplicate increments products dropped by deduplication.
func (c *Collector) RecordDuplicate() {
	c.duplicatesSkip.Add(1)
}

// RecordItem records one processed latch item with its final status.
func (c *Collector) RecordItem(status string) {
	c.itemsProcessed.Add(1)

	c.statusMu.Lock()
	if c.statusCounts[status] == nil {
		c.statusCounts[status] = &atomic.Int64{}
	}
	c.statusCounts[status].Add(1)
	c.statusMu.Unlock()
}

// RecordListed increments successfully listed items.
func (c *Collector) RecordListed() {
	c.itemsListed.Add(1)
}

// RecordSkipped increments operator-skipped items.
func (c *Collector) RecordSkipped() {
	c.itemsSkipped.Add(1)
}

// RecordError records an error by category.
func (c *Collector) RecordError(category string) {
	c.errorsTotal.Add(1)

	c.errorMu.Lock()
	if c.errorCounts[category] == nil {
		c.errorCounts[category] = &atomic.Int64{}
	}
	c.errorCounts[category].Add(1)
	c.errorMu.Unlock()
}

// RecordRetry records a retry attempt.
func (c *Collector) RecordRetry() {
	c.retriesTotal.Add(1)
}

// RecordNavTime records how long a navigation took.
func (c *Collector) RecordNavTime(d time.Duration) {
	c.navTimeSum.Add(d.Milliseconds())
	c.navTimeNum.Add(1)
}

// AverageNavTime returns the mean navigation time.
func (c *Collector) AverageNavTime() time.Duration {
	num := c.navTimeNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(c.navTimeSum.Load()/num) * time.Millisecond
}

// Snapshot returns a point-in-time view of all counters.
func (c *Collector) Snapshot() *Snapshot {
	s := &Snapshot{
		Timestamp:      time.Now(),
		Uptime:         time.Since(c.startTime),
		PagesVisited:   c.pagesVisited.Load(),
		ProductsFound:  c.productsFound.Load(),
		Duplicates:     c.duplicatesSkip.Load(),
		ItemsProcessed: c.itemsProcessed.Load(),
		ItemsListed:    c.itemsListed.Load(),
		ItemsSkipped:   c.itemsSkipped.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
		RetriesTotal:   c.retriesTotal.Load(),
		AverageNavTime: c.AverageNavTime(),
		StatusCounts:   make(map[string]int64),
		ErrorCounts:    make(map[string]int64),
	}

	c.statusMu.RLock()
	for k, v := range c.statusCounts {
		s.StatusCounts[k] = v.Load()
	}
	c.statusMu.RUnlock()

	c.errorMu.RLock()
	for k, v := range c.errorCounts {
		s.ErrorCounts[k] = v.Load()
	}
	c.errorMu.RUnlock()

	return s
}

// Reset clears all counters.
func (c *Collector) Reset() {
	c.pagesVisited.Store(0)
	c.productsFound.Store(0)
	c.duplicatesSkip.Store(0)
	c.itemsProcessed.Store(0)
	c.itemsListed.Store(0)
	c.itemsSkipped.Store(0)
	c.errorsTotal.Store(0)
	c.retriesTotal.Store(0)
	c.navTimeSum.Store(0)
	c.navTimeNum.Store(0)

	c.statusMu.Lock()
	c.statusCounts = make(map[string]*atomic.Int64)
	c.statusMu.Unlock()

	c.errorMu.Lock()
	c.errorCounts = make(map[string]*atomic.Int64)
	c.errorMu.Unlock()

	c.startTime = time.Now()
}

// Snapshot represents a point-in-time view of run statistics.
type Snapshot struct {
	Timestamp      time.Time        `json:"timestamp"`
	Uptime         time.Duration    `json:"uptime"`
	PagesVisited   int64            `json:"pages_visited"`
	ProductsFound  int64            `json:"products_found"`
	Duplicates     int64            `json:"duplicates_skipped"`
	ItemsProcessed int64            `json:"items_processed"`
	ItemsListed    int64            `json:"items_listed"`
	ItemsSkipped   int64            `json:"items_skipped"`
	ErrorsTotal    int64            `json:"errors_total"`
	RetriesTotal   int64            `json:"retries_total"`
	AverageNavTime time.Duration    `json:"average_nav_time"`
	StatusCounts   map[string]int64 `json:"status_counts"`
	ErrorCounts    map[string]int64 `json:"error_counts"`
}

// ListRate returns listed items over processed items.
func (s *Snapshot) ListRate() float64 {
	if s.ItemsProcessed == 0 {
		return 0
	}
	return float64(s.ItemsListed) / float64(s.ItemsProcessed)
}

// ProductsPerPage returns the mean extraction yield.
func (s *Snapshot) ProductsPerPage() float64 {
	if s.PagesVisited == 0 {
		return 0
	}
	return float64(s.ProductsFound) / float64(s.PagesVisited)
}

// Summary returns the fields worth logging at the end of a run.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":            s.Uptime.String(),
		"pages_visited":     s.PagesVisited,
		"products_found":    s.ProductsFound,
		"duplicates":        s.Duplicates,
		"items_processed":   s.ItemsProcessed,
		"items_listed":      s.ItemsListed,
		"errors_total":      s.ErrorsTotal,
		"list_rate":         s.ListRate(),
		"products_per_page": s.ProductsPerPage(),
		"avg_nav_time_ms":   s.AverageNavTime.Milliseconds(),
	}
}
