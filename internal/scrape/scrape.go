// Package scrape runs the paginated result-page collection loop. The
// loop extracts listings from the current page, streams them to the
// caller, then advances through the pagination control until the site
// runs out of pages, the page cap is reached, or the operator stops it.
package scrape

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shoplatch/latchbot/internal/dom"
	boterrors "github.com/shoplatch/latchbot/internal/errors"
	"github.com/shoplatch/latchbot/internal/extract"
	"github.com/shoplatch/latchbot/internal/logger"
	"github.com/shoplatch/latchbot/internal/metrics"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/navigate"
	"github.com/shoplatch/latchbot/internal/ratelimit"
	"github.com/shoplatch/latchbot/internal/state"
)

// Outcome is how a run ended.
type Outcome int32

const (
	OutcomeCompleted Outcome = iota
	OutcomeStopped
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "completed"
	}
}

// Markers awaited after a pagination click, per layout variant.
const (
	searchMarker   = "a.GnxRXv"
	advancedMarker = "div[data-id]"
)

// Progress is streamed to the caller after every extracted page.
type Progress struct {
	Page     int
	NewItems []models.ListingRecord
	Total    int
	Advanced bool
}

// Config controls a single run.
type Config struct {
	// Advanced selects the card-container extraction with image and
	// price fields instead of the plain anchor scan.
	Advanced bool

	// MaxPages caps how many result pages are visited. Zero means no
	// cap.
	MaxPages int

	// OnPage receives progress after each page. May be nil.
	OnPage func(Progress)
}

// Result is the final output of a run.
type Result struct {
	Products []models.ListingRecord
	Pages    int
	Outcome  Outcome
}

// Loop drives a scraping run over one page handle.
type Loop struct {
	page    dom.Page
	ex      *extract.Extractor
	pacer   *ratelimit.Pacer
	mets    *metrics.Collector
	log     *logger.Logger
	stopped atomic.Bool
	running atomic.Bool
}

// New builds a loop. A nil pacer or collector gets a default.
func New(page dom.Page, ex *extract.Extractor, pacer *ratelimit.Pacer, mets *metrics.Collector, log *logger.Logger) *Loop {
	if pacer == nil {
		pacer = ratelimit.NewPacer(1, 0, 0)
	}
	if mets == nil {
		mets = metrics.New()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Loop{
		page:  page,
		ex:    ex,
		pacer: pacer,
		mets:  mets,
		log:   log.WithComponent("scrape"),
	}
}

// Stop requests the run to halt. The request takes effect at the top
// of the next page iteration so the page in flight still lands.
func (l *Loop) Stop() {
	l.stopped.Store(true)
}

// Running reports whether a run is in progress.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Run walks result pages starting from the page's current document.
// Duplicate product IDs seen on earlier pages are dropped. A pagination
// control that never settles is logged and the loop reads whatever the
// page holds on the next pass.
func (l *Loop) Run(ctx context.Context, cfg Config) (*Result, error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, boterrors.NewAutomationError(l.page.URL(), "scrape", "run already in progress")
	}
	defer l.running.Store(false)
	l.stopped.Store(false)

	dedup := state.NewDeduplicator(0)
	res := &Result{}
	marker := searchMarker
	if cfg.Advanced {
		marker = advancedMarker
	}

	for {
		if l.stopped.Load() {
			res.Outcome = OutcomeStopped
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Outcome = OutcomeCancelled
			return res, boterrors.NewCancelledError(l.page.URL(), "scrape")
		}

		doc, err := l.document()
		if err != nil {
			return res, err
		}

		pageNum := res.Pages + 1
		fresh := l.extractPage(doc, cfg.Advanced, dedup)
		res.Pages = pageNum
		l.mets.RecordPage()
		l.mets.RecordProducts(len(fresh))

		if len(fresh) == 0 {
			// An exhausted result set renders an empty page.
			res.Outcome = OutcomeCompleted
			return res, nil
		}

		res.Products = append(res.Products, fresh...)
		l.log.PageEvent(logger.InfoLevel, l.page.URL(), pageNum, len(fresh)).
			Int("total", len(res.Products)).
			Msg("Page scraped")
		if cfg.OnPage != nil {
			cfg.OnPage(Progress{
				Page:     pageNum,
				NewItems: fresh,
				Total:    len(res.Products),
				Advanced: cfg.Advanced,
			})
		}

		if cfg.MaxPages > 0 && pageNum >= cfg.MaxPages {
			res.Outcome = OutcomeCompleted
			return res, nil
		}

		ctrl, ok := navigate.FindNext(doc)
		if !ok {
			res.Outcome = OutcomeCompleted
			return res, nil
		}

		start := time.Now()
		if !navigate.ActivateAndAwait(ctx, l.page, ctrl, marker, navigate.DefaultAwaitTimeout) {
			if err := ctx.Err(); err != nil {
				res.Outcome = OutcomeCancelled
				return res, boterrors.NewCancelledError(l.page.URL(), "scrape")
			}
			l.log.WithPage(pageNum).WithURL(l.page.URL()).
				Warn("Next page did not settle, reading current document")
			l.pacer.Backoff()
		} else {
			l.pacer.Recover()
		}
		l.mets.RecordNavTime(time.Since(start))

		if err := l.pacer.Settle(ctx); err != nil {
			res.Outcome = OutcomeCancelled
			return res, boterrors.NewCancelledError(l.page.URL(), "scrape")
		}
	}
}

func (l *Loop) document() (*goquery.Document, error) {
	html, err := l.page.HTML()
	if err != nil {
		return nil, boterrors.NewBrowserError(l.page.URL(), "read page", err)
	}
	return extract.ParseDoc(html), nil
}

func (l *Loop) extractPage(doc *goquery.Document, advanced bool, dedup *state.Deduplicator) []models.ListingRecord {
	var records []models.ListingRecord
	if advanced {
		records = l.ex.AdvancedListings(doc)
	} else {
		records = l.ex.Listings(doc)
	}

	fresh := records[:0:0]
	for _, r := range records {
		key := r.ID
		if key == "" || key == "unknown" {
			key = r.URL
		}
		if dedup.HasSeen(key) {
			l.mets.RecordDuplicate()
			continue
		}
		dedup.Add(key)
		fresh = append(fresh, r)
	}
	return fresh
}
