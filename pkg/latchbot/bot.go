// Package latchbot exposes the public automation surface: scraping
// storefront search results into a product store and replaying those
// products as listings through a seller portal.
package latchbot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shoplatch/latchbot/internal/browser"
	"github.com/shoplatch/latchbot/internal/control"
	"github.com/shoplatch/latchbot/internal/dom"
	boterrors "github.com/shoplatch/latchbot/internal/errors"
	"github.com/shoplatch/latchbot/internal/extract"
	"github.com/shoplatch/latchbot/internal/latch"
	"github.com/shoplatch/latchbot/internal/logger"
	"github.com/shoplatch/latchbot/internal/metrics"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/output"
	"github.com/shoplatch/latchbot/internal/pagekind"
	"github.com/shoplatch/latchbot/internal/ratelimit"
	"github.com/shoplatch/latchbot/internal/scrape"
	"github.com/shoplatch/latchbot/internal/state"
)

// Event is emitted on the Events channel as runs progress. Type uses
// the control protocol action names so channel consumers and WebSocket
// clients see the same vocabulary.
type Event struct {
	Type     string
	Count    int
	Page     int
	Index    int
	Total    int
	Status   string
	Message  string
	Products []models.ListingRecord
}

// Event type names, matching the control protocol.
const (
	EventUpdateCount      = control.EventUpdateCount
	EventAdvancedUpdate   = control.EventAdvancedUpdate
	EventSearchFinished   = control.EventSearchFinished
	EventAdvancedFinished = control.EventAdvancedFinished
	EventLatchProgress    = control.EventLatchProgress
	EventLatchFinished    = control.EventLatchFinished
)

// Bot orchestrates the browser, the scraping loop and the latching
// engine over a single page handle. One run is active at a time.
type Bot struct {
	config  *Config
	log     *logger.Logger
	mets    *metrics.Collector
	pacer   *ratelimit.Pacer
	kinds   *pagekind.Classifier
	store   *state.Manager
	retrier *boterrors.Retrier

	mu      sync.Mutex
	session *browser.Session
	page    dom.Page
	ex      *extract.Extractor
	loop    *scrape.Loop
	engine  *latch.Engine
	server  *control.Server

	events  chan Event
	busy    atomic.Bool
	formSet bool
	wg      sync.WaitGroup

	runCancel context.CancelFunc
}

// New creates a bot with the given options.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{
		config: DefaultConfig(),
		events: make(chan Event, 64),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if b.log == nil {
		level := logger.InfoLevel
		if b.config.Verbose {
			level = logger.DebugLevel
		}
		if b.config.Debug {
			level = logger.TraceLevel
		}
		b.log = logger.New(logger.Config{
			Level:     level,
			Pretty:    true,
			Component: "bot",
		})
	}

	if b.store == nil {
		store, err := openStore(b.config.State)
		if err != nil {
			return nil, err
		}
		b.store = state.NewManager(store)
	}

	b.mets = metrics.New()
	b.pacer = ratelimit.NewPacer(b.config.Pacing.NavsPerSecond, b.config.Pacing.Settle, b.config.Pacing.Step)
	b.retrier = boterrors.NewDefaultRetrier()
	b.ex = extract.New(b.config.SiteURL)
	b.kinds = pagekind.NewClassifier(b.sellerHosts()...)

	if b.config.Control.Enabled {
		b.server = control.NewServer(b, b.log.WithComponent("control"))
	}

	// A page injected through WithPage skips browser launch entirely.
	if b.page != nil {
		b.bindRunners()
	}

	return b, nil
}

func openStore(cfg StateConfig) (state.Store, error) {
	switch cfg.Backend {
	case "memory":
		return state.NewMemoryStore(), nil
	case "file":
		return state.NewFileStore(cfg.Path), nil
	default:
		store, err := state.NewBoltStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		return store, nil
	}
}

func (b *Bot) sellerHosts() []string {
	hosts := append([]string(nil), b.config.SellerHosts...)
	if b.config.PortalURL != "" {
		if parsed, err := url.Parse(b.config.PortalURL); err == nil && parsed.Hostname() != "" {
			hosts = append(hosts, parsed.Hostname())
		}
	}
	return hosts
}

// ensurePage launches the browser on first use. Subsequent calls reuse
// the same tab so scraping and latching share login state.
func (b *Bot) ensurePage() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		return nil
	}

	session, err := browser.New(b.config.Browser)
	if err != nil {
		return err
	}
	if len(b.config.CustomHeaders) > 0 {
		session.SetHeaders(b.config.CustomHeaders)
	}
	if len(b.config.Cookies) > 0 {
		session.SetCookies(b.cookieList())
	}

	page, err := session.NewPage()
	if err != nil {
		session.Close()
		return err
	}

	b.session = session
	b.page = page
	b.bindRunners()
	return nil
}

func (b *Bot) cookieList() []*http.Cookie {
	var siteDomain string
	if parsed, err := url.Parse(b.config.PortalURL); err == nil {
		siteDomain = parsed.Hostname()
	}

	cookies := make([]*http.Cookie, 0, len(b.config.Cookies))
	for name, value := range b.config.Cookies {
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Domain: siteDomain, Path: "/"})
	}
	return cookies
}

// bindRunners builds the scraping loop and latching engine over the
// current page. Callers hold b.mu or run before the bot is shared.
func (b *Bot) bindRunners() {
	b.loop = scrape.New(b.page, b.ex, b.pacer, b.mets, b.log.WithComponent("scrape"))
	b.engine = latch.NewEngine(b.page, b.store, b.pacer, b.mets, b.log)
}

// Events returns the progress event channel. Events are dropped when
// the channel is full, so a slow consumer never stalls a run.
func (b *Bot) Events() <-chan Event {
	return b.events
}

func (b *Bot) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
	}

	if b.server != nil {
		b.server.Broadcast(control.Event{
			Action:   ev.Type,
			Count:    ev.Count,
			Page:     ev.Page,
			Index:    ev.Index,
			Total:    ev.Total,
			Status:   ev.Status,
			Message:  ev.Message,
			Products: ev.Products,
		})
	}
}

func (b *Bot) navigate(ctx context.Context, target string) error {
	if err := b.pacer.WaitNav(ctx); err != nil {
		return err
	}
	start := time.Now()
	res := b.retrier.Do(ctx, "navigate", target, func(ctx context.Context) error {
		if err := b.page.Navigate(ctx, target); err != nil {
			return boterrors.NewNavigationError(target, "navigate", err)
		}
		return nil
	})
	for i := 1; i < res.Attempts; i++ {
		b.mets.RecordRetry()
	}
	if !res.Success {
		return res.LastError
	}
	elapsed := time.Since(start)
	b.mets.RecordNavTime(elapsed)
	b.log.NavEvent(target, elapsed)
	return b.pacer.Settle(ctx)
}

// ====================================================================
// Scraping
// ====================================================================

// StartSearchScraping begins an asynchronous simple scraping run from
// the configured search URL, or from the page the browser is already
// on when it is a search results page.
func (b *Bot) StartSearchScraping() error {
	return b.startScrape(false, b.config.MaxPages)
}

// StopSearchScraping requests the active scraping run to stop after
// the current page.
func (b *Bot) StopSearchScraping() error {
	return b.stopScrape()
}

// StartAdvancedScraping begins an asynchronous advanced scraping run.
// A non-positive maxPages falls back to the configured cap.
func (b *Bot) StartAdvancedScraping(maxPages int) error {
	if maxPages <= 0 {
		maxPages = b.config.MaxPages
	}
	return b.startScrape(true, maxPages)
}

// StopAdvancedScraping requests the active scraping run to stop after
// the current page.
func (b *Bot) StopAdvancedScraping() error {
	return b.stopScrape()
}

func (b *Bot) startScrape(advanced bool, maxPages int) error {
	if !b.busy.CompareAndSwap(false, true) {
		return boterrors.NewAutomationError("", "start scrape", "another run is active")
	}

	if err := b.prepareScrapePage(); err != nil {
		b.busy.Store(false)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.runCancel = cancel
	loop := b.loop
	b.mu.Unlock()

	updateEvent := EventUpdateCount
	finishEvent := EventSearchFinished
	if advanced {
		updateEvent = EventAdvancedUpdate
		finishEvent = EventAdvancedFinished
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		defer b.busy.Store(false)

		res, err := loop.Run(ctx, scrape.Config{
			Advanced: advanced,
			MaxPages: maxPages,
			OnPage: func(p scrape.Progress) {
				ev := Event{Type: updateEvent, Page: p.Page, Count: p.Total}
				if advanced {
					ev.Products = p.NewItems
				}
				b.emit(ev)
			},
		})

		finished := Event{Type: finishEvent}
		if res != nil {
			finished.Count = len(res.Products)
			finished.Products = res.Products
			finished.Status = res.Outcome.String()
			if saveErr := b.store.SaveProducts(res.Products); saveErr != nil {
				b.log.WithError(saveErr).Error("Failed to persist scraped products")
			}
		}
		if err != nil {
			finished.Status = "error"
			finished.Message = err.Error()
			b.log.WithError(err).Error("Scraping run failed")
		}
		b.emit(finished)
	}()

	return nil
}

func (b *Bot) prepareScrapePage() error {
	if err := b.ensurePage(); err != nil {
		return err
	}
	if b.kinds.Classify(b.page.URL()) == pagekind.Search {
		return nil
	}
	if b.config.SearchURL == "" {
		return boterrors.NewAutomationError(b.page.URL(), "start scrape", "not on a search results page and no search URL configured")
	}
	return b.navigate(context.Background(), b.config.SearchURL)
}

func (b *Bot) stopScrape() error {
	b.mu.Lock()
	loop := b.loop
	b.mu.Unlock()

	if loop == nil || !loop.Running() {
		return boterrors.NewAutomationError("", "stop scrape", "no scraping run is active")
	}
	loop.Stop()
	return nil
}

// ScrapeProduct navigates to a single product page and extracts its
// detail synchronously.
func (b *Bot) ScrapeProduct(ctx context.Context, target string) (*models.ProductDetail, error) {
	if !pagekind.IsValid(target) {
		return nil, boterrors.NewAutomationError(target, "scrape product", "invalid product URL")
	}
	if kind := b.kinds.Classify(target); kind != pagekind.Product {
		return nil, boterrors.NewAutomationError(target, "scrape product", fmt.Sprintf("expected a product page, got %s", kind))
	}

	if !b.busy.CompareAndSwap(false, true) {
		return nil, boterrors.NewAutomationError(target, "scrape product", "another run is active")
	}
	defer b.busy.Store(false)

	if err := b.ensurePage(); err != nil {
		return nil, err
	}
	if err := b.navigate(ctx, target); err != nil {
		return nil, err
	}

	html, err := b.page.HTML()
	if err != nil {
		return nil, boterrors.NewBrowserError(b.page.URL(), "scrape product", err)
	}

	detail := b.ex.Detail(extract.ParseDoc(html), b.page.URL())
	b.mets.RecordPage()
	if saveErr := b.store.SaveDetail(&detail); saveErr != nil {
		b.log.WithError(saveErr).Warn("Failed to persist product detail")
	}
	return &detail, nil
}

// ====================================================================
// Latching
// ====================================================================

// StartLatching begins an asynchronous latching run. A persisted
// unfinished session resumes from its cursor; otherwise a fresh
// session is built from the scraped product store.
func (b *Bot) StartLatching() error {
	if !b.busy.CompareAndSwap(false, true) {
		return boterrors.NewAutomationError("", "start latching", "another run is active")
	}

	session, err := b.prepareLatchSession()
	if err != nil {
		b.busy.Store(false)
		return err
	}
	if err := b.prepareLatchPage(); err != nil {
		b.busy.Store(false)
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.mu.Lock()
	b.runCancel = cancel
	engine := b.engine
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		defer b.busy.Store(false)

		err := engine.Run(ctx, session, latch.Config{
			FailureThreshold: b.config.FailureThreshold,
			OnItem: func(p latch.Progress) {
				b.emit(Event{
					Type:    EventLatchProgress,
					Index:   p.Index,
					Total:   p.Total,
					Status:  string(p.Status),
					Message: p.Message,
				})
			},
		})

		finished := Event{
			Type:   EventLatchFinished,
			Index:  session.Cursor,
			Total:  len(session.Items),
			Status: "completed",
		}
		if err != nil {
			finished.Status = "error"
			finished.Message = err.Error()
			b.log.WithError(err).Error("Latching run failed")
		}
		b.emit(finished)
	}()

	return nil
}

func (b *Bot) prepareLatchSession() (*models.Session, error) {
	session, err := b.store.LoadSession()
	if err != nil {
		return nil, err
	}
	if session != nil && !session.Done() {
		b.log.WithItem(session.Cursor).Info("Resuming latching session")
		return session, nil
	}

	products, err := b.store.LoadProducts()
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, boterrors.NewStateError("start latching", fmt.Errorf("no scraped products available"))
	}

	// Explicitly supplied settings win and are saved for later runs;
	// otherwise the previous run's stored settings carry over.
	settings := b.config.Form
	if b.formSet {
		if err := b.store.SaveSettings(settings); err != nil {
			return nil, err
		}
	} else if stored, found, err := b.store.LoadSettings(); err != nil {
		return nil, err
	} else if found {
		settings = stored
	}

	items := make([]models.ReplayItem, len(products))
	for i, p := range products {
		items[i] = models.ReplayItem{ListingRecord: p, Status: models.StatusPending}
	}
	return &models.Session{Items: items, Settings: settings}, nil
}

func (b *Bot) prepareLatchPage() error {
	if err := b.ensurePage(); err != nil {
		return err
	}
	if b.kinds.Classify(b.page.URL()) == pagekind.Seller {
		return nil
	}
	if b.config.PortalURL == "" {
		return boterrors.NewAutomationError(b.page.URL(), "start latching", "not on the seller portal and no portal URL configured")
	}
	return b.navigate(context.Background(), b.config.PortalURL)
}

// StopLatching requests the active latching run to stop after the
// current item. The session stays resumable.
func (b *Bot) StopLatching() error {
	b.mu.Lock()
	engine := b.engine
	b.mu.Unlock()

	if engine == nil || !engine.Running() {
		return boterrors.NewAutomationError("", "stop latching", "no latching run is active")
	}
	engine.Stop()
	return nil
}

// SkipCurrent marks the item under the cursor to be skipped.
func (b *Bot) SkipCurrent() error {
	b.mu.Lock()
	engine := b.engine
	b.mu.Unlock()

	if engine == nil || !engine.Running() {
		return boterrors.NewAutomationError("", "skip latching", "no latching run is active")
	}
	engine.Skip()
	return nil
}

// ====================================================================
// Inspection and export
// ====================================================================

// Busy reports whether a scraping or latching run is active.
func (b *Bot) Busy() bool {
	return b.busy.Load()
}

// Wait blocks until the active asynchronous run finishes.
func (b *Bot) Wait() {
	b.wg.Wait()
}

// Metrics returns a snapshot of the run counters.
func (b *Bot) Metrics() *metrics.Snapshot {
	return b.mets.Snapshot()
}

// Products returns the persisted scraped products.
func (b *Bot) Products() ([]models.ListingRecord, error) {
	return b.store.LoadProducts()
}

// Detail returns the persisted product detail from the last single-page
// scrape, or nil when none was stored.
func (b *Bot) Detail() (*models.ProductDetail, error) {
	return b.store.LoadDetail()
}

// Results returns the persisted per-item latching outcomes.
func (b *Bot) Results() ([]models.ItemResult, error) {
	return b.store.Results()
}

// Session returns the persisted latching session, or nil when none
// exists.
func (b *Bot) Session() (*models.Session, error) {
	return b.store.LoadSession()
}

// ClearSession removes the persisted latching session and results.
func (b *Bot) ClearSession() error {
	return b.store.ClearSession()
}

// ExportProducts writes the persisted products to w in the configured
// output format.
func (b *Bot) ExportProducts(w io.Writer) error {
	products, err := b.store.LoadProducts()
	if err != nil {
		return err
	}

	advanced := false
	for _, p := range products {
		if p.Image != "" || p.Price != "" {
			advanced = true
			break
		}
	}

	writer := output.NewWriter(w, output.Config{Format: b.config.Output.Format, Pretty: b.config.Output.Pretty})
	if err := writer.WriteListings(products, advanced); err != nil {
		return err
	}
	return writer.Flush()
}

// ExportResults writes the persisted latching outcomes to w in the
// configured output format.
func (b *Bot) ExportResults(w io.Writer) error {
	results, err := b.store.Results()
	if err != nil {
		return err
	}

	writer := output.NewWriter(w, output.Config{Format: b.config.Output.Format, Pretty: b.config.Output.Pretty})
	if err := writer.WriteResults(results); err != nil {
		return err
	}
	return writer.Flush()
}

// ExportDetail writes a product detail to w in the configured output
// format.
func (b *Bot) ExportDetail(w io.Writer, detail *models.ProductDetail) error {
	writer := output.NewWriter(w, output.Config{Format: b.config.Output.Format, Pretty: b.config.Output.Pretty})
	if err := writer.WriteDetail(detail); err != nil {
		return err
	}
	return writer.Flush()
}

// ====================================================================
// Control server and lifecycle
// ====================================================================

// ServeControl runs the WebSocket control server until ctx is
// cancelled or the listener fails.
func (b *Bot) ServeControl(ctx context.Context) error {
	if b.server == nil {
		return boterrors.NewStateError("serve control", fmt.Errorf("control server not enabled"))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.server.ListenAndServe(b.config.Control.Addr)
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return b.server.Shutdown(shutdownCtx)
	}
}

// Close stops any active run, shuts down the control server, and
// releases the browser and the state store.
func (b *Bot) Close() error {
	b.mu.Lock()
	if b.runCancel != nil {
		b.runCancel()
	}
	loop := b.loop
	engine := b.engine
	session := b.session
	server := b.server
	b.mu.Unlock()

	if loop != nil {
		loop.Stop()
	}
	if engine != nil {
		engine.Stop()
	}
	b.wg.Wait()

	var firstErr error
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		cancel()
	}
	if session != nil {
		if err := session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	close(b.events)
	return firstErr
}
