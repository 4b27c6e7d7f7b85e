// Package latch replays scraped listings into the seller portal. Each
// session item is searched in the portal, the result is classified by
// which action control the portal renders, and listable products get
// the listing form filled. Progress is written through to the state
// store before every page-mutating step so an interrupted run resumes
// at the same item.
package latch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shoplatch/latchbot/internal/dom"
	boterrors "github.com/shoplatch/latchbot/internal/errors"
	"github.com/shoplatch/latchbot/internal/logger"
	"github.com/shoplatch/latchbot/internal/metrics"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/ratelimit"
	"github.com/shoplatch/latchbot/internal/state"
)

// Portal selectors. The action bar renders exactly one primary control
// per product; which one decides the item's classification.
const (
	searchBoxSelector   = `[data-testid="searchBox"]`
	searchInputSelector = `[data-testid="searchBox"] input[data-testid="test-input"]`
	searchIconSelector  = `[data-testid="searchIcon"]`
	backIconSelector    = `[data-testid="backIcon"]`

	alreadySellingSelector = `.primaryActionBar a.disabled.startSelling, .primaryActionBar a.alreadySelling`
	needsApprovalSelector  = `.primaryActionBar a.applyForApprovalLink:not(.startSelling), .primaryActionBar a[href*="apply"]`
	startSellingSelector   = `.primaryActionBar a.startSelling.listingsModalLink:not(.disabled)`
)

const (
	searchBoxTimeout = 10 * time.Second
	backBoxTimeout   = 5 * time.Second
	formTimeout      = 5 * time.Second
)

// Progress is reported after each item reaches a terminal status.
type Progress struct {
	Index   int
	Total   int
	Product models.ReplayItem
	Status  models.ReplayStatus
	Message string
}

// Config controls a replay run.
type Config struct {
	// OnItem receives progress after every item. May be nil.
	OnItem func(Progress)

	// FailureThreshold halts the run after this many consecutive ERROR
	// items. Zero disables the guard.
	FailureThreshold int
}

// Engine drives replay sessions over one portal page handle.
type Engine struct {
	page   dom.Page
	store  *state.Manager
	pacer  *ratelimit.Pacer
	mets   *metrics.Collector
	log    *logger.Logger
	filler *Filler

	skip    atomic.Bool
	stopped atomic.Bool
	running atomic.Bool
}

// NewEngine builds an engine. A nil pacer or collector gets a default.
func NewEngine(page dom.Page, store *state.Manager, pacer *ratelimit.Pacer, mets *metrics.Collector, log *logger.Logger) *Engine {
	if pacer == nil {
		pacer = ratelimit.NewPacer(1, 0, 0)
	}
	if mets == nil {
		mets = metrics.New()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Engine{
		page:   page,
		store:  store,
		pacer:  pacer,
		mets:   mets,
		log:    log.WithComponent("latch"),
		filler: NewFiller(),
	}
}

// Stop requests the run to halt before the next item. The session stays
// resumable: the cursor and items are already persisted.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// Skip marks the current item to be skipped. The flag is consumed at
// the top of the next item iteration, or mid-item before the portal
// search fires, whichever comes first.
func (e *Engine) Skip() {
	e.skip.Store(true)
}

// Running reports whether a run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run processes the session from its cursor to the end. The portal
// search page must already be loaded on the engine's page handle.
func (e *Engine) Run(ctx context.Context, session *models.Session, cfg Config) error {
	if !e.running.CompareAndSwap(false, true) {
		return boterrors.NewAutomationError(e.page.URL(), "latch", "run already in progress")
	}
	defer e.running.Store(false)
	e.stopped.Store(false)

	if !dom.AwaitSelector(ctx, e.page, searchBoxSelector, 200*time.Millisecond, searchBoxTimeout) {
		if err := ctx.Err(); err != nil {
			return boterrors.NewCancelledError(e.page.URL(), "latch")
		}
		return boterrors.NewCommunicationError("await portal search box", nil)
	}

	guard := boterrors.NewFailureGuard(cfg.FailureThreshold)
	session.Active = true
	if err := e.store.SaveSession(session); err != nil {
		return err
	}

	for !session.Done() {
		if e.stopped.Load() {
			return e.deactivate(session)
		}
		if err := ctx.Err(); err != nil {
			e.deactivate(session)
			return boterrors.NewCancelledError(e.page.URL(), "latch")
		}

		item := session.Current()
		var status models.ReplayStatus
		var msg string

		if e.skip.CompareAndSwap(true, false) {
			status, msg = models.StatusSkipped, "Skipped by user"
			e.mets.RecordSkipped()
		} else {
			status, msg = e.processItem(ctx, *item, session.Settings)
			if err := ctx.Err(); err != nil {
				e.deactivate(session)
				return boterrors.NewCancelledError(e.page.URL(), "latch")
			}
		}

		item.Status = status
		item.Message = msg
		e.recordItem(session, cfg, item, status, msg)

		if status == models.StatusError {
			if guard.RecordFailure() {
				e.deactivate(session)
				return &boterrors.GuardTrippedError{Consecutive: guard.Consecutive()}
			}
		} else {
			guard.RecordSuccess()
		}

		// Persist the item statuses and the advanced cursor before any
		// further page mutation so a portal-triggered reload resumes at
		// the next item, never repeating a finished one.
		session.Cursor++
		if err := e.store.SaveItems(session.Items); err != nil {
			return err
		}
		if err := e.store.SetCursor(session.Cursor); err != nil {
			return err
		}
		if session.Done() {
			break
		}
		e.backToSearch(ctx)
	}

	return e.deactivate(session)
}

// processItem runs one item through search, classification and, when
// the portal offers listing, the form fill.
func (e *Engine) processItem(ctx context.Context, item models.ReplayItem, settings models.FormSettings) (models.ReplayStatus, string) {
	if !e.page.Has(searchInputSelector) {
		return models.StatusError, "Search input not found"
	}
	// Search by the product URL. The portal resolves it to the exact
	// catalog entry, where a title lookup is ambiguous.
	if err := e.page.SetValue(searchInputSelector, item.URL); err != nil {
		return models.StatusError, "Search input not found"
	}
	e.pacer.Step(ctx)

	if e.skip.CompareAndSwap(true, false) {
		e.mets.RecordSkipped()
		return models.StatusSkipped, "Skipped by user"
	}

	if err := e.page.Click(searchIconSelector); err != nil {
		return models.StatusError, "Search icon not found"
	}
	if err := e.pacer.Settle(ctx); err != nil {
		return models.StatusError, "Cancelled"
	}

	return e.classify(ctx, item, settings)
}

func (e *Engine) classify(ctx context.Context, item models.ReplayItem, settings models.FormSettings) (models.ReplayStatus, string) {
	if t, ok := e.page.Text(alreadySellingSelector); ok && dom.ContainsFold(t, "already selling") {
		return models.StatusAlreadySelling, "Already listed, skipped"
	}
	if t, ok := e.page.Text(needsApprovalSelector); ok && dom.ContainsFold(t, "apply for approval") {
		return models.StatusNeedsApproval, "Brand approval required"
	}
	if e.page.Has(startSellingSelector) {
		return e.list(ctx, item, settings)
	}
	return models.StatusUnknown, "No action button found"
}

func (e *Engine) list(ctx context.Context, item models.ReplayItem, settings models.FormSettings) (models.ReplayStatus, string) {
	if err := e.page.Click(startSellingSelector); err != nil {
		return models.StatusError, "Start selling button not clickable"
	}
	if !dom.AwaitSelector(ctx, e.page, FormSelector, 200*time.Millisecond, formTimeout) {
		return models.StatusError, "Listing form did not appear"
	}
	e.pacer.Step(ctx)

	if err := e.filler.Fill(ctx, e.page, item, settings); err != nil {
		return models.StatusError, "Form fill failed"
	}
	if settings.AutoSubmit && !e.filler.Submit(e.page) {
		return models.StatusError, "Submit control not found"
	}
	return models.StatusListed, "Form filled successfully"
}

// backToSearch returns the portal to its search view between items.
func (e *Engine) backToSearch(ctx context.Context) {
	if err := e.page.Click(backIconSelector); err != nil {
		e.log.WithURL(e.page.URL()).Warn("Back control missing, reloading portal")
		if err := e.page.Reload(ctx); err != nil {
			return
		}
	}
	ratelimit.Sleep(ctx, time.Second)
	dom.AwaitSelector(ctx, e.page, searchBoxSelector, 200*time.Millisecond, backBoxTimeout)
	e.pacer.Step(ctx)
}

func (e *Engine) recordItem(session *models.Session, cfg Config, item *models.ReplayItem, status models.ReplayStatus, msg string) {
	e.mets.RecordItem(string(status))
	if status == models.StatusListed {
		e.mets.RecordListed()
	}
	e.log.ItemEvent(session.Cursor, item.ID, string(status))

	result := models.ItemResult{Product: item.Title, Status: status, Message: msg}
	if err := e.store.AppendResult(result); err != nil {
		e.log.WithError(err).Warn("Result persistence failed")
	}

	if cfg.OnItem != nil {
		cfg.OnItem(Progress{
			Index:   session.Cursor,
			Total:   len(session.Items),
			Product: *item,
			Status:  status,
			Message: msg,
		})
	}
}

func (e *Engine) deactivate(session *models.Session) error {
	session.Active = false
	if err := e.store.SetActive(false); err != nil {
		return boterrors.NewStateError("deactivate session", err)
	}
	return nil
}
