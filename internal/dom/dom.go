// Package dom abstracts live-page interaction so the scrape and latch
// loops can be driven by a real browser or by a fake in tests.
package dom

import (
	"context"
	"strings"
	"time"
)

// Page is a live browser page. All mutating calls target the page's
// current document.
type Page interface {
	// Navigate loads a URL and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error
	// URL returns the page's current URL.
	URL() string
	// HTML returns the current document markup.
	HTML() (string, error)
	// Has reports whether the selector matches at least one element.
	Has(selector string) bool
	// Text returns the trimmed text of the first match.
	Text(selector string) (string, bool)
	// SetValue fills an input or textarea and fires input and change
	// events so framework-bound fields pick the value up.
	SetValue(selector, value string) error
	// SelectOption picks an option value on a select element.
	SelectOption(selector, value string) error
	// Click clicks the first match.
	Click(selector string) error
	// ClickText clicks the first element matching selector whose text
	// contains the given fragment, case-insensitively.
	ClickText(selector, text string) error
	// Close releases the page.
	Close() error
}

// Chain is an ordered selector fallback list. Earlier entries are the
// current page markup, later ones cover older revisions.
type Chain []string

// First returns the first selector in the chain that matches on the page.
func (c Chain) First(p Page) (string, bool) {
	for _, sel := range c {
		if p.Has(sel) {
			return sel, true
		}
	}
	return "", false
}

// Click clicks the first matching selector in the chain.
func (c Chain) Click(p Page) bool {
	sel, ok := c.First(p)
	if !ok {
		return false
	}
	return p.Click(sel) == nil
}

// AwaitCondition polls pred at the given interval until it returns true
// or the timeout elapses. It reports whether the condition was met.
// Cancellation counts as a miss.
func AwaitCondition(ctx context.Context, pred func() bool, interval, timeout time.Duration) bool {
	if pred() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if pred() {
				return true
			}
		}
	}
}

// AwaitSelector waits for a selector to appear on the page.
func AwaitSelector(ctx context.Context, p Page, selector string, interval, timeout time.Duration) bool {
	return AwaitCondition(ctx, func() bool { return p.Has(selector) }, interval, timeout)
}

// ContainsFold reports whether s contains substr ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
