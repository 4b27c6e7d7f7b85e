// Package navigate locates and activates pagination controls on result
// pages. Detection runs against extracted HTML so the scrape loop can
// decide whether a run is complete before touching the live page.
package navigate

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shoplatch/latchbot/internal/dom"
)

// Poll cadence while waiting for the next page of results to render.
const (
	DefaultAwaitInterval = 500 * time.Millisecond
	DefaultAwaitTimeout  = 5 * time.Second
)

// Control describes how to activate the pagination element: click the
// element matched by Selector whose text matches Text.
type Control struct {
	Selector string
	Text     string
}

// FindNext reports the pagination control present in doc, if any. The
// dedicated pagination button is preferred; a looser scan over links
// and spans catches layout variants where the button class changed.
func FindNext(doc *goquery.Document) (Control, bool) {
	exact := false
	doc.Find("a.jgg0SZ").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(s.Text()), "next") {
			exact = true
			return false
		}
		return true
	})
	if exact {
		return Control{Selector: "a.jgg0SZ", Text: "next"}, true
	}

	loose := false
	doc.Find("a, span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if dom.ContainsFold(s.Text(), "next") {
			loose = true
			return false
		}
		return true
	})
	if loose {
		return Control{Selector: "a, span", Text: "next"}, true
	}
	return Control{}, false
}

// ActivateAndAwait clicks the control and waits for marker to appear on
// the refreshed page. A false return means the next page never settled
// within timeout; callers may still attempt extraction on whatever the
// page holds.
func ActivateAndAwait(ctx context.Context, p dom.Page, c Control, marker string, timeout time.Duration) bool {
	if err := p.ClickText(c.Selector, c.Text); err != nil {
		return false
	}
	if marker == "" {
		return true
	}
	return dom.AwaitSelector(ctx, p, marker, DefaultAwaitInterval, timeout)
}
