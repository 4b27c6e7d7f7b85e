package dom

import (
	"context"
	"errors"
	"sync"
)

// FakePage is an in-memory Page used by tests. Documents are keyed by
// URL; each document carries selector presence, text, and click hooks.
type FakePage struct {
	mu sync.Mutex

	docs    map[string]*FakeDoc
	current string

	NavigateErr error
	ReloadErr   error
	Closed      bool

	// Navigations records every Navigate and Reload target in order.
	Navigations []string
}

// FakeDoc is a single fake document.
type FakeDoc struct {
	Markup string
	// Texts maps selector to element text. A present key also counts as
	// a selector match.
	Texts map[string]string
	// Present lists selectors that match without any text.
	Present map[string]bool
	// Values records SetValue and SelectOption calls by selector.
	Values map[string]string
	// Selections records SelectOption calls in order, separate from the
	// combined Values map.
	Selections []string
	// Clicks records Click and ClickText calls in order.
	Clicks []string
	// OnClick, when set for a selector, runs after the click records.
	OnClick map[string]func(p *FakePage)
	// OnSetValue, when set for a selector, runs after the value records.
	OnSetValue map[string]func(p *FakePage)
}

// NewFakePage creates an empty fake page.
func NewFakePage() *FakePage {
	return &FakePage{docs: make(map[string]*FakeDoc)}
}

// AddDoc registers a document under a URL.
func (p *FakePage) AddDoc(url string, doc *FakeDoc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if doc.Texts == nil {
		doc.Texts = make(map[string]string)
	}
	if doc.Present == nil {
		doc.Present = make(map[string]bool)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]string)
	}
	if doc.OnClick == nil {
		doc.OnClick = make(map[string]func(p *FakePage))
	}
	if doc.OnSetValue == nil {
		doc.OnSetValue = make(map[string]func(p *FakePage))
	}
	p.docs[url] = doc
	if p.current == "" {
		p.current = url
	}
}

// Doc returns the current document.
func (p *FakePage) Doc() *FakeDoc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.docs[p.current]
}

// SetCurrent moves the page to a URL without recording a navigation.
func (p *FakePage) SetCurrent(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = url
}

// Navigate implements Page.
func (p *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.current = url
	return nil
}

// Reload implements Page.
func (p *FakePage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, "reload:"+p.current)
	return p.ReloadErr
}

// URL implements Page.
func (p *FakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// HTML implements Page.
func (p *FakePage) HTML() (string, error) {
	doc := p.Doc()
	if doc == nil {
		return "", errors.New("no document")
	}
	return doc.Markup, nil
}

// Has implements Page.
func (p *FakePage) Has(selector string) bool {
	doc := p.Doc()
	if doc == nil {
		return false
	}
	if doc.Present[selector] {
		return true
	}
	_, ok := doc.Texts[selector]
	return ok
}

// Text implements Page.
func (p *FakePage) Text(selector string) (string, bool) {
	doc := p.Doc()
	if doc == nil {
		return "", false
	}
	text, ok := doc.Texts[selector]
	return text, ok
}

// SetValue implements Page.
func (p *FakePage) SetValue(selector, value string) error {
	doc := p.Doc()
	if doc == nil || !p.Has(selector) {
		return errors.New("no element: " + selector)
	}
	p.mu.Lock()
	doc.Values[selector] = value
	hook := doc.OnSetValue[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

// SelectOption implements Page.
func (p *FakePage) SelectOption(selector, value string) error {
	if err := p.SetValue(selector, value); err != nil {
		return err
	}
	doc := p.Doc()
	p.mu.Lock()
	doc.Selections = append(doc.Selections, selector)
	p.mu.Unlock()
	return nil
}

// Click implements Page.
func (p *FakePage) Click(selector string) error {
	doc := p.Doc()
	if doc == nil || !p.Has(selector) {
		return errors.New("no element: " + selector)
	}
	p.mu.Lock()
	doc.Clicks = append(doc.Clicks, selector)
	hook := doc.OnClick[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

// ClickText implements Page. Text matching is case-insensitive contains,
// mirroring the real implementation.
func (p *FakePage) ClickText(selector, text string) error {
	doc := p.Doc()
	if doc == nil {
		return errors.New("no document")
	}
	elText, ok := doc.Texts[selector]
	if !ok || !ContainsFold(elText, text) {
		return errors.New("no element with text: " + text)
	}
	p.mu.Lock()
	doc.Clicks = append(doc.Clicks, selector)
	hook := doc.OnClick[selector]
	p.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return nil
}

// Close implements Page.
func (p *FakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

var _ Page = (*FakePage)(nil)
