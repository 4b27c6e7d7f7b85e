package dom

import (
	"context"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage drives a CDP-attached page.
type RodPage struct {
	page *rod.Page
}

// NewRodPage wraps a rod page.
func NewRodPage(page *rod.Page) *RodPage {
	return &RodPage{page: page}
}

// Rod returns the underlying rod page.
func (p *RodPage) Rod() *rod.Page {
	return p.page
}

// Navigate loads a URL and waits for the load event.
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return err
	}
	return page.WaitLoad()
}

// Reload reloads the current document and waits for the load event.
func (p *RodPage) Reload(ctx context.Context) error {
	page := p.page.Context(ctx)
	if err := page.Reload(); err != nil {
		return err
	}
	return page.WaitLoad()
}

// URL returns the page's current URL.
func (p *RodPage) URL() string {
	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// HTML returns the current document markup.
func (p *RodPage) HTML() (string, error) {
	return p.page.HTML()
}

// Has reports whether the selector matches at least one element.
func (p *RodPage) Has(selector string) bool {
	has, _, err := p.page.Has(selector)
	return err == nil && has
}

// Text returns the trimmed text of the first match.
func (p *RodPage) Text(selector string) (string, bool) {
	has, el, err := p.page.Has(selector)
	if err != nil || !has || el == nil {
		return "", false
	}
	text, err := el.Text()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(text), true
}

// element resolves a selector without waiting for it to appear.
func (p *RodPage) element(selector string) (*rod.Element, error) {
	return p.page.Sleeper(rod.NotFoundSleeper).Element(selector)
}

// SetValue fills an input or textarea through the DOM so that
// framework-bound fields observe input and change events.
func (p *RodPage) SetValue(selector, value string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`v => {
		this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, value)
	return err
}

// SelectOption picks an option value on a select element.
func (p *RodPage) SelectOption(selector, value string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	_, err = el.Eval(`v => {
		this.value = v;
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, value)
	return err
}

// Click clicks the first match.
func (p *RodPage) Click(selector string) error {
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// ClickText clicks the first element matching selector whose text
// contains the given fragment, case-insensitively.
func (p *RodPage) ClickText(selector, text string) error {
	els, err := p.page.Elements(selector)
	if err != nil {
		return err
	}
	for _, el := range els {
		t, err := el.Text()
		if err != nil {
			continue
		}
		if ContainsFold(t, text) {
			return el.Click(proto.InputMouseButtonLeft, 1)
		}
	}
	return &rod.ErrElementNotFound{}
}

// Close releases the page.
func (p *RodPage) Close() error {
	return p.page.Close()
}

var _ Page = (*RodPage)(nil)
