// Package ratelimit spaces browser actions out over time. Result pages
// render asynchronously after a click, and the portal throttles
// accounts that hammer it, so every navigation and interaction goes
// through a Pacer.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default pacing, tuned to how long the target site takes to render a
// result page after a pagination or search click.
const (
	DefaultSettle = 3 * time.Second
	DefaultStep   = 500 * time.Millisecond
)

// Pacer throttles navigations globally and provides the settle and
// step waits used between page interactions. All waits honor context
// cancellation.
type Pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	settle  time.Duration
	step    time.Duration

	baseSettle time.Duration
	maxSettle  time.Duration
}

// NewPacer builds a pacer allowing navsPerSecond page loads with the
// given settle and step waits. Zero durations fall back to defaults.
func NewPacer(navsPerSecond float64, settle, step time.Duration) *Pacer {
	if settle <= 0 {
		settle = DefaultSettle
	}
	if step <= 0 {
		step = DefaultStep
	}
	if navsPerSecond <= 0 {
		navsPerSecond = 1
	}
	return &Pacer{
		limiter:    rate.NewLimiter(rate.Limit(navsPerSecond), 1),
		settle:     settle,
		step:       step,
		baseSettle: settle,
		maxSettle:  settle * 8,
	}
}

// WaitNav blocks until the next page load is allowed.
func (p *Pacer) WaitNav(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Settle pauses long enough for a freshly mutated page to render.
func (p *Pacer) Settle(ctx context.Context) error {
	p.mu.Lock()
	d := p.settle
	p.mu.Unlock()
	return Sleep(ctx, d)
}

// Step pauses between small interactions on an already loaded page.
func (p *Pacer) Step(ctx context.Context) error {
	p.mu.Lock()
	d := p.step
	p.mu.Unlock()
	return Sleep(ctx, d)
}

// Backoff stretches the settle wait after a failed page interaction.
// Repeated calls double it up to a cap.
func (p *Pacer) Backoff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle *= 2
	if p.settle > p.maxSettle {
		p.settle = p.maxSettle
	}
}

// Recover restores the settle wait after a successful interaction.
func (p *Pacer) Recover() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settle = p.baseSettle
}

// SettleDuration returns the current settle wait.
func (p *Pacer) SettleDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settle
}

// Sleep blocks for d or until ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
