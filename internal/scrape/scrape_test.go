package scrape

import (
	"context"
	"testing"
	"time"

	"github.com/shoplatch/latchbot/internal/dom"
	boterrors "github.com/shoplatch/latchbot/internal/errors"
	"github.com/shoplatch/latchbot/internal/extract"
	"github.com/shoplatch/latchbot/internal/ratelimit"
)

const siteURL = "https://www.example-market.com"

func fastLoop(p dom.Page) *Loop {
	pacer := ratelimit.NewPacer(1000, time.Millisecond, time.Millisecond)
	return New(p, extract.New(siteURL), pacer, nil, nil)
}

func searchPage(ids []string, hasNext bool) *dom.FakeDoc {
	html := "<html><body>"
	for _, id := range ids {
		html += `<a class="GnxRXv" href="/x/p/itm?pid=` + id + `" title="Product ` + id + `"></a>`
	}
	texts := map[string]string{}
	if hasNext {
		html += `<a class="jgg0SZ">Next</a>`
		texts["a.jgg0SZ"] = "Next"
	}
	html += "</body></html>"
	return &dom.FakeDoc{
		Markup:  html,
		Texts:   texts,
		Present: map[string]bool{"a.GnxRXv": len(ids) > 0},
	}
}

// =============================================================================
// Run Tests
// =============================================================================

func TestRun_SinglePage(t *testing.T) {
	p := dom.NewFakePage()
	p.AddDoc(siteURL+"/search?q=x", searchPage([]string{"ITM1", "ITM2"}, false))
	p.SetCurrent(siteURL + "/search?q=x")

	res, err := fastLoop(p).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %v, want completed", res.Outcome)
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want 1", res.Pages)
	}
	if len(res.Products) != 2 {
		t.Errorf("Products = %d, want 2", len(res.Products))
	}
}

func TestRun_EmptyFirstPageCompletes(t *testing.T) {
	p := dom.NewFakePage()
	// No products, but a pagination control that must not be followed.
	p.AddDoc(siteURL+"/search?q=x", searchPage(nil, true))
	p.SetCurrent(siteURL + "/search?q=x")

	res, err := fastLoop(p).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %v, want completed", res.Outcome)
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want only the empty page", res.Pages)
	}
	if len(res.Products) != 0 {
		t.Errorf("Products = %d, want none", len(res.Products))
	}
}

func TestRun_PaginatesAndDedupes(t *testing.T) {
	p := dom.NewFakePage()
	page1 := searchPage([]string{"ITM1", "ITM2"}, true)
	// Page two repeats ITM2 and adds a new product.
	page2 := searchPage([]string{"ITM2", "ITM3"}, false)
	p.AddDoc(siteURL+"/search?q=x&page=1", page1)
	p.AddDoc(siteURL+"/search?q=x&page=2", page2)
	p.SetCurrent(siteURL + "/search?q=x&page=1")
	page1.OnClick = map[string]func(*dom.FakePage){
		"a.jgg0SZ": func(fp *dom.FakePage) { fp.SetCurrent(siteURL + "/search?q=x&page=2") },
	}

	var progress []Progress
	res, err := fastLoop(p).Run(context.Background(), Config{
		OnPage: func(pr Progress) { progress = append(progress, pr) },
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Pages != 2 {
		t.Errorf("Pages = %d, want 2", res.Pages)
	}
	if len(res.Products) != 3 {
		t.Fatalf("Products = %d, want 3 after dedup", len(res.Products))
	}
	if res.Products[2].ID != "ITM3" {
		t.Errorf("Products[2].ID = %q, want ITM3", res.Products[2].ID)
	}

	if len(progress) != 2 {
		t.Fatalf("progress events = %d, want 2", len(progress))
	}
	if len(progress[1].NewItems) != 1 {
		t.Errorf("page 2 NewItems = %d, want 1 after dedup", len(progress[1].NewItems))
	}
	if progress[1].Total != 3 {
		t.Errorf("page 2 Total = %d, want 3", progress[1].Total)
	}
}

func TestRun_MaxPages(t *testing.T) {
	p := dom.NewFakePage()
	page1 := searchPage([]string{"ITM1"}, true)
	p.AddDoc(siteURL+"/search", page1)
	p.SetCurrent(siteURL + "/search")

	res, err := fastLoop(p).Run(context.Background(), Config{MaxPages: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %v, want completed", res.Outcome)
	}
	if res.Pages != 1 {
		t.Errorf("Pages = %d, want 1, pagination must not run", res.Pages)
	}
	if len(page1.Clicks) != 0 {
		t.Errorf("Clicks = %v, want none", page1.Clicks)
	}
}

func TestRun_StopTakesEffectNextIteration(t *testing.T) {
	p := dom.NewFakePage()
	page1 := searchPage([]string{"ITM1"}, true)
	page2 := searchPage([]string{"ITM2"}, true)
	p.AddDoc(siteURL+"/1", page1)
	p.AddDoc(siteURL+"/2", page2)
	p.SetCurrent(siteURL + "/1")
	page1.OnClick = map[string]func(*dom.FakePage){
		"a.jgg0SZ": func(fp *dom.FakePage) { fp.SetCurrent(siteURL + "/2") },
	}

	loop := fastLoop(p)
	res, err := loop.Run(context.Background(), Config{
		OnPage: func(pr Progress) {
			if pr.Page == 1 {
				loop.Stop()
			}
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeStopped {
		t.Errorf("Outcome = %v, want stopped", res.Outcome)
	}
	// The first page still lands before the stop is honored.
	if len(res.Products) != 1 {
		t.Errorf("Products = %d, want 1", len(res.Products))
	}
}

func TestRun_Cancelled(t *testing.T) {
	p := dom.NewFakePage()
	p.AddDoc(siteURL+"/search", searchPage([]string{"ITM1"}, false))
	p.SetCurrent(siteURL + "/search")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastLoop(p).Run(ctx, Config{})
	if err == nil {
		t.Fatal("Run() error = nil, want cancelled")
	}
	if !boterrors.IsCancelled(err) {
		t.Errorf("error = %v, want a cancelled category", err)
	}
}

func TestRun_EmptyLaterPageCompletes(t *testing.T) {
	p := dom.NewFakePage()
	page1 := searchPage([]string{"ITM1"}, true)
	page2 := searchPage(nil, true)
	p.AddDoc(siteURL+"/1", page1)
	p.AddDoc(siteURL+"/2", page2)
	p.SetCurrent(siteURL + "/1")
	page1.OnClick = map[string]func(*dom.FakePage){
		"a.jgg0SZ": func(fp *dom.FakePage) { fp.SetCurrent(siteURL + "/2") },
	}

	res, err := fastLoop(p).Run(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Outcome != OutcomeCompleted {
		t.Errorf("Outcome = %v, want completed on an empty page", res.Outcome)
	}
	if len(res.Products) != 1 {
		t.Errorf("Products = %d, want 1", len(res.Products))
	}
}

func TestRun_Advanced(t *testing.T) {
	html := `<html><body>
	  <div data-id="ITMA">
	    <a class="pIpigb" title="Alpha"></a>
	    <div class="hZ3P6w">₹500</div>
	    <a class="GnxRXv" href="/a/p/itm?pid=ITMA"></a>
	  </div>
	</body></html>`
	p := dom.NewFakePage()
	p.AddDoc(siteURL+"/search", &dom.FakeDoc{Markup: html})
	p.SetCurrent(siteURL + "/search")

	res, err := fastLoop(p).Run(context.Background(), Config{Advanced: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Products) != 1 {
		t.Fatalf("Products = %d, want 1", len(res.Products))
	}
	if res.Products[0].Price != "₹500" {
		t.Errorf("Price = %q, want ₹500", res.Products[0].Price)
	}
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	p := dom.NewFakePage()
	p.AddDoc(siteURL+"/search", searchPage([]string{"ITM1"}, false))
	p.SetCurrent(siteURL + "/search")

	loop := fastLoop(p)
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		loop.Run(context.Background(), Config{
			OnPage: func(Progress) {
				close(started)
				<-release
			},
		})
	}()
	<-started

	if _, err := loop.Run(context.Background(), Config{}); err == nil {
		t.Error("second Run() should be rejected while one is active")
	}
	close(release)
}

// =============================================================================
// Outcome Tests
// =============================================================================

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{OutcomeCompleted, "completed"},
		{OutcomeStopped, "stopped"},
		{OutcomeCancelled, "cancelled"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
