package latchbot

import (
	"fmt"
	"time"

	"github.com/shoplatch/latchbot/internal/dom"
	"github.com/shoplatch/latchbot/internal/logger"
	"github.com/shoplatch/latchbot/internal/models"
	"github.com/shoplatch/latchbot/internal/state"
)

// Option configures a Bot.
type Option func(*Bot) error

// WithConfig replaces the entire configuration.
func WithConfig(config *Config) Option {
	return func(b *Bot) error {
		if config == nil {
			return fmt.Errorf("config cannot be nil")
		}
		b.config = config
		return nil
	}
}

// WithConfigFile loads configuration from a file.
func WithConfigFile(path string) Option {
	return func(b *Bot) error {
		config, err := LoadFromFile(path)
		if err != nil {
			return err
		}
		b.config = config
		return nil
	}
}

// WithSiteURL sets the storefront base URL.
func WithSiteURL(url string) Option {
	return func(b *Bot) error {
		b.config.SiteURL = url
		return nil
	}
}

// WithSearchURL sets the starting search results URL.
func WithSearchURL(url string) Option {
	return func(b *Bot) error {
		b.config.SearchURL = url
		return nil
	}
}

// WithPortalURL sets the seller portal search page URL.
func WithPortalURL(url string) Option {
	return func(b *Bot) error {
		b.config.PortalURL = url
		return nil
	}
}

// WithMaxPages caps result pages per scraping run.
func WithMaxPages(n int) Option {
	return func(b *Bot) error {
		if n < 0 {
			n = 0
		}
		b.config.MaxPages = n
		return nil
	}
}

// WithHeadless toggles headless browser mode.
func WithHeadless(headless bool) Option {
	return func(b *Bot) error {
		b.config.Browser.Headless = headless
		return nil
	}
}

// WithControlURL attaches to an already running browser instead of
// launching one.
func WithControlURL(url string) Option {
	return func(b *Bot) error {
		b.config.Browser.ControlURL = url
		return nil
	}
}

// WithPacing sets navigation rate and settle timing.
func WithPacing(navsPerSecond float64, settle, step time.Duration) Option {
	return func(b *Bot) error {
		if navsPerSecond < 0 {
			navsPerSecond = 0
		}
		b.config.Pacing.NavsPerSecond = navsPerSecond
		b.config.Pacing.Settle = settle
		b.config.Pacing.Step = step
		return nil
	}
}

// WithStateFile persists products and sessions to a bolt file at path.
func WithStateFile(path string) Option {
	return func(b *Bot) error {
		b.config.State.Backend = "bolt"
		b.config.State.Path = path
		return nil
	}
}

// WithMemoryState keeps all state in memory. Nothing survives the
// process.
func WithMemoryState() Option {
	return func(b *Bot) error {
		b.config.State.Backend = "memory"
		b.config.State.Path = ""
		return nil
	}
}

// WithOutput sets the export format.
func WithOutput(format string, pretty bool) Option {
	return func(b *Bot) error {
		b.config.Output.Format = format
		b.config.Output.Pretty = pretty
		return nil
	}
}

// WithFormSettings sets the listing form values applied during
// latching.
func WithFormSettings(settings models.FormSettings) Option {
	return func(b *Bot) error {
		b.config.Form = settings
		b.formSet = true
		return nil
	}
}

// WithFailureThreshold halts latching after n consecutive item errors.
func WithFailureThreshold(n int) Option {
	return func(b *Bot) error {
		if n < 0 {
			n = 0
		}
		b.config.FailureThreshold = n
		return nil
	}
}

// WithSellerHosts adds hosts classified as seller portal pages.
func WithSellerHosts(hosts ...string) Option {
	return func(b *Bot) error {
		b.config.SellerHosts = append(b.config.SellerHosts, hosts...)
		return nil
	}
}

// WithHeaders sets custom headers sent on every page.
func WithHeaders(headers map[string]string) Option {
	return func(b *Bot) error {
		b.config.CustomHeaders = headers
		return nil
	}
}

// WithCookies sets cookies applied to every page.
func WithCookies(cookies map[string]string) Option {
	return func(b *Bot) error {
		b.config.Cookies = cookies
		return nil
	}
}

// WithControlServer enables the WebSocket control endpoint on addr.
func WithControlServer(addr string) Option {
	return func(b *Bot) error {
		b.config.Control.Enabled = true
		if addr != "" {
			b.config.Control.Addr = addr
		}
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(b *Bot) error {
		b.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug mode.
func WithDebug(debug bool) Option {
	return func(b *Bot) error {
		b.config.Debug = debug
		return nil
	}
}

// WithLogger replaces the default logger.
func WithLogger(log *logger.Logger) Option {
	return func(b *Bot) error {
		if log == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		b.log = log
		return nil
	}
}

// WithPage injects an existing page, bypassing browser launch. Used
// when driving an externally managed tab and in tests.
func WithPage(page dom.Page) Option {
	return func(b *Bot) error {
		if page == nil {
			return fmt.Errorf("page cannot be nil")
		}
		b.page = page
		return nil
	}
}

// WithStore injects an existing state store.
func WithStore(store state.Store) Option {
	return func(b *Bot) error {
		if store == nil {
			return fmt.Errorf("store cannot be nil")
		}
		b.store = state.NewManager(store)
		return nil
	}
}
