// Package browser provides headless Chrome integration via Rod. The
// bot drives a single page sequentially, so the session hands out
// configured page handles rather than pooling them.
package browser

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/shoplatch/latchbot/internal/dom"
)

// Config defines browser configuration.
type Config struct {
	Headless          bool          `json:"headless" yaml:"headless"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout"`
	UserAgent         string        `json:"user_agent" yaml:"user_agent"`
	ViewportWidth     int           `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `json:"viewport_height" yaml:"viewport_height"`
	IgnoreHTTPSErrors bool          `json:"ignore_https_errors" yaml:"ignore_https_errors"`

	// ControlURL attaches to an already running browser instead of
	// launching one. The operator's logged-in portal session lives in
	// their own browser, so latching usually attaches.
	ControlURL string `json:"control_url" yaml:"control_url"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	}
}

// Session wraps a Rod browser connection.
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	config   Config

	mu      sync.Mutex
	headers map[string]string
	cookies []*http.Cookie
}

// New launches or attaches to a browser per the configuration.
func New(config Config) (*Session, error) {
	var controlURL string
	var l *launcher.Launcher

	if config.ControlURL != "" {
		controlURL = config.ControlURL
	} else {
		l = launcher.New().Headless(config.Headless)
		if config.IgnoreHTTPSErrors {
			l = l.Set("ignore-certificate-errors", "true")
		}

		url, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	if config.Timeout > 0 {
		browser = browser.Timeout(config.Timeout)
	}

	return &Session{
		browser:  browser,
		launcher: l,
		config:   config,
		headers:  make(map[string]string),
	}, nil
}

// SetHeaders sets extra headers applied to pages created afterwards.
func (s *Session) SetHeaders(headers map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range headers {
		s.headers[k] = v
	}
}

// SetCookies sets cookies applied to pages created afterwards.
func (s *Session) SetCookies(cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, cookies...)
}

// NewPage creates a configured page handle.
func (s *Session) NewPage() (*dom.RodPage, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := s.configurePage(page); err != nil {
		page.Close()
		return nil, err
	}
	return dom.NewRodPage(page), nil
}

func (s *Session) configurePage(page *rod.Page) error {
	if s.config.ViewportWidth > 0 && s.config.ViewportHeight > 0 {
		_ = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  s.config.ViewportWidth,
			Height: s.config.ViewportHeight,
		})
	}

	if s.config.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{
			UserAgent: s.config.UserAgent,
		}.Call(page)
	}

	s.mu.Lock()
	headers := make(map[string]string, len(s.headers))
	for k, v := range s.headers {
		headers[k] = v
	}
	cookies := make([]*http.Cookie, len(s.cookies))
	copy(cookies, s.cookies)
	s.mu.Unlock()

	if len(headers) > 0 {
		networkHeaders := make(proto.NetworkHeaders)
		for k, v := range headers {
			networkHeaders[k] = gson.New(v)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: networkHeaders}).Call(page); err != nil {
			return fmt.Errorf("failed to set headers: %w", err)
		}
	}

	if len(cookies) > 0 {
		cookieParams := make([]*proto.NetworkCookieParam, 0, len(cookies))
		for _, cookie := range cookies {
			cookieParams = append(cookieParams, &proto.NetworkCookieParam{
				Name:     cookie.Name,
				Value:    cookie.Value,
				Domain:   cookie.Domain,
				Path:     cookie.Path,
				Secure:   cookie.Secure,
				HTTPOnly: cookie.HttpOnly,
			})
		}
		if err := page.SetCookies(cookieParams); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
	}

	return nil
}

// Attached reports whether the session runs against an externally
// managed browser.
func (s *Session) Attached() bool {
	return s.config.ControlURL != ""
}

// Close disconnects and, when this session launched the browser,
// terminates it. Attached browsers stay running.
func (s *Session) Close() error {
	err := s.browser.Close()
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	return err
}
