package latchbot

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shoplatch/latchbot/internal/browser"
	"github.com/shoplatch/latchbot/internal/models"
)

// Config holds all bot configuration.
type Config struct {
	// SiteURL is the storefront base URL, used to absolutize relative
	// product links.
	SiteURL string `json:"site_url" yaml:"site_url"`

	// SearchURL is the result page a scraping run starts from.
	SearchURL string `json:"search_url" yaml:"search_url"`

	// PortalURL is the seller portal search page latching runs against.
	PortalURL string `json:"portal_url" yaml:"portal_url"`

	// SellerHosts classify URLs as portal pages. The PortalURL host is
	// always included.
	SellerHosts []string `json:"seller_hosts" yaml:"seller_hosts"`

	// MaxPages caps result pages per scraping run. Zero means no cap.
	MaxPages int `json:"max_pages" yaml:"max_pages"`

	// Timeout bounds individual browser operations.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Browser configuration.
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Pacing between page interactions.
	Pacing PacingConfig `json:"pacing" yaml:"pacing"`

	// Output configuration.
	Output OutputConfig `json:"output" yaml:"output"`

	// State persistence.
	State StateConfig `json:"state" yaml:"state"`

	// Control server.
	Control ControlConfig `json:"control" yaml:"control"`

	// Form holds the listing form values applied during latching.
	Form models.FormSettings `json:"form" yaml:"form"`

	// FailureThreshold halts a latching run after this many
	// consecutive item errors. Zero disables the guard.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// Custom headers included on every page.
	CustomHeaders map[string]string `json:"custom_headers" yaml:"custom_headers"`

	// Cookies included on every page, typically the portal login
	// session.
	Cookies map[string]string `json:"cookies" yaml:"cookies"`

	// Verbose logging.
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode.
	Debug bool `json:"debug" yaml:"debug"`
}

// PacingConfig controls how the bot spaces browser actions.
type PacingConfig struct {
	NavsPerSecond float64       `json:"navs_per_second" yaml:"navs_per_second"`
	Settle        time.Duration `json:"settle" yaml:"settle"`
	Step          time.Duration `json:"step" yaml:"step"`
}

// OutputConfig controls export format.
type OutputConfig struct {
	Format string `json:"format" yaml:"format"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Path   string `json:"path" yaml:"path"`
}

// StateConfig controls persistence of products, settings and sessions.
type StateConfig struct {
	// Backend is "bolt", "file" or "memory".
	Backend string `json:"backend" yaml:"backend"`
	Path    string `json:"path" yaml:"path"`
}

// ControlConfig controls the WebSocket control endpoint.
type ControlConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Browser: browser.DefaultConfig(),
		Pacing: PacingConfig{
			NavsPerSecond: 1,
			Settle:        3 * time.Second,
			Step:          500 * time.Millisecond,
		},
		Output: OutputConfig{
			Format: "json",
			Pretty: true,
		},
		State: StateConfig{
			Backend: "bolt",
			Path:    "latchbot.db",
		},
		Control: ControlConfig{
			Addr: "127.0.0.1:8844",
		},
		Form:             models.DefaultFormSettings(),
		FailureThreshold: 5,
	}
}

// LoadFromFile loads configuration from a file (YAML or JSON).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if len(path) > 5 && path[len(path)-5:] == ".json" {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SiteURL == "" {
		return fmt.Errorf("site URL is required")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages must not be negative")
	}
	switch c.State.Backend {
	case "bolt", "file", "memory":
	default:
		return fmt.Errorf("unknown state backend: %s", c.State.Backend)
	}
	if c.State.Backend != "memory" && c.State.Path == "" {
		return fmt.Errorf("state path is required for the %s backend", c.State.Backend)
	}
	if c.Pacing.NavsPerSecond < 0 {
		return fmt.Errorf("pacing rate must not be negative")
	}
	if c.Control.Enabled && c.Control.Addr == "" {
		return fmt.Errorf("control address is required when the control server is enabled")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}
