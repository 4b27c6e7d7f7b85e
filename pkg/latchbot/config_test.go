package latchbot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// Default Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.State.Backend != "bolt" || cfg.State.Path == "" {
		t.Errorf("State = %+v, want bolt backend with a path", cfg.State)
	}
	if cfg.Output.Format != "json" || !cfg.Output.Pretty {
		t.Errorf("Output = %+v, want pretty json", cfg.Output)
	}
	if cfg.Pacing.NavsPerSecond != 1 || cfg.Pacing.Settle != 3*time.Second {
		t.Errorf("Pacing = %+v", cfg.Pacing)
	}
	if cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cfg.FailureThreshold)
	}
	if cfg.Form.ListingStatus != "ACTIVE" {
		t.Errorf("Form.ListingStatus = %q, want ACTIVE", cfg.Form.ListingStatus)
	}
}

// =============================================================================
// File Round-Trip Tests
// =============================================================================

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site_url: https://www.example-market.com
search_url: https://www.example-market.com/search?q=widgets
max_pages: 7
state:
  backend: memory
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.SiteURL != "https://www.example-market.com" {
		t.Errorf("SiteURL = %q", cfg.SiteURL)
	}
	if cfg.MaxPages != 7 {
		t.Errorf("MaxPages = %d, want 7", cfg.MaxPages)
	}
	if cfg.State.Backend != "memory" {
		t.Errorf("State.Backend = %q, want memory", cfg.State.Backend)
	}
	// Untouched fields keep their defaults.
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %q, want the default", cfg.Output.Format)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"site_url": "https://www.example-market.com", "max_pages": 3}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.SiteURL != "https://www.example-market.com" || cfg.MaxPages != 3 {
		t.Errorf("cfg = %q/%d", cfg.SiteURL, cfg.MaxPages)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("LoadFromFile() should fail for a missing file")
	}
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := DefaultConfig()
			cfg.SiteURL = "https://www.example-market.com"
			cfg.MaxPages = 12
			if err := cfg.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile() error = %v", err)
			}

			loaded, err := LoadFromFile(path)
			if err != nil {
				t.Fatalf("LoadFromFile() error = %v", err)
			}
			if loaded.SiteURL != cfg.SiteURL || loaded.MaxPages != 12 {
				t.Errorf("loaded = %q/%d", loaded.SiteURL, loaded.MaxPages)
			}
		})
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.SiteURL = "https://www.example-market.com"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with site URL", func(c *Config) {}, false},
		{"missing site URL", func(c *Config) { c.SiteURL = "" }, true},
		{"negative max pages", func(c *Config) { c.MaxPages = -1 }, true},
		{"unknown state backend", func(c *Config) { c.State.Backend = "redis" }, true},
		{"bolt without path", func(c *Config) { c.State.Path = "" }, true},
		{"memory without path", func(c *Config) { c.State.Backend = "memory"; c.State.Path = "" }, false},
		{"negative pacing rate", func(c *Config) { c.Pacing.NavsPerSecond = -1 }, true},
		{"control enabled without addr", func(c *Config) { c.Control.Enabled = true; c.Control.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// =============================================================================
// Clone Tests
// =============================================================================

func TestClone_Independent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SiteURL = "https://www.example-market.com"
	cfg.SellerHosts = []string{"seller.example-market.com"}

	clone := cfg.Clone()
	clone.SiteURL = "https://other.example"
	clone.SellerHosts[0] = "changed"

	if cfg.SiteURL != "https://www.example-market.com" {
		t.Error("mutating the clone changed the original site URL")
	}
	if cfg.SellerHosts[0] != "seller.example-market.com" {
		t.Error("mutating the clone changed the original seller hosts")
	}
}
