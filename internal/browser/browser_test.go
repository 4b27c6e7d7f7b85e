package browser

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Headless {
		t.Error("default should be headless")
	}
	if cfg.ViewportWidth != 1920 || cfg.ViewportHeight != 1080 {
		t.Errorf("viewport = %dx%d", cfg.ViewportWidth, cfg.ViewportHeight)
	}
	if cfg.ControlURL != "" {
		t.Error("default should launch, not attach")
	}
}

func TestSession_Attached(t *testing.T) {
	s := &Session{config: Config{ControlURL: "ws://127.0.0.1:9222/devtools"}}
	if !s.Attached() {
		t.Error("Attached() = false with a control URL")
	}

	s = &Session{config: Config{}}
	if s.Attached() {
		t.Error("Attached() = true without a control URL")
	}
}
