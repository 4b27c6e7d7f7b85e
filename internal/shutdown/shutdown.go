// Package shutdown coordinates teardown on interrupt. A latch session
// interrupted mid-run must land its state store write and release the
// browser before the process exits, so cleanup runs as named callbacks
// in LIFO order under a deadline.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Callback is a named piece of teardown work.
type Callback func(ctx context.Context) error

// Handler manages graceful shutdown.
type Handler struct {
	mu    sync.Mutex
	names []string
	funcs []Callback

	shuttingDown atomic.Bool
	done         chan struct{}
	timeout      time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	sigChan chan os.Signal
	onDone  func(elapsed time.Duration, errs []error)
}

// Config holds shutdown configuration.
type Config struct {
	Timeout time.Duration
	Signals []os.Signal
	OnDone  func(elapsed time.Duration, errs []error)
}

// New creates a handler listening for the configured signals.
func New(cfg Config) *Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.Signals) == 0 {
		cfg.Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		done:    make(chan struct{}),
		timeout: cfg.Timeout,
		ctx:     ctx,
		cancel:  cancel,
		sigChan: make(chan os.Signal, 1),
		onDone:  cfg.OnDone,
	}
	signal.Notify(h.sigChan, cfg.Signals...)
	return h
}

// NewDefault creates a handler with default configuration.
func NewDefault() *Handler {
	return New(Config{})
}

// Register adds a named teardown callback. Callbacks run in reverse
// registration order so dependents release before their dependencies.
func (h *Handler) Register(name string, fn Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.names = append(h.names, name)
	h.funcs = append(h.funcs, fn)
}

// RegisterFunc adds a callback that cannot fail.
func (h *Handler) RegisterFunc(name string, fn func()) {
	h.Register(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Context is cancelled the moment shutdown begins. Long-running
// operations take it as their parent.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// IsShuttingDown reports whether shutdown has started.
func (h *Handler) IsShuttingDown() bool {
	return h.shuttingDown.Load()
}

// Done is closed when all callbacks have finished.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until a signal arrives, then runs shutdown.
func (h *Handler) Wait() {
	select {
	case <-h.sigChan:
		h.Shutdown()
	case <-h.ctx.Done():
	}
}

// Trigger injects a shutdown signal programmatically.
func (h *Handler) Trigger() {
	select {
	case h.sigChan <- syscall.SIGTERM:
	default:
	}
}

// Shutdown cancels the context and runs callbacks LIFO under the
// configured deadline. Safe to call more than once.
func (h *Handler) Shutdown() {
	if !h.shuttingDown.CompareAndSwap(false, true) {
		return
	}

	start := time.Now()
	h.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	funcs := make([]Callback, len(h.funcs))
	names := make([]string, len(h.names))
	copy(funcs, h.funcs)
	copy(names, h.names)
	h.mu.Unlock()

	var errs []error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := h.run(ctx, names[i], funcs[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if h.onDone != nil {
		h.onDone(time.Since(start), errs)
	}
	close(h.done)
}

func (h *Handler) run(ctx context.Context, name string, fn Callback) error {
	result := make(chan error, 1)
	go func() {
		result <- fn(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return &TimeoutError{CallbackName: name}
	}
}

// TimeoutError is returned when a callback outlives the deadline.
type TimeoutError struct {
	CallbackName string
}

func (e *TimeoutError) Error() string {
	return "shutdown callback timed out: " + e.CallbackName
}
