package errors

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ErrorType Tests
// =============================================================================

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    string
	}{
		{Unknown, "unknown"},
		{Navigation, "navigation"},
		{Timeout, "timeout"},
		{Automation, "automation"},
		{Communication, "communication"},
		{Browser, "browser"},
		{State, "state"},
		{Cancelled, "cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.errType.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorType_IsRetryable(t *testing.T) {
	tests := []struct {
		errType   ErrorType
		retryable bool
	}{
		{Navigation, true},
		{Timeout, true},
		{Communication, true},
		{Automation, false},
		{Browser, false},
		{State, false},
		{Cancelled, false},
		{Unknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.errType.String(), func(t *testing.T) {
			if got := tt.errType.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

// =============================================================================
// BotError Tests
// =============================================================================

func TestBotError_Error(t *testing.T) {
	err := New(Navigation, "https://example.com", "navigate", "page load failed", nil)

	errStr := err.Error()
	if errStr == "" {
		t.Error("Error() should not return empty string")
	}
	for _, want := range []string{"navigation", "navigate", "https://example.com", "page load failed"} {
		if !strings.Contains(errStr, want) {
			t.Errorf("Error() = %s, should contain %q", errStr, want)
		}
	}
}

func TestBotError_Error_WithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := New(Navigation, "https://example.com", "navigate", "page load failed", cause)

	if !strings.Contains(err.Error(), "underlying error") {
		t.Errorf("Error() = %s, should contain cause", err.Error())
	}
}

func TestBotError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(Browser, "https://example.com", "connect", "failed", cause)

	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestBotError_Is(t *testing.T) {
	err1 := New(Navigation, "https://example.com", "navigate", "failed", nil)
	err2 := New(Navigation, "https://other.com", "reload", "timeout", nil)
	err3 := New(Timeout, "https://example.com", "navigate", "timeout", nil)

	if !errors.Is(err1, err2) {
		t.Error("Errors with same type should match")
	}
	if errors.Is(err1, err3) {
		t.Error("Errors with different types should not match")
	}
}

// =============================================================================
// Error Constructor Tests
// =============================================================================

func TestNewNavigationError(t *testing.T) {
	err := NewNavigationError("https://example.com", "navigate", nil)

	if err.Type != Navigation {
		t.Errorf("Type = %v, want Navigation", err.Type)
	}
	if !err.Retryable {
		t.Error("Navigation errors should be retryable")
	}
}

func TestNewTimeoutError(t *testing.T) {
	err := NewTimeoutError("https://example.com", "await_element", nil)

	if err.Type != Timeout {
		t.Errorf("Type = %v, want Timeout", err.Type)
	}
	if !err.Retryable {
		t.Error("Timeout errors should be retryable")
	}
}

func TestNewAutomationError(t *testing.T) {
	err := NewAutomationError("https://example.com", "fill_form", "submit button not found")

	if err.Type != Automation {
		t.Errorf("Type = %v, want Automation", err.Type)
	}
	if err.Retryable {
		t.Error("Automation errors should not be retryable")
	}
}

func TestNewCommunicationError(t *testing.T) {
	err := NewCommunicationError("control", errors.New("dial tcp: refused"))

	if err.Type != Communication {
		t.Errorf("Type = %v, want Communication", err.Type)
	}
	if !err.Retryable {
		t.Error("Communication errors should be retryable")
	}
}

func TestNewBrowserError(t *testing.T) {
	err := NewBrowserError("https://example.com", "navigate", nil)

	if err.Type != Browser {
		t.Errorf("Type = %v, want Browser", err.Type)
	}
}

func TestNewStateError(t *testing.T) {
	err := NewStateError("save_session", errors.New("disk full"))

	if err.Type != State {
		t.Errorf("Type = %v, want State", err.Type)
	}
	if err.Retryable {
		t.Error("State errors should not be retryable")
	}
}

func TestNewCancelledError(t *testing.T) {
	err := NewCancelledError("https://example.com", "scrape")

	if err.Type != Cancelled {
		t.Errorf("Type = %v, want Cancelled", err.Type)
	}
	if err.Retryable {
		t.Error("Cancelled errors should not be retryable")
	}
}

// =============================================================================
// Categorize Tests
// =============================================================================

func TestCategorize_BotError(t *testing.T) {
	original := NewNavigationError("https://example.com", "navigate", nil)
	categorized := Categorize(original, "https://example.com")

	if categorized != original {
		t.Error("Should return same BotError")
	}
}

func TestCategorize_Nil(t *testing.T) {
	categorized := Categorize(nil, "https://example.com")

	if categorized != nil {
		t.Error("Should return nil for nil error")
	}
}

func TestCategorize_ContextCanceled(t *testing.T) {
	err := errors.New("context canceled")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Cancelled {
		t.Errorf("Type = %v, want Cancelled", categorized.Type)
	}
}

func TestCategorize_Timeout(t *testing.T) {
	err := errors.New("context deadline exceeded")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Timeout {
		t.Errorf("Type = %v, want Timeout", categorized.Type)
	}
}

func TestCategorize_Connectivity(t *testing.T) {
	err := errors.New("dial tcp 127.0.0.1:9222: connection refused")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Communication {
		t.Errorf("Type = %v, want Communication", categorized.Type)
	}
}

func TestCategorize_Unknown(t *testing.T) {
	err := errors.New("some random error")
	categorized := Categorize(err, "https://example.com")

	if categorized.Type != Unknown {
		t.Errorf("Type = %v, want Unknown", categorized.Type)
	}
}

// =============================================================================
// Helper Function Tests
// =============================================================================

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"navigation error", NewNavigationError("url", "op", nil), true},
		{"timeout error", NewTimeoutError("url", "op", nil), true},
		{"automation error", NewAutomationError("url", "op", "missing"), false},
		{"cancelled", NewCancelledError("url", "op"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestIsCancelled(t *testing.T) {
	cancelledErr := NewCancelledError("url", "op")
	navErr := NewNavigationError("url", "op", nil)

	if !IsCancelled(cancelledErr) {
		t.Error("Should identify cancelled error")
	}
	if IsCancelled(navErr) {
		t.Error("Should not identify navigation error as cancelled")
	}
	if IsCancelled(nil) {
		t.Error("Should return false for nil")
	}
}

func TestIsTimeout(t *testing.T) {
	timeoutErr := NewTimeoutError("url", "op", nil)
	navErr := NewNavigationError("url", "op", nil)

	if !IsTimeout(timeoutErr) {
		t.Error("Should identify timeout error")
	}
	if IsTimeout(navErr) {
		t.Error("Should not identify navigation error as timeout")
	}
}

func TestGetErrorType(t *testing.T) {
	err := NewTimeoutError("url", "op", nil)

	if errType := GetErrorType(err); errType != Timeout {
		t.Errorf("GetErrorType() = %v, want Timeout", errType)
	}
	if errType := GetErrorType(nil); errType != Unknown {
		t.Errorf("GetErrorType(nil) = %v, want Unknown", errType)
	}
}

// =============================================================================
// Retry Tests
// =============================================================================

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 500*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 500ms", cfg.InitialDelay)
	}
	if len(cfg.RetryableTypes) == 0 {
		t.Error("RetryableTypes should not be empty")
	}
}

func TestRetrier_Do_Success(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		return nil
	})

	if !result.Success {
		t.Error("Should succeed")
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if calls != 1 {
		t.Errorf("Function called %d times, want 1", calls)
	}
}

func TestRetrier_Do_RetryOnError(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     2,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Navigation},
	})

	calls := 0
	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewNavigationError("url", "op", nil)
		}
		return nil
	})

	if !result.Success {
		t.Error("Should succeed after retries")
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_MaxRetriesExceeded(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     2,
		InitialDelay:   1 * time.Millisecond,
		MaxDelay:       10 * time.Millisecond,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Navigation},
	})

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		return NewNavigationError("url", "op", nil)
	})

	if result.Success {
		t.Error("Should fail after max retries")
	}
	if result.Attempts != 3 { // 1 initial + 2 retries
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
	if result.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestRetrier_Do_NoRetryForNonRetryable(t *testing.T) {
	r := NewDefaultRetrier()
	calls := 0

	result := r.Do(context.Background(), "test", "url", func(ctx context.Context) error {
		calls++
		return NewAutomationError("url", "op", "missing element") // Not retryable
	})

	if result.Success {
		t.Error("Should fail")
	}
	if calls != 1 {
		t.Errorf("Function called %d times, want 1 (no retry)", calls)
	}
}

func TestRetrier_Do_ContextCancellation(t *testing.T) {
	r := NewRetrier(RetryConfig{
		MaxRetries:     5,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		RetryableTypes: []ErrorType{Navigation},
	})

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	result := r.Do(ctx, "test", "url", func(ctx context.Context) error {
		return NewNavigationError("url", "op", nil)
	})

	if result.Success {
		t.Error("Should fail on cancellation")
	}
	if result.LastError == nil {
		t.Error("LastError should be set")
	}
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt    int
		initial    time.Duration
		max        time.Duration
		multiplier float64
		want       time.Duration
	}{
		{0, time.Second, 10 * time.Second, 2.0, time.Second},
		{1, time.Second, 10 * time.Second, 2.0, time.Second},
		{2, time.Second, 10 * time.Second, 2.0, 2 * time.Second},
		{3, time.Second, 10 * time.Second, 2.0, 4 * time.Second},
		{4, time.Second, 10 * time.Second, 2.0, 8 * time.Second},
		{5, time.Second, 10 * time.Second, 2.0, 10 * time.Second}, // Capped at max
	}

	for _, tt := range tests {
		got := BackoffDuration(tt.attempt, tt.initial, tt.max, tt.multiplier)
		if got != tt.want {
			t.Errorf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// =============================================================================
// FailureGuard Tests
// =============================================================================

func TestFailureGuard_TripsAtThreshold(t *testing.T) {
	g := NewFailureGuard(3)

	if g.RecordFailure() {
		t.Error("Should not trip after 1 failure")
	}
	if g.RecordFailure() {
		t.Error("Should not trip after 2 failures")
	}
	if !g.RecordFailure() {
		t.Error("Should trip after 3 failures")
	}
	if !g.Tripped() {
		t.Error("Tripped() should report true")
	}
}

func TestFailureGuard_SuccessResetsCount(t *testing.T) {
	g := NewFailureGuard(3)

	g.RecordFailure()
	g.RecordFailure()
	g.RecordSuccess()
	g.RecordFailure()
	g.RecordFailure()

	if g.Tripped() {
		t.Error("Should not trip when successes interleave")
	}
	if g.Consecutive() != 2 {
		t.Errorf("Consecutive() = %d, want 2", g.Consecutive())
	}
}

func TestFailureGuard_ZeroThresholdDisables(t *testing.T) {
	g := NewFailureGuard(0)

	for i := 0; i < 100; i++ {
		if g.RecordFailure() {
			t.Fatal("Disabled guard should never trip")
		}
	}
}

func TestFailureGuard_OnTrip(t *testing.T) {
	g := NewFailureGuard(2)
	var got int
	g.OnTrip(func(consecutive int) { got = consecutive })

	g.RecordFailure()
	g.RecordFailure()

	if got != 2 {
		t.Errorf("OnTrip consecutive = %d, want 2", got)
	}
}

func TestFailureGuard_Reset(t *testing.T) {
	g := NewFailureGuard(1)
	g.RecordFailure()

	g.Reset()

	if g.Tripped() {
		t.Error("Should not be tripped after reset")
	}
	if g.Consecutive() != 0 {
		t.Errorf("Consecutive() = %d, want 0", g.Consecutive())
	}
}

// Mock net.Error for testing
type mockNetError struct {
	timeout   bool
	temporary bool
}

func (e *mockNetError) Error() string   { return "mock net error" }
func (e *mockNetError) Timeout() bool   { return e.timeout }
func (e *mockNetError) Temporary() bool { return e.temporary }

var _ net.Error = (*mockNetError)(nil)

func TestIsRetryable_NetError(t *testing.T) {
	if !IsRetryable(&mockNetError{timeout: true}) {
		t.Error("net.Error timeout should be retryable")
	}
}
