// Package errors provides error types and handling for the latch bot.
package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Navigation represents page navigation failures (load errors, bad URLs).
	Navigation
	// Timeout represents timeout errors (element never appeared, page never loaded).
	Timeout
	// Automation represents DOM automation failures (missing element, fill failure).
	Automation
	// Communication represents control-channel or connectivity errors.
	Communication
	// Browser represents browser/CDP errors.
	Browser
	// State represents persistence failures.
	State
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Navigation:
		return "navigation"
	case Timeout:
		return "timeout"
	case Automation:
		return "automation"
	case Communication:
		return "communication"
	case Browser:
		return "browser"
	case State:
		return "state"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
func (t ErrorType) IsRetryable() bool {
	switch t {
	case Navigation, Timeout, Communication:
		return true
	default:
		return false
	}
}

// BotError represents a categorized automation error.
type BotError struct {
	Type      ErrorType
	URL       string
	Operation string
	Message   string
	Cause     error
	Retryable bool
}

// Error implements the error interface.
func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *BotError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a new BotError.
func New(errType ErrorType, url, operation, message string, cause error) *BotError {
	return &BotError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewNavigationError creates a navigation error.
func NewNavigationError(url, operation string, cause error) *BotError {
	return New(Navigation, url, operation, "navigation failed", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *BotError {
	return New(Timeout, url, operation, "operation timed out", cause)
}

// NewAutomationError creates a DOM automation error.
func NewAutomationError(url, operation, message string) *BotError {
	err := New(Automation, url, operation, message, nil)
	err.Retryable = false
	return err
}

// NewCommunicationError creates a connectivity error.
func NewCommunicationError(operation string, cause error) *BotError {
	return New(Communication, "", operation, "could not establish connection", cause)
}

// NewBrowserError creates a browser error.
func NewBrowserError(url, operation string, cause error) *BotError {
	return New(Browser, url, operation, "browser operation failed", cause)
}

// NewStateError creates a persistence error.
func NewStateError(operation string, cause error) *BotError {
	err := New(State, "", operation, "state persistence failed", cause)
	err.Retryable = false
	return err
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *BotError {
	err := New(Cancelled, url, operation, "operation cancelled", nil)
	err.Retryable = false
	return err
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url string) *BotError {
	if err == nil {
		return nil
	}

	// Already a BotError
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr
	}

	// Check for context cancellation
	if strings.Contains(err.Error(), "context canceled") {
		return NewCancelledError(url, "automation")
	}

	// Check for timeout
	if isTimeout(err) {
		return NewTimeoutError(url, "automation", err)
	}

	// Check for connectivity errors
	if isConnectivityError(err) {
		return NewCommunicationError("automation", err)
	}

	// Default to unknown
	return New(Unknown, url, "automation", err.Error(), err)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	// Check for net.Error timeout
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Check error message
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context deadline")
}

// isConnectivityError checks if an error is network-related.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Check for syscall errors
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// Check error message
	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Retryable
	}

	// Check for temporary errors
	var tempErr interface{ Temporary() bool }
	if errors.As(err, &tempErr) && tempErr.Temporary() {
		return true
	}

	return isTimeout(err) || isConnectivityError(err)
}

// IsCancelled checks if an error is a cancellation.
func IsCancelled(err error) bool {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type == Cancelled
	}
	return false
}

// IsTimeout checks if an error is a timeout.
func IsTimeout(err error) bool {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type == Timeout
	}
	return isTimeout(err)
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var botErr *BotError
	if errors.As(err, &botErr) {
		return botErr.Type
	}
	return Unknown
}
