package model

import (
	"errors"
	"fmt"
)

// ErrServiceUnavailable indicates the completion provider is not configured.
// Callers must fall back to human-agent routing, never retry.
var ErrServiceUnavailable = errors.New("completion provider not configured")

// ErrConversationNotFound indicates a conversation id with no stored state.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnknownStep indicates a flow script reference to a non-existent step id.
// It is logged and treated as a terminal no-op, never surfaced to customers.
var ErrUnknownStep = errors.New("unknown flow step reference")

// ConfigurationError indicates an invalid persona or script mutation. The
// mutation is rejected synchronously with state unchanged.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ProviderError indicates a transient failure calling the external completion
// provider. Routers treat it identically to ErrServiceUnavailable.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsCompletionFailure reports whether err is any completion failure that maps
// to the needs-human-agent fallback.
func IsCompletionFailure(err error) bool {
	var pe *ProviderError
	return errors.Is(err, ErrServiceUnavailable) || errors.As(err, &pe)
}
