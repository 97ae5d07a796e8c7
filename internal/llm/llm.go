// Package llm abstracts completion providers behind a single capability:
// complete a prompt, return raw text, or fail with a typed provider error.
// The extraction pipeline assumes nothing else about a provider.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the closed provider failure taxonomy.
type ErrorKind string

const (
	ErrAuth        ErrorKind = "auth"
	ErrTimeout     ErrorKind = "timeout"
	ErrNetwork     ErrorKind = "network"
	ErrRateLimit   ErrorKind = "rate_limit"
	ErrBadResponse ErrorKind = "bad_response"
	ErrBadSchema   ErrorKind = "bad_schema"
)

// ProviderError is the standardized provider failure, created at the point
// of origin so callers never reconstruct the kind from message text.
type ProviderError struct {
	Provider  string
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s (%s, retryable=%t): %s", e.Provider, e.Kind, e.Retryable, e.Message)
}

// Provider is the interface for LLM backends.
type Provider interface {
	// Name identifies the backend (e.g. "openai"); Model names the model in
	// use. Both participate in cache keys.
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

// InstructionRepairer marks providers that follow corrective instructions
// well enough to be worth a validation-repair re-prompt. The one-shot
// repair retry is gated on this capability, not on a provider name.
type InstructionRepairer interface {
	SupportsInstructionRepair() bool
}

// SupportsRepair reports whether p opts into instruction-repair re-prompts.
func SupportsRepair(p Provider) bool {
	if r, ok := p.(InstructionRepairer); ok {
		return r.SupportsInstructionRepair()
	}
	return false
}

// NewProvider is the factory for creating providers. It is a package-level
// variable so tests can replace it with a mock without modifying the call
// site. Tests must restore the original value; use t.Cleanup to do so
// safely.
var NewProvider func(providerName, model string) (Provider, error) = defaultNewProvider

func defaultNewProvider(providerName, model string) (Provider, error) {
	switch strings.ToLower(providerName) {
	case "anthropic", "":
		return newAnthropicProvider(model)
	case "openai":
		return newOpenAIProvider(model)
	case "google":
		return newGoogleProvider(model)
	case "mock":
		return NewMockProvider(nil), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", providerName)
	}
}

// ctxError converts a context cancellation/deadline into a timeout-kind
// provider error; returns nil for other errors.
func ctxError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{
			Provider:  provider,
			Kind:      ErrTimeout,
			Message:   err.Error(),
			Retryable: true,
		}
	}
	return nil
}

// statusError maps an HTTP status code to a provider error.
func statusError(provider string, status int, message string) *ProviderError {
	switch {
	case status == 401 || status == 403:
		return &ProviderError{Provider: provider, Kind: ErrAuth, Message: message, Retryable: false}
	case status == 429:
		return &ProviderError{Provider: provider, Kind: ErrRateLimit, Message: message, Retryable: true}
	case status == 408:
		return &ProviderError{Provider: provider, Kind: ErrTimeout, Message: message, Retryable: true}
	case status >= 500:
		return &ProviderError{Provider: provider, Kind: ErrBadResponse, Message: message, Retryable: true}
	default:
		return &ProviderError{Provider: provider, Kind: ErrBadResponse, Message: message, Retryable: false}
	}
}

func networkError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Kind:      ErrNetwork,
		Message:   err.Error(),
		Retryable: true,
	}
}

func emptyResponseError(provider string) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Kind:      ErrBadResponse,
		Message:   "response contained no text content",
		Retryable: false,
	}
}
