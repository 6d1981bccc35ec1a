package providers

import (
	"context"
	"errors"
	"time"
)

// FinishReason is the normalized reason a provider stopped generating.
type FinishReason string

const (
	// FinishStop means the model completed its answer.
	FinishStop FinishReason = "stop"

	// FinishLength means output was cut off by the max token limit.
	// Content is still returned; callers decide whether a partial
	// analysis is usable.
	FinishLength FinishReason = "length"

	// FinishSafety means the vendor's safety system suppressed output.
	FinishSafety FinishReason = "safety"

	// FinishOther covers vendor-specific reasons with no unified mapping.
	FinishOther FinishReason = "other"
)

// Provider represents a unified AI text-generation provider interface
type Provider interface {
	// Name returns the provider name (e.g., "anthropic", "gemini", "openai")
	Name() string

	// Complete performs a single completion request
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Available checks if the provider is currently reachable
	Available(ctx context.Context) bool

	// ValidateModel checks if a model is supported by this provider
	ValidateModel(model string) error

	// ModelInfo returns information about a specific model
	ModelInfo(model string) (*ModelInfo, error)

	// ListModels returns all available models from this provider
	ListModels() []string
}

// Request represents a unified completion request. The system prompt is
// carried outside the message list because Anthropic and Gemini both take
// it as a separate top-level field.
type Request struct {
	// Model identifier (e.g., "claude-sonnet-4-20250514", "gemini-2.0-flash")
	Model string `json:"model"`

	// System prompt, may be empty
	System string `json:"system,omitempty"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences
	Stop []string `json:"stop,omitempty"`

	// Metadata for tracking and logging; never forwarded to the vendor
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message roles shared by all adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	// Role can be "user" or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`
}

// UserPrompt returns the content of the last user message, or "".
func (r *Request) UserPrompt() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Response represents a unified completion response
type Response struct {
	// ID assigned by the vendor, if any
	ID string `json:"id"`

	// Content is the extracted response text
	Content string `json:"content"`

	// FinishReason normalized across vendors
	FinishReason FinishReason `json:"finish_reason"`

	// Model that produced the completion
	Model string `json:"model"`

	// Provider that handled the request
	Provider string `json:"provider"`

	// Usage statistics
	Usage Usage `json:"usage"`

	// Latency of the request
	Latency time.Duration `json:"latency"`

	// Created timestamp
	Created time.Time `json:"created"`

	// Metadata from the request
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Truncated reports whether output was cut off by the token limit.
func (r *Response) Truncated() bool {
	return r.FinishReason == FinishLength
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// ModelInfo contains metadata about a model
type ModelInfo struct {
	// ID is the model identifier
	ID string `json:"id"`

	// Name is the human-readable name
	Name string `json:"name"`

	// Provider that offers this model
	Provider string `json:"provider"`

	// Description of the model
	Description string `json:"description"`

	// MaxTokens supported by the model
	MaxTokens int `json:"max_tokens"`

	// ContextWindow size
	ContextWindow int `json:"context_window"`

	// Pricing information
	PricingPerPromptToken     float64 `json:"pricing_per_prompt_token"`
	PricingPerCompletionToken float64 `json:"pricing_per_completion_token"`

	// Deprecated indicates if the model is deprecated
	Deprecated bool `json:"deprecated"`
}

// Config holds common configuration for provider adapters
type Config struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Timeout for requests
	Timeout time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		Timeout: 60 * time.Second,
		Headers: make(map[string]string),
	}
}

// Error codes shared by adapters.
const (
	CodeMissingAPIKey = "MISSING_API_KEY"
	CodeInvalidModel  = "INVALID_MODEL"
	CodeMarshal       = "MARSHAL_ERROR"
	CodeRequest       = "REQUEST_ERROR"
	CodeHTTP          = "HTTP_ERROR"
	CodeRead          = "READ_ERROR"
	CodeUnmarshal     = "UNMARSHAL_ERROR"
	CodeSafetyBlocked = "SAFETY_BLOCKED"
	CodeEmptyResponse = "EMPTY_RESPONSE"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// IsSafetyBlocked checks if an error was caused by a vendor safety block
func IsSafetyBlocked(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code == CodeSafetyBlocked
	}
	return false
}
