package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/services/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Adapter implements the Provider interface for OpenAI-compatible chat
// completion APIs. With a custom BaseURL it also fronts OpenRouter, Groq
// and local inference servers that speak the same wire format, in which
// case model validation is skipped for unknown IDs.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
	compatible bool // custom endpoint, accept any model ID
}

// New creates a new adapter for api.openai.com
func New(config providers.Config) *Adapter {
	return newAdapter(config, false)
}

// NewCompatible creates an adapter for an OpenAI-compatible endpoint.
// BaseURL must be set.
func NewCompatible(config providers.Config) *Adapter {
	return newAdapter(config, true)
}

func newAdapter(config providers.Config, compatible bool) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	adapter := &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		models:     make(map[string]*providers.ModelInfo),
		compatible: compatible,
	}

	adapter.initModels()

	return adapter
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "openai"
}

// Complete performs a chat completion request
func (a *Adapter) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	startTime := time.Now()

	if a.config.APIKey == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMissingAPIKey,
			"API key is not configured", 0, false, nil)
	}
	if req.Model == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidModel,
			"model must not be empty", 0, false, nil)
	}

	body := a.buildRequest(req)

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMarshal,
			"failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequest,
			"failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeHTTP,
			"HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRead,
			"failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeUnmarshal,
			"failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	return a.convertResponse(&chatResp, req, time.Since(startTime))
}

// Available checks if the provider is currently reachable
func (a *Adapter) Available(ctx context.Context) bool {
	if a.config.APIKey == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}

	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateModel checks if a model is supported
func (a *Adapter) ValidateModel(model string) error {
	if a.compatible {
		// Compatible endpoints serve arbitrary model catalogs
		if model == "" {
			return errors.New("model must not be empty")
		}
		return nil
	}
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not supported by OpenAI provider", model)
	}
	return nil
}

// ModelInfo returns information about a specific model
func (a *Adapter) ModelInfo(model string) (*providers.ModelInfo, error) {
	info, exists := a.models[model]
	if !exists {
		if a.compatible {
			return &providers.ModelInfo{ID: model, Name: model, Provider: a.Name()}, nil
		}
		return nil, fmt.Errorf("model %s not found", model)
	}
	return info, nil
}

// ListModels returns all available models
func (a *Adapter) ListModels() []string {
	models := make([]string, 0, len(a.models))
	for model := range a.models {
		models = append(models, model)
	}
	return models
}

// initModels initializes the model information map
func (a *Adapter) initModels() {
	a.models = map[string]*providers.ModelInfo{
		"gpt-4o": {
			ID:                        "gpt-4o",
			Name:                      "GPT-4o",
			Provider:                  "openai",
			Description:               "Optimized GPT-4 model",
			MaxTokens:                 16384,
			ContextWindow:             128000,
			PricingPerPromptToken:     0.0000025, // $2.50 per 1M tokens
			PricingPerCompletionToken: 0.00001,   // $10 per 1M tokens
		},
		"gpt-4o-mini": {
			ID:                        "gpt-4o-mini",
			Name:                      "GPT-4o Mini",
			Provider:                  "openai",
			Description:               "Smaller, faster GPT-4o model",
			MaxTokens:                 16384,
			ContextWindow:             128000,
			PricingPerPromptToken:     0.00000015, // $0.15 per 1M tokens
			PricingPerCompletionToken: 0.0000006,  // $0.60 per 1M tokens
		},
		"gpt-4.1": {
			ID:                        "gpt-4.1",
			Name:                      "GPT-4.1",
			Provider:                  "openai",
			Description:               "Latest GPT-4 generation",
			MaxTokens:                 32768,
			ContextWindow:             1047576,
			PricingPerPromptToken:     0.000002, // $2 per 1M tokens
			PricingPerCompletionToken: 0.000008, // $8 per 1M tokens
		},
	}
}

// buildRequest converts a unified request to the chat completions format.
// The system prompt becomes the leading message.
func (a *Adapter) buildRequest(req *providers.Request) *chatRequest {
	body := &chatRequest{
		Model:    req.Model,
		Messages: make([]chatMessage, 0, len(req.Messages)+1),
	}

	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{
			Role:    "system",
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	if req.MaxTokens > 0 {
		body.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		body.TopP = &req.TopP
	}
	if len(req.Stop) > 0 {
		body.Stop = req.Stop
	}

	return body
}

// convertResponse converts a chat completions response to the unified format
func (a *Adapter) convertResponse(chatResp *chatResponse, req *providers.Request, latency time.Duration) (*providers.Response, error) {
	if len(chatResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyResponse,
			"response contained no choices", http.StatusOK, false, nil)
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeSafetyBlocked,
			"completion suppressed by content filter", http.StatusOK, false, nil)
	}

	return &providers.Response{
		ID:           chatResp.ID,
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Model:        chatResp.Model,
		Provider:     a.Name(),
		Usage: providers.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		},
		Latency:  latency,
		Created:  time.Unix(chatResp.Created, 0),
		Metadata: req.Metadata,
	}, nil
}

// mapFinishReason normalizes chat completions finish reasons
func mapFinishReason(reason string) providers.FinishReason {
	switch reason {
	case "stop":
		return providers.FinishStop
	case "length":
		return providers.FinishLength
	case "content_filter":
		return providers.FinishSafety
	default:
		return providers.FinishOther
	}
}

// handleErrorResponse handles chat completions error responses
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, false, err)
	}

	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Chat completions request/response types

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
