package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com"

	// apiVersion is pinned; the Messages API rejects requests without it.
	apiVersion = "2023-06-01"

	// defaultMaxTokens applies when the caller leaves MaxTokens unset.
	// The Messages API requires the field.
	defaultMaxTokens = 4096
)

// Adapter implements the Provider interface for the Anthropic Messages API
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// New creates a new Anthropic adapter
func New(config providers.Config) *Adapter {
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
		models: make(map[string]*providers.ModelInfo),
	}

	adapter.initModels()

	return adapter
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "anthropic"
}

// Complete performs a completion request against the Messages API
func (a *Adapter) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	startTime := time.Now()

	if a.config.APIKey == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMissingAPIKey,
			"Anthropic API key is not configured", 0, false, nil)
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
		a.config.BaseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequest,
			"failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.config.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)
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

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeUnmarshal,
			"failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	return a.convertResponse(&msgResp, req, time.Since(startTime))
}

// Available checks if the provider is currently reachable.
// The Messages API has no cheap health endpoint, so a deliberately
// malformed request is sent; any authenticated 4xx means the service
// answered.
func (a *Adapter) Available(ctx context.Context) bool {
	if a.config.APIKey == "" {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/v1/messages", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < 500
}

// ValidateModel checks if a model is supported
func (a *Adapter) ValidateModel(model string) error {
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not supported by Anthropic provider", model)
	}
	return nil
}

// ModelInfo returns information about a specific model
func (a *Adapter) ModelInfo(model string) (*providers.ModelInfo, error) {
	info, exists := a.models[model]
	if !exists {
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
		"claude-opus-4-20250514": {
			ID:                        "claude-opus-4-20250514",
			Name:                      "Claude Opus 4",
			Provider:                  "anthropic",
			Description:               "Most capable Claude model",
			MaxTokens:                 32000,
			ContextWindow:             200000,
			PricingPerPromptToken:     0.000015, // $15 per 1M tokens
			PricingPerCompletionToken: 0.000075, // $75 per 1M tokens
		},
		"claude-sonnet-4-20250514": {
			ID:                        "claude-sonnet-4-20250514",
			Name:                      "Claude Sonnet 4",
			Provider:                  "anthropic",
			Description:               "Balanced capability and speed",
			MaxTokens:                 64000,
			ContextWindow:             200000,
			PricingPerPromptToken:     0.000003, // $3 per 1M tokens
			PricingPerCompletionToken: 0.000015, // $15 per 1M tokens
		},
		"claude-3-5-haiku-20241022": {
			ID:                        "claude-3-5-haiku-20241022",
			Name:                      "Claude 3.5 Haiku",
			Provider:                  "anthropic",
			Description:               "Fast and efficient model",
			MaxTokens:                 8192,
			ContextWindow:             200000,
			PricingPerPromptToken:     0.0000008,  // $0.80 per 1M tokens
			PricingPerCompletionToken: 0.000004,   // $4 per 1M tokens
		},
		"claude-3-5-sonnet-20241022": {
			ID:                        "claude-3-5-sonnet-20241022",
			Name:                      "Claude 3.5 Sonnet",
			Provider:                  "anthropic",
			Description:               "Previous generation Sonnet",
			MaxTokens:                 8192,
			ContextWindow:             200000,
			PricingPerPromptToken:     0.000003,
			PricingPerCompletionToken: 0.000015,
			Deprecated:                true,
		},
	}
}

// buildRequest converts a unified request to the Messages API format.
// The system prompt goes in the top-level system field, never into the
// message list.
func (a *Adapter) buildRequest(req *providers.Request) *messagesRequest {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body := &messagesRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Messages:  make([]message, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		body.Messages[i] = message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	if req.System != "" {
		body.System = req.System
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		body.TopP = &req.TopP
	}
	if len(req.Stop) > 0 {
		body.StopSequences = req.Stop
	}

	return body
}

// convertResponse converts a Messages API response to the unified format
func (a *Adapter) convertResponse(msgResp *messagesResponse, req *providers.Request, latency time.Duration) (*providers.Response, error) {
	var content string
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	if content == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyResponse,
			"response contained no text content", http.StatusOK, false, nil)
	}

	return &providers.Response{
		ID:           msgResp.ID,
		Content:      content,
		FinishReason: mapStopReason(msgResp.StopReason),
		Model:        msgResp.Model,
		Provider:     a.Name(),
		Usage: providers.Usage{
			PromptTokens:     msgResp.Usage.InputTokens,
			CompletionTokens: msgResp.Usage.OutputTokens,
			TotalTokens:      msgResp.Usage.InputTokens + msgResp.Usage.OutputTokens,
		},
		Latency:  latency,
		Created:  time.Now(),
		Metadata: req.Metadata,
	}, nil
}

// mapStopReason normalizes Messages API stop reasons
func mapStopReason(reason string) providers.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishStop
	case "max_tokens":
		return providers.FinishLength
	case "refusal":
		return providers.FinishSafety
	default:
		return providers.FinishOther
	}
}

// handleErrorResponse handles Messages API error responses
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

// Messages API request/response types

type messagesRequest struct {
	Model         string    `json:"model"`
	MaxTokens     int       `json:"max_tokens"`
	Messages      []message `json:"messages"`
	System        string    `json:"system,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
