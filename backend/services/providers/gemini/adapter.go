package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/services/providers"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Adapter implements the Provider interface for the Gemini generateContent API.
// The API key travels as a query parameter, so request URLs must never be
// logged without passing through the redact package first.
type Adapter struct {
	config     providers.Config
	httpClient *http.Client
	models     map[string]*providers.ModelInfo
}

// New creates a new Gemini adapter
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
	return "gemini"
}

// endpoint builds the generateContent URL for a model
func (a *Adapter) endpoint(model string) string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.config.BaseURL, url.PathEscape(model), url.QueryEscape(a.config.APIKey))
}

// Complete performs a completion request against the generateContent API
func (a *Adapter) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	startTime := time.Now()

	if a.config.APIKey == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeMissingAPIKey,
			"Gemini API key is not configured", 0, false, nil)
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
		a.endpoint(req.Model), bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequest,
			"failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
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

	var genResp generateContentResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeUnmarshal,
			"failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	return a.convertResponse(&genResp, req, time.Since(startTime))
}

// Available checks if the provider is currently reachable
func (a *Adapter) Available(ctx context.Context) bool {
	if a.config.APIKey == "" {
		return false
	}

	u := fmt.Sprintf("%s/v1beta/models?key=%s", a.config.BaseURL, url.QueryEscape(a.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ValidateModel checks if a model is supported
func (a *Adapter) ValidateModel(model string) error {
	if _, exists := a.models[model]; !exists {
		return fmt.Errorf("model %s is not supported by Gemini provider", model)
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
		"gemini-2.0-flash": {
			ID:                        "gemini-2.0-flash",
			Name:                      "Gemini 2.0 Flash",
			Provider:                  "gemini",
			Description:               "Fast multimodal model",
			MaxTokens:                 8192,
			ContextWindow:             1048576,
			PricingPerPromptToken:     0.0000001,  // $0.10 per 1M tokens
			PricingPerCompletionToken: 0.0000004,  // $0.40 per 1M tokens
		},
		"gemini-2.5-pro": {
			ID:                        "gemini-2.5-pro",
			Name:                      "Gemini 2.5 Pro",
			Provider:                  "gemini",
			Description:               "Most capable Gemini model",
			MaxTokens:                 65536,
			ContextWindow:             1048576,
			PricingPerPromptToken:     0.00000125, // $1.25 per 1M tokens
			PricingPerCompletionToken: 0.00001,    // $10 per 1M tokens
		},
		"gemini-2.5-flash": {
			ID:                        "gemini-2.5-flash",
			Name:                      "Gemini 2.5 Flash",
			Provider:                  "gemini",
			Description:               "Balanced price and performance",
			MaxTokens:                 65536,
			ContextWindow:             1048576,
			PricingPerPromptToken:     0.0000003,  // $0.30 per 1M tokens
			PricingPerCompletionToken: 0.0000025,  // $2.50 per 1M tokens
		},
	}
}

// buildRequest converts a unified request to the generateContent format.
// Gemini calls the assistant role "model".
func (a *Adapter) buildRequest(req *providers.Request) *generateContentRequest {
	body := &generateContentRequest{
		Contents: make([]content, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		role := msg.Role
		if role == providers.RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, content{
			Role:  role,
			Parts: []part{{Text: msg.Content}},
		})
	}

	if req.System != "" {
		body.SystemInstruction = &content{
			Parts: []part{{Text: req.System}},
		}
	}

	genCfg := &generationConfig{}
	hasCfg := false
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = &req.MaxTokens
		hasCfg = true
	}
	if req.Temperature > 0 {
		genCfg.Temperature = &req.Temperature
		hasCfg = true
	}
	if req.TopP > 0 {
		genCfg.TopP = &req.TopP
		hasCfg = true
	}
	if len(req.Stop) > 0 {
		genCfg.StopSequences = req.Stop
		hasCfg = true
	}
	if hasCfg {
		body.GenerationConfig = genCfg
	}

	return body
}

// convertResponse converts a generateContent response to the unified format.
// A prompt block or a SAFETY finish is surfaced as a safety error, not as
// an empty success.
func (a *Adapter) convertResponse(genResp *generateContentResponse, req *providers.Request, latency time.Duration) (*providers.Response, error) {
	if genResp.PromptFeedback != nil && genResp.PromptFeedback.BlockReason != "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeSafetyBlocked,
			fmt.Sprintf("prompt blocked by safety filter: %s", genResp.PromptFeedback.BlockReason),
			http.StatusOK, false, nil)
	}

	if len(genResp.Candidates) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyResponse,
			"response contained no candidates", http.StatusOK, false, nil)
	}

	candidate := genResp.Candidates[0]
	if candidate.FinishReason == "SAFETY" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeSafetyBlocked,
			"candidate suppressed by safety filter", http.StatusOK, false, nil)
	}

	var sb strings.Builder
	for _, p := range candidate.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()

	if text == "" {
		return nil, providers.NewProviderError(a.Name(), providers.CodeEmptyResponse,
			"candidate contained no text parts", http.StatusOK, false, nil)
	}

	resp := &providers.Response{
		Content:      text,
		FinishReason: mapFinishReason(candidate.FinishReason),
		Model:        req.Model,
		Provider:     a.Name(),
		Latency:      latency,
		Created:      time.Now(),
		Metadata:     req.Metadata,
	}

	if genResp.UsageMetadata != nil {
		resp.Usage = providers.Usage{
			PromptTokens:     genResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: genResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      genResp.UsageMetadata.TotalTokenCount,
		}
	}

	return resp, nil
}

// mapFinishReason normalizes generateContent finish reasons
func mapFinishReason(reason string) providers.FinishReason {
	switch reason {
	case "STOP":
		return providers.FinishStop
	case "MAX_TOKENS":
		return providers.FinishLength
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return providers.FinishSafety
	default:
		return providers.FinishOther
	}
}

// handleErrorResponse handles generateContent error responses
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, false, err)
	}

	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Status,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// generateContent API request/response types

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateContentResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *usageMetadata  `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
	Index        int     `json:"index"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
