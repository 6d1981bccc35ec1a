package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/services/providers"
)

func TestNew(t *testing.T) {
	adapter := New(providers.Config{APIKey: "test-key"})

	if adapter == nil {
		t.Fatal("New() returned nil")
	}

	if adapter.Name() != "gemini" {
		t.Errorf("Name() = %s, want gemini", adapter.Name())
	}

	if adapter.config.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", adapter.config.BaseURL, defaultBaseURL)
	}

	if len(adapter.models) == 0 {
		t.Error("Models not initialized")
	}
}

func TestAdapter_Endpoint(t *testing.T) {
	adapter := New(providers.Config{APIKey: "secret&key"})

	u := adapter.endpoint("gemini-2.0-flash")

	if !strings.Contains(u, "/v1beta/models/gemini-2.0-flash:generateContent") {
		t.Errorf("endpoint = %s, missing generateContent path", u)
	}

	if !strings.Contains(u, "key=secret%26key") {
		t.Errorf("endpoint = %s, API key not query-escaped", u)
	}
}

func TestAdapter_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}

		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			t.Errorf("Expected generateContent path, got %s", r.URL.Path)
		}

		if r.URL.Query().Get("key") != "test-key" {
			t.Error("API key missing from query string")
		}

		var req generateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		if req.SystemInstruction == nil || req.SystemInstruction.Parts[0].Text != "You are a story analyst" {
			t.Error("systemInstruction missing or wrong")
		}

		if len(req.Contents) != 2 {
			t.Fatalf("len(Contents) = %d, want 2", len(req.Contents))
		}

		if req.Contents[1].Role != "model" {
			t.Errorf("assistant role = %s, want model", req.Contents[1].Role)
		}

		resp := generateContentResponse{
			Candidates: []candidate{
				{
					Content: content{
						Role:  "model",
						Parts: []part{{Text: "beat "}, {Text: "analysis"}},
					},
					FinishReason: "STOP",
				},
			},
			UsageMetadata: &usageMetadata{
				PromptTokenCount:     15,
				CandidatesTokenCount: 5,
				TotalTokenCount:      20,
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(providers.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})

	req := &providers.Request{
		Model:  "gemini-2.0-flash",
		System: "You are a story analyst",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: "Analyze this"},
			{Role: providers.RoleAssistant, Content: "Sure"},
		},
	}

	resp, err := adapter.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != "beat analysis" {
		t.Errorf("Content = %q, want joined parts", resp.Content)
	}

	if resp.FinishReason != providers.FinishStop {
		t.Errorf("FinishReason = %s, want %s", resp.FinishReason, providers.FinishStop)
	}

	if resp.Provider != "gemini" {
		t.Errorf("Provider = %s, want gemini", resp.Provider)
	}

	if resp.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", resp.Usage.TotalTokens)
	}
}

func TestAdapter_Complete_MissingAPIKey(t *testing.T) {
	adapter := New(providers.Config{})

	_, err := adapter.Complete(context.Background(), &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "test"}},
	})

	if err == nil {
		t.Fatal("Expected error but got none")
	}

	var provErr *providers.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected ProviderError, got %T", err)
	}

	if provErr.Code != providers.CodeMissingAPIKey {
		t.Errorf("Code = %s, want %s", provErr.Code, providers.CodeMissingAPIKey)
	}
}

func TestAdapter_Complete_PromptBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := generateContentResponse{
			PromptFeedback: &promptFeedback{BlockReason: "SAFETY"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(providers.Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := adapter.Complete(context.Background(), &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "test"}},
	})

	if err == nil {
		t.Fatal("Expected safety error but got none")
	}

	if !providers.IsSafetyBlocked(err) {
		t.Errorf("IsSafetyBlocked = false, want true for blocked prompt: %v", err)
	}
}

func TestAdapter_Complete_CandidateSuppressed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := generateContentResponse{
			Candidates: []candidate{
				{FinishReason: "SAFETY"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(providers.Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := adapter.Complete(context.Background(), &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "test"}},
	})

	if !providers.IsSafetyBlocked(err) {
		t.Errorf("IsSafetyBlocked = false, want true for SAFETY finish: %v", err)
	}
}

func TestAdapter_Complete_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateContentResponse{})
	}))
	defer server.Close()

	adapter := New(providers.Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := adapter.Complete(context.Background(), &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "test"}},
	})

	var provErr *providers.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected ProviderError, got %T", err)
	}

	if provErr.Code != providers.CodeEmptyResponse {
		t.Errorf("Code = %s, want %s", provErr.Code, providers.CodeEmptyResponse)
	}
}

func TestAdapter_Complete_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	adapter := New(providers.Config{APIKey: "test-key", BaseURL: server.URL})

	_, err := adapter.Complete(context.Background(), &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "test"}},
	})

	if err == nil {
		t.Fatal("Expected error but got none")
	}

	var provErr *providers.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Expected ProviderError, got %T", err)
	}

	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", provErr.StatusCode)
	}

	if !provErr.Retryable {
		t.Error("429 should be retryable")
	}

	if provErr.Code != "RESOURCE_EXHAUSTED" {
		t.Errorf("Code = %s, want RESOURCE_EXHAUSTED", provErr.Code)
	}
}

func TestBuildRequest_GenerationConfig(t *testing.T) {
	adapter := New(providers.Config{})

	req := &providers.Request{
		Model:    "gemini-2.0-flash",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	}

	body := adapter.buildRequest(req)
	if body.GenerationConfig != nil {
		t.Error("generationConfig should be omitted when nothing is set")
	}

	req.MaxTokens = 500
	req.Temperature = 0.7

	body = adapter.buildRequest(req)
	if body.GenerationConfig == nil {
		t.Fatal("generationConfig missing")
	}
	if *body.GenerationConfig.MaxOutputTokens != 500 {
		t.Errorf("MaxOutputTokens = %d, want 500", *body.GenerationConfig.MaxOutputTokens)
	}
	if *body.GenerationConfig.Temperature != 0.7 {
		t.Errorf("Temperature = %f, want 0.7", *body.GenerationConfig.Temperature)
	}
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   providers.FinishReason
	}{
		{"STOP", providers.FinishStop},
		{"MAX_TOKENS", providers.FinishLength},
		{"SAFETY", providers.FinishSafety},
		{"PROHIBITED_CONTENT", providers.FinishSafety},
		{"BLOCKLIST", providers.FinishSafety},
		{"OTHER", providers.FinishOther},
		{"", providers.FinishOther},
	}

	for _, tt := range tests {
		if got := mapFinishReason(tt.reason); got != tt.want {
			t.Errorf("mapFinishReason(%q) = %s, want %s", tt.reason, got, tt.want)
		}
	}
}

func TestAdapter_Available(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1beta/models" {
				t.Errorf("Expected /v1beta/models, got %s", r.URL.Path)
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"models": []}`))
		}))
		defer server.Close()

		adapter := New(providers.Config{APIKey: "test-key", BaseURL: server.URL})

		if !adapter.Available(context.Background()) {
			t.Error("Expected provider to be available")
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		adapter := New(providers.Config{APIKey: "bad-key", BaseURL: server.URL})

		if adapter.Available(context.Background()) {
			t.Error("Expected provider to be unavailable")
		}
	})
}
