package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/services"
	"github.com/radialtimeline/beats-gateway/backend/services/audit"
	"github.com/radialtimeline/beats-gateway/backend/services/prompt"
	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/services/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubProvider returns canned completions for pipeline tests
type stubProvider struct {
	name     string
	response *providers.Response
	err      error
	calls    int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req *providers.Request) (*providers.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubProvider) Available(ctx context.Context) bool { return true }

func (s *stubProvider) ValidateModel(model string) error { return nil }

func (s *stubProvider) ModelInfo(model string) (*providers.ModelInfo, error) {
	return &providers.ModelInfo{
		ID:                        model,
		Provider:                  s.name,
		PricingPerPromptToken:     0.00001,
		PricingPerCompletionToken: 0.00002,
	}, nil
}

func (s *stubProvider) ListModels() []string { return []string{"stub-model"} }

func testScenes() []templates.Scene {
	return []templates.Scene{
		{Number: 1, Title: "Opening", Synopsis: "The calm before.", Words: 1200},
		{Number: 2, Title: "Catalyst", Synopsis: "Everything changes.", Words: 1500},
		{Number: 3, Title: "Debate", Synopsis: "Hesitation sets in.", Words: 900},
	}
}

func newTestService(t *testing.T, stub *stubProvider, opts Options) (*Service, *audit.MemoryStore) {
	t.Helper()

	registry := providers.NewRegistry()
	require.NoError(t, registry.Register(stub))

	store := audit.NewMemoryStore(100)
	auditService := audit.NewService(store, zap.NewNop(), audit.DefaultConfig())
	require.NoError(t, auditService.Start())
	t.Cleanup(func() { _ = auditService.Stop(2 * time.Second) })

	service := NewService(
		registry,
		templates.NewRegistry(),
		prompt.NewServiceWithDefaults(),
		auditService,
		opts,
		zap.NewNop(),
	)

	return service, store
}

func TestAnalyzeBeats_Success(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		response: &providers.Response{
			ID: "resp-1",
			Content: `[
				{"beat": "Catalyst", "scene": 2, "confidence": 0.9, "momentum": 0.5, "note": "inciting incident"},
				{"beat": "Opening Image", "scene": 1, "confidence": 0.8, "momentum": 0.1},
				{"beat": "Debate", "scene": 3, "confidence": 0.7, "momentum": -0.2}
			]`,
			FinishReason: providers.FinishStop,
			Model:        "stub-model",
			Provider:     "stub",
			Usage:        providers.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
			Latency:      300 * time.Millisecond,
		},
	}

	service, store := newTestService(t, stub, Options{})

	result, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})
	require.NoError(t, err)

	assert.Len(t, result.Beats, 3)
	assert.Empty(t, result.ParseError)
	assert.False(t, result.Truncated)
	assert.Equal(t, 150, result.Usage.TotalTokens)

	// Momentum curve is ordered by scene with a running sum
	require.Len(t, result.Momentum, 3)
	assert.Equal(t, 1, result.Momentum[0].Scene)
	assert.InDelta(t, 0.1, result.Momentum[0].Value, 1e-9)
	assert.InDelta(t, 0.6, result.Momentum[1].Value, 1e-9)
	assert.InDelta(t, 0.4, result.Momentum[2].Value, 1e-9)

	// Cost priced from the model table
	assert.InDelta(t, 100*0.00001+50*0.00002, result.Cost, 1e-9)

	// Audit record lands in the store after the workers drain
	deadline := time.Now().Add(2 * time.Second)
	for {
		records, _ := store.List(context.Background(), 10)
		if len(records) == 1 {
			assert.Equal(t, result.RequestID, records[0].RequestID)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("audit record never saved")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAnalyzeBeats_CodeFencedOutput(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		response: &providers.Response{
			Content: "```json\n" +
				`[{"beat": "Ordeal", "scene": 2, "confidence": 0.9, "momentum": 0.4}]` +
				"\n```",
			FinishReason: providers.FinishStop,
			Model:        "stub-model",
			Provider:     "stub",
		},
	}

	service, _ := newTestService(t, stub, Options{})

	result, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "heros-journey",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})
	require.NoError(t, err)

	require.Len(t, result.Beats, 1)
	assert.Equal(t, "Ordeal", result.Beats[0].Beat)
}

func TestAnalyzeBeats_UnparseableOutput(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		response: &providers.Response{
			Content:      "I could not produce a structured answer, sorry.",
			FinishReason: providers.FinishStop,
			Model:        "stub-model",
			Provider:     "stub",
		},
	}

	service, _ := newTestService(t, stub, Options{})

	result, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})
	require.NoError(t, err, "a malformed beat list is not a pipeline failure")

	assert.Empty(t, result.Beats)
	assert.NotEmpty(t, result.ParseError)
	assert.Equal(t, "I could not produce a structured answer, sorry.", result.RawContent)
}

func TestAnalyzeBeats_EmptyManuscript(t *testing.T) {
	service, _ := newTestService(t, &stubProvider{name: "stub"}, Options{})

	_, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Scenes:   nil,
	})

	var domErr *services.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, services.ErrorTypeValidation, domErr.Type)
}

func TestAnalyzeBeats_UnknownTemplate(t *testing.T) {
	service, _ := newTestService(t, &stubProvider{name: "stub"}, Options{})

	_, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "no-such-structure",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})

	var domErr *services.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, services.ErrorTypeValidation, domErr.Type)
}

func TestAnalyzeBeats_UnknownProvider(t *testing.T) {
	service, _ := newTestService(t, &stubProvider{name: "stub"}, Options{})

	_, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "unrouted-model",
		Scenes:   testScenes(),
	})

	var domErr *services.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, services.ErrorTypeValidation, domErr.Type)
}

func TestAnalyzeBeats_SafetyBlocked(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		err: providers.NewProviderError("stub", providers.CodeSafetyBlocked,
			"prompt blocked by safety filter", 200, false, nil),
	}

	service, store := newTestService(t, stub, Options{})

	_, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})

	var domErr *services.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, services.ErrorTypeSafetyBlocked, domErr.Type)

	// The failure is audited
	deadline := time.Now().Add(2 * time.Second)
	for {
		records, _ := store.List(context.Background(), 10)
		if len(records) == 1 {
			require.NotNil(t, records[0].ErrorCode)
			assert.Equal(t, providers.CodeSafetyBlocked, *records[0].ErrorCode)
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failed analysis never audited")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAnalyzeBeats_ProviderFailure(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		err: providers.NewProviderError("stub", "overloaded_error",
			"upstream overloaded", 529, true, nil),
	}

	service, _ := newTestService(t, stub, Options{})

	_, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	})

	var domErr *services.DomainError
	require.ErrorAs(t, err, &domErr)
	assert.Equal(t, services.ErrorTypeProvider, domErr.Type)
	assert.Equal(t, true, domErr.Details["retryable"])
}

func TestAnalyzeBeats_TruncationWarning(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		response: &providers.Response{
			Content:      `[{"beat": "Setup", "scene": 1, "confidence": 0.5, "momentum": 0.1}]`,
			FinishReason: providers.FinishLength,
			Model:        "stub-model",
			Provider:     "stub",
		},
	}

	service, _ := newTestService(t, stub, Options{})

	result, err := service.AnalyzeBeats(context.Background(), &BeatsRequest{
		Template:  "save-the-cat",
		Model:     "stub-model",
		Provider:  "stub",
		Scenes:    testScenes(),
		MaxTokens: 50,
	})
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "truncated")
}

func TestAnalyzeBeats_Cache(t *testing.T) {
	stub := &stubProvider{
		name: "stub",
		response: &providers.Response{
			Content:      `[{"beat": "Midpoint", "scene": 2, "confidence": 0.9, "momentum": 0.3}]`,
			FinishReason: providers.FinishStop,
			Model:        "stub-model",
			Provider:     "stub",
		},
	}

	service, _ := newTestService(t, stub, Options{CacheTTL: time.Minute})

	req := &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Provider: "stub",
		Scenes:   testScenes(),
	}

	first, err := service.AnalyzeBeats(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := service.AnalyzeBeats(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Beats, second.Beats)
	assert.NotEqual(t, first.RequestID, second.RequestID, "cache hits get their own request ID")

	assert.Equal(t, 1, stub.calls, "second analysis must not hit the provider")

	// A changed manuscript misses the cache
	changed := *req
	changed.Scenes = append([]templates.Scene{}, req.Scenes...)
	changed.Scenes[0].Synopsis = "Rewritten opening."

	third, err := service.AnalyzeBeats(context.Background(), &changed)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, stub.calls)
}

func TestParseBeatPlacements(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantBeats int
		wantErr   bool
	}{
		{
			name:      "plain array",
			content:   `[{"beat": "Setup", "scene": 1, "confidence": 0.8, "momentum": 0.2}]`,
			wantBeats: 1,
		},
		{
			name:      "prose around the array",
			content:   "Here is the analysis:\n[{\"beat\": \"Setup\", \"scene\": 1}]\nHope that helps!",
			wantBeats: 1,
		},
		{
			name:      "code fence without language",
			content:   "```\n[{\"beat\": \"Setup\", \"scene\": 1}]\n```",
			wantBeats: 1,
		},
		{
			name:    "no array at all",
			content: "The midpoint falls around scene twelve.",
			wantErr: true,
		},
		{
			name:    "empty array",
			content: "[]",
			wantErr: true,
		},
		{
			name:    "malformed json",
			content: `[{"beat": "Setup", "scene": }]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			beats, err := parseBeatPlacements(tt.content)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Len(t, beats, tt.wantBeats)
		})
	}
}

func TestMomentumCurve(t *testing.T) {
	beats := []BeatPlacement{
		{Beat: "C", Scene: 9, Momentum: -0.5},
		{Beat: "A", Scene: 1, Momentum: 0.2},
		{Beat: "B", Scene: 4, Momentum: 0.6},
	}

	points := momentumCurve(beats)

	require.Len(t, points, 3)
	assert.Equal(t, []int{1, 4, 9}, []int{points[0].Scene, points[1].Scene, points[2].Scene})
	assert.InDelta(t, 0.2, points[0].Value, 1e-9)
	assert.InDelta(t, 0.8, points[1].Value, 1e-9)
	assert.InDelta(t, 0.3, points[2].Value, 1e-9)
	assert.InDelta(t, -0.5, points[2].Delta, 1e-9)
}

func TestCacheKey_Stability(t *testing.T) {
	service, _ := newTestService(t, &stubProvider{name: "stub"}, Options{})

	base := &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Scenes:   testScenes(),
	}

	same := &BeatsRequest{
		Template: "save-the-cat",
		Model:    "stub-model",
		Scenes:   testScenes(),
	}

	assert.Equal(t, service.cacheKey(base), service.cacheKey(same))

	different := &BeatsRequest{
		Template: "heros-journey",
		Model:    "stub-model",
		Scenes:   testScenes(),
	}
	assert.NotEqual(t, service.cacheKey(base), service.cacheKey(different))

	tweaked := &BeatsRequest{
		Template:    "save-the-cat",
		Model:       "stub-model",
		Scenes:      testScenes(),
		Temperature: 0.9,
	}
	assert.NotEqual(t, service.cacheKey(base), service.cacheKey(tweaked))
}

func TestStubProviderContract(t *testing.T) {
	// Guards the test double against interface drift
	var _ providers.Provider = (*stubProvider)(nil)

	stub := &stubProvider{name: "stub"}
	info, err := stub.ModelInfo("anything")
	require.NoError(t, err)
	assert.Equal(t, "anything", info.ID)
}
