package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/radialtimeline/beats-gateway/backend/models"
	"github.com/radialtimeline/beats-gateway/backend/services"
	"github.com/radialtimeline/beats-gateway/backend/services/audit"
	"github.com/radialtimeline/beats-gateway/backend/services/prompt"
	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/services/templates"
	"go.uber.org/zap"
)

// Service orchestrates the beat analysis pipeline
type Service struct {
	registry      *providers.Registry
	templates     *templates.Registry
	promptService *prompt.Service
	auditService  *audit.Service
	cache         *gocache.Cache
	logger        *zap.Logger
}

// Options configures the analysis Service
type Options struct {
	// CacheTTL controls how long identical manuscripts reuse a prior
	// analysis; zero disables caching
	CacheTTL time.Duration
}

// NewService creates a new analysis service with all dependencies
func NewService(
	registry *providers.Registry,
	templateRegistry *templates.Registry,
	promptService *prompt.Service,
	auditService *audit.Service,
	opts Options,
	logger *zap.Logger,
) *Service {
	var cache *gocache.Cache
	if opts.CacheTTL > 0 {
		cache = gocache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}

	return &Service{
		registry:      registry,
		templates:     templateRegistry,
		promptService: promptService,
		auditService:  auditService,
		cache:         cache,
		logger:        logger,
	}
}

// AnalyzeBeats runs a manuscript through the full analysis pipeline
func (s *Service) AnalyzeBeats(ctx context.Context, req *BeatsRequest) (*BeatsResult, error) {
	requestID := uuid.New().String()
	startTime := time.Now()

	s.logger.Info("starting beat analysis",
		zap.String("request_id", requestID),
		zap.String("template", req.Template),
		zap.String("model", req.Model),
		zap.Int("scenes", len(req.Scenes)))

	// Step 1: validate request
	if len(req.Scenes) == 0 {
		return nil, services.ErrEmptyManuscript
	}

	tmpl, err := s.templates.Get(req.Template)
	if err != nil {
		return nil, services.NewValidationError("unknown beat template", map[string]interface{}{
			"template":  req.Template,
			"available": s.templates.List(),
		})
	}

	// Step 2: render prompts
	systemPrompt := tmpl.SystemPrompt()
	userPrompt := tmpl.UserPrompt(req.Scenes)

	// Step 3: validate and sanitize the prompt for logging
	s.logger.Debug("validating prompt", zap.String("request_id", requestID))
	validation, err := s.promptService.Validate(ctx, userPrompt)
	if err != nil {
		return nil, services.NewInternalError("prompt validation failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if !validation.Valid {
		return nil, services.NewValidationError("prompt rejected", map[string]interface{}{
			"errors": validation.Errors,
		})
	}

	// Step 4: serve from cache when the manuscript is unchanged
	cacheKey := s.cacheKey(req)
	if s.cache != nil {
		if cached, found := s.cache.Get(cacheKey); found {
			result := cached.(*BeatsResult)
			copied := *result
			copied.RequestID = requestID
			copied.Cached = true
			s.logger.Info("beat analysis served from cache",
				zap.String("request_id", requestID),
				zap.String("template", req.Template))
			return &copied, nil
		}
	}

	// Step 5: route to provider
	provider, err := s.resolveProvider(req)
	if err != nil {
		return nil, services.NewValidationError("no provider for model", map[string]interface{}{
			"model":    req.Model,
			"provider": req.Provider,
			"error":    err.Error(),
		})
	}

	record := models.NewAnalysisRecord(provider.Name(), req.Model, req.Template, validation.SanitizedPrompt)
	record.RequestID = requestID
	record.MarkAsProcessing()

	// Step 6: invoke provider
	s.logger.Debug("invoking provider",
		zap.String("request_id", requestID),
		zap.String("provider", provider.Name()))

	providerReq := &providers.Request{
		Model:       req.Model,
		System:      systemPrompt,
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: userPrompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Metadata:    map[string]string{"request_id": requestID},
	}

	resp, err := provider.Complete(ctx, providerReq)
	if err != nil {
		return nil, s.handleProviderError(record, provider.Name(), err)
	}

	// Step 7: parse beats from the model output
	result := &BeatsResult{
		RequestID: requestID,
		Template:  req.Template,
		Provider:  resp.Provider,
		Model:     resp.Model,
		Truncated: resp.Truncated(),
		Usage:     resp.Usage,
		LatencyMs: int(resp.Latency.Milliseconds()),
	}

	beats, parseErr := parseBeatPlacements(resp.Content)
	if parseErr != nil {
		// A malformed beat list is still a usable response; return the
		// raw text and let the caller decide.
		result.RawContent = resp.Content
		result.ParseError = parseErr.Error()
		s.logger.Warn("failed to parse beat placements",
			zap.String("request_id", requestID),
			zap.Error(parseErr))
	} else {
		result.Beats = beats
		result.Momentum = momentumCurve(beats)
	}

	if result.Truncated {
		result.Warnings = append(result.Warnings, "analysis truncated by token limit; consider raising max_tokens")
	}

	// Step 8: calculate cost
	result.Cost = s.calculateCost(provider, req.Model, resp.Usage)

	// Step 9: audit record
	latencyMs := int(time.Since(startTime).Milliseconds())
	record.MarkAsCompleted(resp.Content, string(resp.FinishReason),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, latencyMs, result.Cost)
	if err := s.auditService.Record(record); err != nil {
		s.logger.Warn("failed to enqueue audit record",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	// Step 10: cache the parsed result
	if s.cache != nil && parseErr == nil {
		s.cache.Set(cacheKey, result, gocache.DefaultExpiration)
	}

	s.logger.Info("beat analysis completed",
		zap.String("request_id", requestID),
		zap.String("provider", resp.Provider),
		zap.Int("beats", len(result.Beats)),
		zap.Int("latency_ms", latencyMs),
		zap.Int("tokens", resp.Usage.TotalTokens),
		zap.Float64("cost", result.Cost))

	return result, nil
}

// resolveProvider picks the provider for a request, by pinned name or by
// model lookup
func (s *Service) resolveProvider(req *BeatsRequest) (providers.Provider, error) {
	if req.Provider != "" {
		return s.registry.Provider(req.Provider)
	}
	return s.registry.ProviderForModel(req.Model)
}

// handleProviderError classifies a provider failure, records it and maps
// it into the domain error taxonomy
func (s *Service) handleProviderError(record *models.AnalysisRecord, providerName string, err error) error {
	code := "PROVIDER_ERROR"
	if provErr, ok := err.(*providers.ProviderError); ok && provErr.Code != "" {
		code = provErr.Code
	}
	record.MarkAsFailed(code, err.Error())
	if auditErr := s.auditService.Record(record); auditErr != nil {
		s.logger.Warn("failed to enqueue audit record", zap.Error(auditErr))
	}

	if providers.IsSafetyBlocked(err) {
		return services.NewSafetyBlockedError(err.Error(), map[string]interface{}{
			"provider": providerName,
		})
	}

	return services.NewProviderFailureError("provider request failed", err, map[string]interface{}{
		"provider":  providerName,
		"retryable": providers.IsRetryable(err),
	})
}

// calculateCost prices the completed request from the model table
func (s *Service) calculateCost(provider providers.Provider, model string, usage providers.Usage) float64 {
	info, err := provider.ModelInfo(model)
	if err != nil {
		return 0
	}
	return float64(usage.PromptTokens)*info.PricingPerPromptToken +
		float64(usage.CompletionTokens)*info.PricingPerCompletionToken
}

// cacheKey derives a stable key from everything that affects the answer
func (s *Service) cacheKey(req *BeatsRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%g|", req.Template, req.Model, req.Provider, req.MaxTokens, req.Temperature)
	// Scene serialization is deterministic: fixed field order
	enc := json.NewEncoder(h)
	for _, scene := range req.Scenes {
		_ = enc.Encode(scene)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// parseBeatPlacements extracts the JSON beat list from model output,
// tolerating markdown code fences and surrounding prose
func parseBeatPlacements(content string) ([]BeatPlacement, error) {
	text := strings.TrimSpace(content)

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	// Trim any prose around the array
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in model output")
	}
	text = text[start : end+1]

	var beats []BeatPlacement
	if err := json.Unmarshal([]byte(text), &beats); err != nil {
		return nil, fmt.Errorf("failed to parse beat list: %w", err)
	}

	if len(beats) == 0 {
		return nil, fmt.Errorf("model returned an empty beat list")
	}

	return beats, nil
}

// momentumCurve builds the running momentum series from beat placements,
// ordered by scene
func momentumCurve(beats []BeatPlacement) []MomentumPoint {
	sorted := make([]BeatPlacement, len(beats))
	copy(sorted, beats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Scene < sorted[j].Scene
	})

	points := make([]MomentumPoint, 0, len(sorted))
	running := 0.0
	for _, b := range sorted {
		running += b.Momentum
		points = append(points, MomentumPoint{
			Scene: b.Scene,
			Value: running,
			Delta: b.Momentum,
		})
	}

	return points
}
