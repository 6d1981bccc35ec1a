package analysis

import (
	"github.com/radialtimeline/beats-gateway/backend/services/providers"
	"github.com/radialtimeline/beats-gateway/backend/services/templates"
)

// BeatsRequest asks for a beat analysis of a set of manuscript scenes
type BeatsRequest struct {
	// Template is the beat sheet ID (e.g. "save-the-cat")
	Template string `json:"template" validate:"required"`

	// Model to run the analysis with
	Model string `json:"model" validate:"required"`

	// Provider pins a specific provider; empty means resolve by model
	Provider string `json:"provider,omitempty"`

	// Scenes in manuscript order
	Scenes []templates.Scene `json:"scenes" validate:"required,min=1,dive"`

	// MaxTokens caps the analysis response length
	MaxTokens int `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`

	// Temperature for the completion
	Temperature float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// BeatPlacement maps one structural beat onto a scene
type BeatPlacement struct {
	Beat       string  `json:"beat"`
	Scene      int     `json:"scene"`
	Confidence float64 `json:"confidence"`
	Momentum   float64 `json:"momentum"`
	Note       string  `json:"note,omitempty"`
}

// MomentumPoint is one sample of the running narrative-momentum curve
type MomentumPoint struct {
	Scene int     `json:"scene"`
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

// BeatsResult is the outcome of a beat analysis
type BeatsResult struct {
	RequestID string `json:"request_id"`
	Template  string `json:"template"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`

	Beats    []BeatPlacement `json:"beats"`
	Momentum []MomentumPoint `json:"momentum"`

	// RawContent carries the model output verbatim when it could not be
	// parsed as a beat list
	RawContent string `json:"raw_content,omitempty"`
	ParseError string `json:"parse_error,omitempty"`

	// Truncated is set when the provider cut output at the token limit
	Truncated bool `json:"truncated"`

	Usage     providers.Usage `json:"usage"`
	LatencyMs int             `json:"latency_ms"`
	Cost      float64         `json:"cost"`

	// Cached is set when the result was served from the content cache
	Cached bool `json:"cached"`

	Warnings []string `json:"warnings,omitempty"`
}
