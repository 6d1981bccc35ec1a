package prompt

import (
	"context"
	"fmt"

	"github.com/radialtimeline/beats-gateway/backend/services/redact"
)

// ValidationConfig holds configuration for prompt validation
type ValidationConfig struct {
	MaxLength             int
	MinLength             int
	EnableSecretDetection bool
	RedactSecrets         bool
	SecretConfidence      float64
	StrictMode            bool
}

// DefaultValidationConfig returns a sensible default configuration.
// Manuscript synopses run long, so the ceiling is generous.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxLength:             200000,
		MinLength:             1,
		EnableSecretDetection: true,
		RedactSecrets:         true,
		SecretConfidence:      0.8,
		StrictMode:            false,
	}
}

// ValidationResult contains the results of prompt validation
type ValidationResult struct {
	Valid           bool
	Errors          []string
	Warnings        []string
	SanitizedPrompt string
	SecretsDetected bool
	Detections      []redact.Detection
}

// Service validates prompts before they are sent to a provider and
// produces a sanitized copy safe for audit logging.
type Service struct {
	config ValidationConfig
}

// NewService creates a new prompt service with the given configuration
func NewService(config ValidationConfig) *Service {
	return &Service{
		config: config,
	}
}

// NewServiceWithDefaults creates a new prompt service with default configuration
func NewServiceWithDefaults() *Service {
	return NewService(DefaultValidationConfig())
}

// Validate performs validation on a prompt
func (s *Service) Validate(ctx context.Context, prompt string) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:           true,
		Errors:          []string{},
		Warnings:        []string{},
		SanitizedPrompt: prompt,
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// 1. Length validation
	if len(prompt) < s.config.MinLength {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("prompt too short: minimum %d characters", s.config.MinLength))
	}

	if len(prompt) > s.config.MaxLength {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("prompt too long: maximum %d characters", s.config.MaxLength))
	}

	// 2. Secret detection
	if s.config.EnableSecretDetection {
		detections := redact.Detect(prompt)
		if len(detections) > 0 {
			result.SecretsDetected = true
			result.Detections = detections

			highConfCount := 0
			for _, d := range detections {
				if d.Confidence >= s.config.SecretConfidence {
					highConfCount++
				}
			}

			if highConfCount > 0 {
				if s.config.StrictMode {
					result.Valid = false
					result.Errors = append(result.Errors, fmt.Sprintf("secrets detected: %d high-confidence instances", highConfCount))
				} else {
					result.Warnings = append(result.Warnings, fmt.Sprintf("secrets detected: %d high-confidence instances", highConfCount))
				}
			}

			if s.config.RedactSecrets {
				result.SanitizedPrompt = redact.Value(result.SanitizedPrompt)
			}
		}
	}

	return result, nil
}
