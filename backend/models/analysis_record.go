package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisStatus represents the status of a beat analysis request
type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// AnalysisRecord is the audit record for one beat analysis request.
// Prompt holds the sanitized prompt only; raw prompts never reach the
// audit store.
type AnalysisRecord struct {
	ID        uuid.UUID      `json:"id"`
	RequestID string         `json:"request_id"`
	Status    AnalysisStatus `json:"status"`

	// Provider details
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Template string `json:"template"`

	// Request content (redacted)
	Prompt string `json:"prompt"`

	// Response content
	Response     *string `json:"response,omitempty"`
	FinishReason *string `json:"finish_reason,omitempty"`

	// Metrics
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	LatencyMs        int     `json:"latency_ms"`
	Cost             float64 `json:"cost"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error handling
	ErrorCode    *string `json:"error_code,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

// NewAnalysisRecord creates a new AnalysisRecord instance
func NewAnalysisRecord(provider, model, template, sanitizedPrompt string) *AnalysisRecord {
	return &AnalysisRecord{
		ID:        uuid.New(),
		RequestID: uuid.New().String(),
		Status:    AnalysisStatusPending,
		Provider:  provider,
		Model:     model,
		Template:  template,
		Prompt:    sanitizedPrompt,
		CreatedAt: time.Now(),
	}
}

// MarkAsProcessing marks the record as processing
func (r *AnalysisRecord) MarkAsProcessing() {
	r.Status = AnalysisStatusProcessing
	now := time.Now()
	r.StartedAt = &now
}

// MarkAsCompleted marks the record as completed
func (r *AnalysisRecord) MarkAsCompleted(response, finishReason string, promptTokens, completionTokens, latencyMs int, cost float64) {
	r.Status = AnalysisStatusCompleted
	r.Response = &response
	r.FinishReason = &finishReason
	r.PromptTokens = promptTokens
	r.CompletionTokens = completionTokens
	r.TotalTokens = promptTokens + completionTokens
	r.LatencyMs = latencyMs
	r.Cost = cost
	now := time.Now()
	r.CompletedAt = &now
}

// MarkAsFailed marks the record as failed
func (r *AnalysisRecord) MarkAsFailed(errorCode, errorMessage string) {
	r.Status = AnalysisStatusFailed
	r.ErrorCode = &errorCode
	r.ErrorMessage = &errorMessage
	now := time.Now()
	r.CompletedAt = &now
}

// Duration returns the wall time between creation and completion
func (r *AnalysisRecord) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.CreatedAt)
}
