package utils

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Template    string   `validate:"required"`
	Model       string   `validate:"required"`
	Scenes      []string `validate:"required,min=1"`
	MaxTokens   int      `validate:"omitempty,gte=1"`
	Temperature float64  `validate:"omitempty,gte=0,lte=2"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      sampleRequest
		wantFields []string
	}{
		{
			name: "valid request",
			input: sampleRequest{
				Template:    "save-the-cat",
				Model:       "claude-sonnet-4-20250514",
				Scenes:      []string{"scene one"},
				MaxTokens:   1000,
				Temperature: 0.7,
			},
		},
		{
			name: "missing required fields",
			input: sampleRequest{
				Scenes: []string{"scene one"},
			},
			wantFields: []string{"Template", "Model"},
		},
		{
			name: "empty scene list",
			input: sampleRequest{
				Template: "save-the-cat",
				Model:    "claude-sonnet-4-20250514",
			},
			wantFields: []string{"Scenes"},
		},
		{
			name: "temperature out of range",
			input: sampleRequest{
				Template:    "save-the-cat",
				Model:       "claude-sonnet-4-20250514",
				Scenes:      []string{"scene one"},
				Temperature: 3.5,
			},
			wantFields: []string{"Temperature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)

			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("Expected error but got none")
			}

			var valErr *ValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("Expected ValidationError, got %T", err)
			}

			for _, field := range tt.wantFields {
				if _, ok := valErr.Fields[field]; !ok {
					t.Errorf("Fields missing %s: %v", field, valErr.Fields)
				}
			}

			if !strings.Contains(valErr.Message, "validation failed") {
				t.Errorf("Message = %q", valErr.Message)
			}
		})
	}
}

func TestValidationError_Details(t *testing.T) {
	valErr := &ValidationError{
		Message: "validation failed: Model",
		Fields:  map[string]string{"Model": "Model is required"},
	}

	details := valErr.Details()

	if details["Model"] != "Model is required" {
		t.Errorf("details = %v", details)
	}

	if valErr.Error() != valErr.Message {
		t.Errorf("Error() = %q, want %q", valErr.Error(), valErr.Message)
	}
}
