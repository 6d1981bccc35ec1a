// Package redact removes credentials and other sensitive material from
// strings, URLs and arbitrary JSON-shaped values before they are logged
// or persisted.
package redact

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// SecretType represents different types of secrets that can be detected
type SecretType string

const (
	SecretTypeAnthropicKey SecretType = "anthropic_key"
	SecretTypeOpenAIKey    SecretType = "openai_key"
	SecretTypeGoogleKey    SecretType = "google_key"
	SecretTypeAWSKey       SecretType = "aws_key"
	SecretTypeGitHubToken  SecretType = "github_token"
	SecretTypeSlackToken   SecretType = "slack_token"
	SecretTypeJWT          SecretType = "jwt"
	SecretTypeBearerToken  SecretType = "bearer_token"
	SecretTypeKeyParam     SecretType = "key_param"
)

// Detection represents a detected secret instance
type Detection struct {
	Type       SecretType
	Value      string
	StartPos   int
	EndPos     int
	Confidence float64 // 0.0 to 1.0
}

// pattern order matters: specific vendor prefixes must win over generic
// shapes, so sk-ant- is listed before sk-.
var patterns = []struct {
	typ        SecretType
	re         *regexp.Regexp
	confidence float64
}{
	{SecretTypeAnthropicKey, regexp.MustCompile(`\bsk-ant-[A-Za-z0-9\-_]{20,}\b`), 0.95},
	{SecretTypeOpenAIKey, regexp.MustCompile(`\bsk-[A-Za-z0-9\-_]{20,}\b`), 0.90},
	{SecretTypeGoogleKey, regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`), 0.95},
	{SecretTypeAWSKey, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), 0.95},
	{SecretTypeGitHubToken, regexp.MustCompile(`\bgh[opusr]_[A-Za-z0-9]{36,}\b`), 0.95},
	{SecretTypeSlackToken, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9\-]{10,}\b`), 0.95},
	{SecretTypeJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\b`), 0.90},
	{SecretTypeBearerToken, regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9_\-\.]{20,}\b`), 0.80},
	{SecretTypeKeyParam, regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|token|access_token)=)[^&\s'"]+`), 0.85},
}

// sensitiveKeys are object keys whose values are redacted wholesale,
// regardless of value shape.
var sensitiveKeys = map[string]struct{}{
	"apikey":        {},
	"api_key":       {},
	"api-key":       {},
	"x-api-key":     {},
	"authorization": {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"secret":        {},
	"password":      {},
	"key":           {},
}

const placeholder = "[REDACTED]"

// Detect returns all secret detections in the given text, ordered by
// position. Overlapping detections keep the earlier, more specific match.
func Detect(text string) []Detection {
	var detections []Detection

	for _, p := range patterns {
		for _, match := range p.re.FindAllStringIndex(text, -1) {
			if covered(detections, match[0], match[1]) {
				continue
			}
			detections = append(detections, Detection{
				Type:       p.typ,
				Value:      text[match[0]:match[1]],
				StartPos:   match[0],
				EndPos:     match[1],
				Confidence: p.confidence,
			})
		}
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].StartPos < detections[j].StartPos
	})

	return detections
}

// Has returns true if any secrets are detected
func Has(text string) bool {
	return len(Detect(text)) > 0
}

// Value redacts all detected secrets in a string, replacing each with a
// typed placeholder.
func Value(text string) string {
	detections := Detect(text)
	if len(detections) == 0 {
		return text
	}

	// Replace back to front to avoid index shifts
	result := text
	for i := len(detections) - 1; i >= 0; i-- {
		d := detections[i]
		if d.Type == SecretTypeKeyParam {
			// Keep the parameter name, drop only the value
			if eq := strings.Index(d.Value, "="); eq >= 0 {
				result = result[:d.StartPos+eq+1] + placeholderFor(d.Type) + result[d.EndPos:]
				continue
			}
		}
		result = result[:d.StartPos] + placeholderFor(d.Type) + result[d.EndPos:]
	}

	return result
}

// URL strips credential query parameters from a URL. Invalid URLs fall
// back to pattern redaction of the raw string.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return Value(raw)
	}

	q := u.Query()
	changed := false
	for name := range q {
		if _, ok := sensitiveKeys[strings.ToLower(name)]; ok {
			q.Set(name, placeholder)
			changed = true
		}
	}
	if changed {
		u.RawQuery = q.Encode()
	}

	return Value(u.String())
}

// Object returns a deep copy of a JSON-shaped value (maps, slices,
// scalars) with sensitive fields redacted. Values under sensitive key
// names are replaced wholesale; all other strings run through Value.
// The input is never mutated.
func Object(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if isSensitiveKey(k) {
				out[k] = placeholder
				continue
			}
			out[k] = Object(item)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			if isSensitiveKey(k) {
				out[k] = placeholder
				continue
			}
			out[k] = Value(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Object(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = Value(item)
		}
		return out
	case string:
		return Value(val)
	default:
		// Non-string scalars carry no credential material
		return v
	}
}

// placeholderFor returns the typed redaction placeholder for a secret type
func placeholderFor(t SecretType) string {
	switch t {
	case SecretTypeAnthropicKey:
		return "[ANTHROPIC_KEY_REDACTED]"
	case SecretTypeOpenAIKey:
		return "[OPENAI_KEY_REDACTED]"
	case SecretTypeGoogleKey:
		return "[GOOGLE_KEY_REDACTED]"
	case SecretTypeAWSKey:
		return "[AWS_KEY_REDACTED]"
	case SecretTypeGitHubToken:
		return "[GITHUB_TOKEN_REDACTED]"
	case SecretTypeSlackToken:
		return "[SLACK_TOKEN_REDACTED]"
	case SecretTypeJWT:
		return "[JWT_REDACTED]"
	case SecretTypeBearerToken:
		return "[BEARER_TOKEN_REDACTED]"
	case SecretTypeKeyParam:
		return placeholder
	default:
		return placeholder
	}
}

// isSensitiveKey normalizes a key name and checks it against the
// sensitive key set.
func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// covered checks if a position range overlaps an existing detection
func covered(detections []Detection, start, end int) bool {
	for _, d := range detections {
		if start < d.EndPos && end > d.StartPos {
			return true
		}
	}
	return false
}
