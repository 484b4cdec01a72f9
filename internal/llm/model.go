// Package llm wraps the generative model backends behind one structured-output
// call: a system prompt, the user input, optional media and a response schema.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Default model names.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultVisionModel = "gpt-4o"
)

// ErrEmptyResponse is returned when the backend answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Media is an inline document or image sent along with the prompt.
type Media struct {
	MIMEType string
	Data     []byte
}

// Request is one structured-output call.
type Request struct {
	// Name labels the call in logs and metrics, e.g. "router".
	Name   string
	System string
	Input  string
	Media  *Media
	// Schema constrains the JSON the model may return.
	Schema *genai.Schema
}

// Model returns raw JSON text for a request. Implementations hold no
// per-call state and are safe for concurrent use.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f ModelFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// GenerateJSON runs req on m and decodes the cleaned answer into out.
func GenerateJSON(ctx context.Context, m Model, req Request, out any) error {
	raw, err := m.Generate(ctx, req)
	if err != nil {
		return fmt.Errorf("GenerateJSON: %s: %w", req.Name, err)
	}
	clean := CleanJSON(raw)
	if clean == "" {
		return fmt.Errorf("GenerateJSON: %s: %w", req.Name, ErrEmptyResponse)
	}
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("GenerateJSON: %s: unmarshal JSON: %w", req.Name, err)
	}
	return nil
}

// CleanJSON strips Markdown fences and any chatter around the outermost JSON
// object or array.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = strings.TrimSpace(s[:idx])
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
