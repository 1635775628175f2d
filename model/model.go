package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrEmptyResponse is returned by Collect when the model finished without text.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Request captures the normalized model input produced by task functions.
type Request struct {
	Instructions string `json:"instructions"` // System style instructions
	Prompt       string `json:"prompt"`       // User prompt
	MaxTokens    int64  `json:"max_tokens,omitempty"`
	Stream       bool   `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"` // Indicates if this is a partial response
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required by task functions to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains a Generate call and returns the final text. Partial chunks
// are concatenated when the provider does not emit a non-partial response.
func Collect(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		partial strings.Builder
		final   string
		gotFull bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			final = r.Text
			gotFull = true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	if !gotFull {
		final = partial.String()
	}

	if strings.TrimSpace(final) == "" {
		return "", ErrEmptyResponse
	}

	return final, nil
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	err       error
	calls     []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:     name,
			Provider: provider,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWith makes every subsequent Generate call emit err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the requests received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	failErr := m.err
	full := m.responses[req.Prompt]
	m.mu.Unlock()

	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if failErr != nil {
			errCh <- failErr
			return
		}
		if req.Prompt == "" {
			errCh <- fmt.Errorf("no prompt provided")
			return
		}
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", req.Prompt)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		respCh <- Response{
			Partial:      false,
			Text:         full,
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
