// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxTokens   = 1024
	defaultTemperature = 0.4
)

// Generator turns a prompt into narrative text
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OpenAIOptions configures an OpenAIGenerator
type OpenAIOptions struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables client-side rate limiting
	MaxRetries        int
}

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint
type OpenAIGenerator struct {
	baseURL     string
	apiKey      string
	model       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	baseBackoff time.Duration
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// retryableError marks transient failures
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryableError(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// NewOpenAIGenerator creates a new chat completions generator
func NewOpenAIGenerator(opts OpenAIOptions) (*OpenAIGenerator, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("narrative API key required")
	}
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("narrative base URL required")
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("narrative model required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &OpenAIGenerator{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  maxRetries,
		baseBackoff: defaultBaseBackoff,
	}, nil
}

// Generate sends the prompt and returns the first choice's content
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}

		text, err := g.doRequest(ctx, req)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (g *OpenAIGenerator) doRequest(ctx context.Context, req chatRequest) (string, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("failed to make request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d)", resp.StatusCode)}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("narrative API error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("narrative API error: status %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty response from narrative API")
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// MockGenerator is a mock implementation for testing and offline use
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu        sync.Mutex
	callCount int
	prompts   []string
}

// Generate calls the mock function
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return mockNarrative(prompt), nil
}

// CallCount returns how many times Generate was called
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the most recent prompt, or "" if none
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// mockNarrative echoes the summary lines of the prompt
func mockNarrative(prompt string) string {
	var lines []string
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "Overall trend:") || strings.HasPrefix(line, "Average healing score:") {
			lines = append(lines, line)
		}
	}
	lines = append(lines, Disclaimer)
	return strings.Join(lines, "\n")
}
