package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultAnthropicModel   = "claude-sonnet-4-20250514"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"

	anthropicVersion = "2023-06-01"
)

// anthropicClient is the Generator backed by the Anthropic Messages API.
type anthropicClient struct {
	apiKey     string
	model      string
	endpoint   string
	maxTokens  int
	httpClient *http.Client
}

// NewAnthropicClient returns a Generator that calls the Anthropic API.
//   - cfg.APIKey:  your ANTHROPIC_API_KEY
//   - cfg.Model:   defaults to claude-sonnet-4-20250514
//   - cfg.BaseURL: defaults to https://api.anthropic.com (tests point it at httptest)
func NewAnthropicClient(cfg ClientConfig) Generator {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultAnthropicBaseURL
	}
	return &anthropicClient{
		apiKey:     cfg.APIKey,
		model:      model,
		endpoint:   strings.TrimRight(base, "/") + "/v1/messages",
		maxTokens:  cfg.maxTokens(),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ─── ANTHROPIC API SHAPES ─────────────────────────────────────────────────────

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// ─── IMPLEMENTATION ───────────────────────────────────────────────────────────

// Generate sends prompt as the only user message. No system prompt is set;
// the persona lives in the prompt itself.
func (c *anthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("ai: build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: http request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB cap
	if err != nil {
		return "", fmt.Errorf("ai: read response body: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("ai: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
		}
		return "", fmt.Errorf("ai: unmarshal response: %w", err)
	}

	if parsed.Error != nil {
		return "", fmt.Errorf("ai: API error %s: %s", parsed.Error.Type, parsed.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai: unexpected status %d: %.200s", resp.StatusCode, string(respBytes))
	}

	segments := make([]string, 0, len(parsed.Content))
	for _, block := range parsed.Content {
		if block.Type == "text" {
			segments = append(segments, block.Text)
		}
	}

	text := strings.TrimSpace(strings.Join(segments, "\n"))
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
