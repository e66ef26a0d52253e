package finalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/gatherd/internal/redact"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-3-5-sonnet-20241022"
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second

	anthropicVersion = "2023-06-01"
)

// AnthropicConfig configures the hosted summarizer.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// AnthropicSummarizer calls the Anthropic messages API. Outbound prompts
// pass through the redactor first so collector output cannot leak
// credentials to the API.
type AnthropicSummarizer struct {
	cfg        AnthropicConfig
	httpClient *http.Client
	redactor   redact.Redactor
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropicSummarizer validates the config and builds the client.
func NewAnthropicSummarizer(cfg AnthropicConfig, redactor redact.Redactor) (*AnthropicSummarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic summarizer requires an API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if redactor == nil {
		redactor = redact.Default()
	}

	return &AnthropicSummarizer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		redactor:   redactor,
	}, nil
}

// Summarize implements Summarizer.
func (a *AnthropicSummarizer) Summarize(ctx context.Context, queryText, aggregate string) (string, error) {
	system := fmt.Sprintf(`You condense gathered workspace context for a developer's request.

The developer asked: %q

Rewrite the context below into a focused digest:
- Keep every detail relevant to the request, especially failures, diagnostics, and recent changes
- Drop sections with no bearing on the request
- Preserve identifiers, file paths, and error text verbatim
- Keep section structure when it aids scanning

Produce ONLY the digest, with no preamble.`, a.redactor.Redact(queryText))

	req := messagesRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: 0.2,
		System:      system,
		Messages: []message{
			{Role: "user", Content: a.redactor.Redact(aggregate)},
		},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding summarize request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building summarize request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", a.cfg.APIKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("summarize request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading summarize response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed apiError
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("summarize API status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", fmt.Errorf("summarize API status %d", resp.StatusCode)
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decoding summarize response: %w", err)
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return "", fmt.Errorf("summarize API returned no text")
	}

	return parsed.Content[0].Text, nil
}

var _ Summarizer = (*AnthropicSummarizer)(nil)
