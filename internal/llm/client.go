// Package llm is the gateway to the hosted chat-completions endpoint. One
// HTTP POST per call, no retries, no streaming; every failure mode (network,
// non-2xx, malformed or empty body) surfaces as a CompletionError the
// conversation layer recovers from.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/inkrlabs/inkr/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat-completions request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer is the completion collaborator boundary; substituted with fakes
// in tests.
type Completer interface {
	Complete(messages []Message) (string, error)
}

// CompletionError reports a failed completion call. Status is the HTTP
// status code when the endpoint answered, zero otherwise.
type CompletionError struct {
	Status int
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("completion http %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("completion: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func completionErr(status int, err error) error {
	return &CompletionError{Status: status, Err: err}
}

type Client struct {
	url         string
	apiKey      string
	bearer      bool
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient builds the endpoint client from provider config. Type "azure"
// (default) composes the deployment URL and authenticates via the api-key
// header; "openai" appends /chat/completions to the base URL and uses a
// bearer token.
func NewClient(cfg config.Provider) *Client {
	c := &Client{
		apiKey:      cfg.APIKey,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
	if c.maxTokens <= 0 {
		c.maxTokens = config.DefaultMaxTokens
	}
	if c.temperature <= 0 {
		c.temperature = config.DefaultTemperature
	}

	switch cfg.Type {
	case "openai":
		c.bearer = true
		c.url = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/") + "/chat/completions"
	default: // "azure" or empty
		endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
		c.url = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			endpoint, cfg.Deployment, cfg.APIVersion)
	}
	return c
}

// SetBaseURL overrides the request URL (for testing).
func (c *Client) SetBaseURL(url string) {
	c.url = url
}

func (c *Client) Complete(messages []Message) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", completionErr(0, fmt.Errorf("missing api key"))
	}

	payload, err := json.Marshal(map[string]any{
		"messages":    messages,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	})
	if err != nil {
		return "", completionErr(0, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", completionErr(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", completionErr(0, fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", completionErr(resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", completionErr(resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(respBody))))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", completionErr(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if len(decoded.Choices) == 0 {
		return "", completionErr(resp.StatusCode, fmt.Errorf("empty choices in response"))
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", completionErr(resp.StatusCode, fmt.Errorf("empty content in response"))
	}
	return content, nil
}
