// Package upstream talks to the external text-generation service that
// classifies user messages.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Classifier returns the raw upstream text for a user message.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// ClientConfig configures a ChatCompletionClient.
type ClientConfig struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// ChatCompletionClient calls an OpenAI-style chat completions endpoint.
type ChatCompletionClient struct {
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// maxBodyBytes caps how much of an upstream response body is read.
const maxBodyBytes = 1 << 20

// NewChatCompletionClient builds a client. Per-attempt timeouts come from the
// caller's context, so the default HTTP client carries no timeout of its own.
func NewChatCompletionClient(cfg ClientConfig) (*ChatCompletionClient, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("upstream url is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("upstream model is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &ChatCompletionClient{
		url:         url,
		apiKey:      strings.TrimSpace(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  httpClient,
	}, nil
}

// Classify sends text with the fixed system instruction and returns the
// content of the first choice.
func (c *ChatCompletionClient) Classify(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: text},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &UpstreamError{Cause: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	// A 2xx with an unexpected envelope is handed to the contract parser as
	// text rather than failing the call.
	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body), nil
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	return decoded.Choices[0].Message.Content, nil
}
