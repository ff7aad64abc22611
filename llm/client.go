// Package llm provides an OpenAI-compatible chat-completions client used for
// prompt analysis and draft generation. The client makes a single attempt per
// call and classifies failures as transient or fatal; bounded retry is the
// caller's concern.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/deepnoodle-ai/scribe"
)

const (
	// DefaultEndpoint is the chat-completions URL used when none is
	// configured.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	defaultTimeout = 60 * time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 10 * 1024 * 1024
)

// ClientOptions configures a Client.
type ClientOptions struct {
	Endpoint   string
	Model      string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a chat-completions client.
func NewClient(opts ClientOptions) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		endpoint:   opts.Endpoint,
		model:      opts.Model,
		apiKey:     opts.APIKey,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate implements scribe.Generator with a single chat-completions call.
func (c *Client) Generate(ctx context.Context, prompt string, opts scribe.GenerateOptions) (string, error) {
	requestID := uuid.New().String()

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", &ProviderError{Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ProviderError{Message: fmt.Sprintf("failed to create request: %v", err), Wrapped: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("generation request",
		"request_id", requestID,
		"model", c.model,
		"prompt_bytes", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are worth retrying
		return "", &ProviderError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Transient: true,
			Wrapped:   err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &ProviderError{
			Message:   fmt.Sprintf("failed to read response: %v", err),
			Transient: true,
			Wrapped:   err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		provErr := classifyStatus(resp.StatusCode, string(respBody))
		c.logger.Warn("generation request failed",
			"request_id", requestID,
			"status", resp.StatusCode,
			"transient", provErr.Transient)
		return "", provErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &ProviderError{
			Message: fmt.Sprintf("failed to decode response: %v", err),
			Wrapped: err,
		}
	}
	if parsed.Error != nil {
		return "", &ProviderError{Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Message: "response contained no choices"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
