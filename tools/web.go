package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deepnoodle-ai/scribe/retry"
)

const webSearchMaxBody = 4 * 1024 * 1024

// WebSearchOptions configures a WebSearchTool.
type WebSearchOptions struct {
	// Endpoint is the search API base URL. The query is passed as the "q"
	// parameter.
	Endpoint string

	// Headers are added to every request (API keys and the like).
	Headers map[string]string

	// Timeout is the per-request timeout. Defaults to 30 seconds.
	Timeout time.Duration

	HTTPClient *http.Client
}

// WebSearchTool queries an HTTP search API for topic material. HTTP 429 and
// 5xx responses and network errors are returned as recoverable so the
// research stage retries them; 4xx responses are final.
type WebSearchTool struct {
	name       string
	endpoint   string
	headers    map[string]string
	httpClient *http.Client
}

// NewWebSearchTool creates a web search tool registered under name.
func NewWebSearchTool(name string, opts WebSearchOptions) (*WebSearchTool, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint cannot be empty")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &WebSearchTool{
		name:       name,
		endpoint:   opts.Endpoint,
		headers:    opts.Headers,
		httpClient: opts.HTTPClient,
	}, nil
}

func (t *WebSearchTool) Name() string {
	return t.name
}

func (t *WebSearchTool) Search(ctx context.Context, topic string) (string, error) {
	endpoint, err := url.Parse(t.endpoint)
	if err != nil {
		return "", retry.NewNonRecoverableError(fmt.Errorf("invalid search endpoint: %w", err))
	}
	query := endpoint.Query()
	query.Set("q", topic)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return "", retry.NewNonRecoverableError(fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range t.headers {
		req.Header.Set(key, value)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", retry.NewRecoverableError(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, webSearchMaxBody))
	if err != nil {
		return "", retry.NewRecoverableError(fmt.Errorf("failed to read search response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", retry.NewRecoverableError(fmt.Errorf("search returned status %d", resp.StatusCode))
	default:
		return "", retry.NewNonRecoverableError(fmt.Errorf("search returned status %d", resp.StatusCode))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return renderJSONResults(body, topic)
	}
	return string(body), nil
}

// renderJSONResults flattens the common {"results": [{title, snippet}...]}
// response shape into readable research notes.
func renderJSONResults(body []byte, topic string) (string, error) {
	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			URL     string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Results) == 0 {
		// Unknown shape, pass the raw body through
		return string(body), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", topic)
	for _, result := range parsed.Results {
		fmt.Fprintf(&b, "- %s\n  %s\n", result.Title, result.Snippet)
		if result.URL != "" {
			fmt.Fprintf(&b, "  %s\n", result.URL)
		}
	}
	return b.String(), nil
}
