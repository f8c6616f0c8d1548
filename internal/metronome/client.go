// Package metronome provides a typed client for the Metronome billing API.
//
// The client never retries. Every failure is returned as one of the
// package's sentinel errors, optionally wrapping an *APIError.
package metronome

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmylchreest/vocalis-api/internal/version"
)

const maxResponseSize = 4 << 20 // 4MB

// CallObserver receives the outcome of every provider call.
type CallObserver interface {
	ObserveProviderCall(op string, outcome string, duration time.Duration)
}

// Client communicates with the Metronome API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	observer   CallObserver
	logger     *slog.Logger
}

// ClientConfig holds configuration for the Metronome client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration // default 30s
	Observer CallObserver
	Logger   *slog.Logger

	// HTTPClient overrides the default client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// NewClient creates a new Metronome client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		observer:   cfg.Observer,
		logger:     logger.With("component", "metronome"),
	}
}

// Configured returns true if the client has credentials.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.baseURL != ""
}

// errorBody covers the error envelopes the API returns.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Error   *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveProviderCall(op, callOutcome(err), time.Since(start))
		}
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrProviderUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: %w: reading response: %w", op, ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil {
			apiErr.Message, apiErr.Code = eb.Message, eb.Code
			if eb.Error != nil {
				if apiErr.Message == "" {
					apiErr.Message = eb.Error.Message
				}
				if apiErr.Code == "" {
					apiErr.Code = eb.Error.Code
				}
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		c.logger.Debug("provider rejected request",
			"op", op,
			"status", resp.StatusCode,
			"code", apiErr.Code,
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: %w: invalid response body: %w", op, ErrProviderRejected, err)
	}
	return nil
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProviderUnavailable):
		return "unavailable"
	default:
		return "rejected"
	}
}
