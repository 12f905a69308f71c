package apiclient

import (
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

	"github.com/google/uuid"
	"github.com/runesmith/dashboard/internal/models"
	"github.com/runesmith/dashboard/internal/normalize"
)

// BasePath is the backend API prefix every endpoint lives under.
const BasePath = "/api/v1"

// UnknownJobName is reported when a successful forge response carries no job name.
const UnknownJobName = "unknown"

// Client is an HTTP client for the forge backend REST API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client targeting endpoint. token is sent as a Bearer
// credential when non-empty.
func NewClient(endpoint, token string, logger *slog.Logger) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}, nil
}

// APIError is returned for any non-2xx backend response.
type APIError struct {
	StatusCode int
	// RetryAfter is the raw Retry-After header, empty when absent.
	RetryAfter string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the backend answered 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// StatusCode extracts the HTTP status from an *APIError in err's chain. It
// returns 0 for transport failures.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func (c *Client) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+BasePath+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "backend request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.String("request_id", requestID),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: strings.TrimSpace(resp.Header.Get("Retry-After")),
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// getJSON fetches path and decodes the body into a generic JSON value.
func (c *Client) getJSON(ctx context.Context, path string) (any, error) {
	resp, err := c.do(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return v, nil
}

// FetchStatus returns the current node statuses.
func (c *Client) FetchStatus(ctx context.Context) ([]models.NodeStatus, error) {
	v, err := c.getJSON(ctx, "/status")
	if err != nil {
		return nil, err
	}
	return normalize.Nodes(v), nil
}

// FetchArtifacts returns either the pending or the completed artifact set,
// in backend order.
func (c *Client) FetchArtifacts(ctx context.Context, completed bool) ([]models.Artifact, error) {
	v, err := c.getJSON(ctx, fmt.Sprintf("/artifacts?completed=%t", completed))
	if err != nil {
		return nil, err
	}
	return normalize.Artifacts(v), nil
}

// FetchItems returns the forgeable item catalog.
func (c *Client) FetchItems(ctx context.Context) ([]models.Item, error) {
	v, err := c.getJSON(ctx, "/items")
	if err != nil {
		return nil, err
	}
	return normalize.Items(v), nil
}

// ForgeResult is the outcome of a successful forge request.
type ForgeResult struct {
	JobName string `json:"job_name"`
}

// Forge submits a new order. A 429 surfaces as an *APIError with
// RateLimited() true; the client never retries.
func (c *Client) Forge(ctx context.Context) (*ForgeResult, error) {
	resp, err := c.do(ctx, http.MethodPost, "/forge")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out ForgeResult
	// Success is decided by status alone; an unreadable body only loses the name.
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if strings.TrimSpace(out.JobName) == "" {
		out.JobName = UnknownJobName
	}
	return &out, nil
}
