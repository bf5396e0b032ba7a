// Package client is the consumer side of the gallery API: an HTTP client for
// the search endpoint and the per-session search Controller that drives it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/store"
)

// ErrSearchFailed covers both server-reported failures and transport errors.
var ErrSearchFailed = errors.New("search failed")

const maxErrorBody = 64 << 10

// Result is one page as returned by GET /api/search.
type Result struct {
	Items      []store.Media
	Pagination query.Pagination
}

func (r *Result) clone() *Result {
	out := &Result{Items: make([]store.Media, len(r.Items)), Pagination: r.Pagination}
	for i, m := range r.Items {
		m.Tags = append([]string{}, m.Tags...)
		out.Items[i] = m
	}
	return out
}

// Searcher is the retrieval dependency of a Controller. Implementations must
// stop and return the context error once ctx is cancelled.
type Searcher interface {
	Search(ctx context.Context, q query.SearchQuery) (*Result, error)
}

// APIError is a structured failure response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// ErrorMessage is the user-visible text for err.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return ErrSearchFailed.Error()
}

type Client struct {
	baseURL string
	http    *http.Client
	apiKey  string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout bounds each request. Zero, the default, leaves requests
// unbounded apart from cancellation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success    bool              `json:"success"`
	Data       json.RawMessage   `json:"data"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func (c *Client) Search(ctx context.Context, q query.SearchQuery) (*Result, error) {
	var items []store.Media
	env, err := c.do(ctx, http.MethodGet, "/api/search?"+q.Values().Encode(), nil, &items)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	res := &Result{Items: items}
	if res.Items == nil {
		res.Items = []store.Media{}
	}
	if env.Pagination != nil {
		res.Pagination = *env.Pagination
	}
	return res, nil
}

// CreateRequest is the body of POST /api/media.
type CreateRequest struct {
	Title        string         `json:"title"`
	Description  string         `json:"description,omitempty"`
	URL          string         `json:"url"`
	ThumbnailURL string         `json:"thumbnailUrl"`
	Type         string         `json:"type"`
	Tags         []string       `json:"tags,omitempty"`
	Metadata     store.Metadata `json:"metadata"`
}

func (c *Client) CreateMedia(ctx context.Context, in CreateRequest) (*store.Media, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var m store.Media
	if _, err := c.do(ctx, http.MethodPost, "/api/media", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Tags(ctx context.Context, prefix string) ([]string, error) {
	path := "/api/tags"
	if prefix != "" {
		path += "?prefix=" + url.QueryEscape(prefix)
	}
	var tags []string
	if _, err := c.do(ctx, http.MethodGet, path, nil, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, data any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			apiErr.Code = env.Code
			apiErr.Message = env.Message
		}
		return nil, apiErr
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return &env, nil
}
