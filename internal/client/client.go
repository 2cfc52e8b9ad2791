// Package client is a typed HTTP client for the taskflow API, used by the
// CLI subcommands and the dashboard.
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
	"strconv"
	"strings"
	"time"

	"github.com/marcus/taskflow/internal/api"
	"github.com/marcus/taskflow/internal/stats"
	"github.com/marcus/taskflow/internal/tasks"
	"github.com/marcus/taskflow/internal/workflows"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 10 * time.Second

// Error is a non-2xx response from the server.
type Error struct {
	Status  int
	Message string
	Errors  []string
}

func (e *Error) Error() string {
	switch {
	case len(e.Errors) > 0:
		return fmt.Sprintf("%d: %s", e.Status, strings.Join(e.Errors, "; "))
	case e.Message != "":
		return fmt.Sprintf("%d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == http.StatusUnauthorized
}

// Client talks to one taskflow server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for baseURL (e.g. "http://localhost:5000").
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (api.Health, error) {
	var out api.Health
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &out)
	return out, err
}

// CreateTask calls POST /api/tasks.
func (c *Client) CreateTask(ctx context.Context, cand tasks.Candidate) (api.TaskCreated, error) {
	var out api.TaskCreated
	err := c.do(ctx, http.MethodPost, "/api/tasks", nil, cand, &out)
	return out, err
}

// ListTasks calls GET /api/tasks with the non-empty filter fields.
func (c *Client) ListTasks(ctx context.Context, f tasks.Filter) (api.TaskList, error) {
	q := url.Values{}
	setIf(q, "status", f.Status)
	setIf(q, "assigned_to", f.AssignedTo)
	setIf(q, "priority", f.Priority)

	var out api.TaskList
	err := c.do(ctx, http.MethodGet, "/api/tasks", q, nil, &out)
	return out, err
}

// GetTask calls GET /api/tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id int) (tasks.Task, error) {
	var out tasks.Task
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+strconv.Itoa(id), nil, nil, &out)
	return out, err
}

// UpdateTask calls PATCH /api/tasks/{id}.
func (c *Client) UpdateTask(ctx context.Context, id int, p tasks.Patch) (api.TaskUpdated, error) {
	var out api.TaskUpdated
	err := c.do(ctx, http.MethodPatch, "/api/tasks/"+strconv.Itoa(id), nil, p, &out)
	return out, err
}

// CreateWorkflow calls POST /api/workflows.
func (c *Client) CreateWorkflow(ctx context.Context, d workflows.Definition) (api.WorkflowCreated, error) {
	var out api.WorkflowCreated
	err := c.do(ctx, http.MethodPost, "/api/workflows", nil, d, &out)
	return out, err
}

// ListWorkflows calls GET /api/workflows.
func (c *Client) ListWorkflows(ctx context.Context) (api.WorkflowList, error) {
	var out api.WorkflowList
	err := c.do(ctx, http.MethodGet, "/api/workflows", nil, nil, &out)
	return out, err
}

// GetWorkflow calls GET /api/workflows/{id}.
func (c *Client) GetWorkflow(ctx context.Context, id int) (workflows.Workflow, error) {
	var out workflows.Workflow
	err := c.do(ctx, http.MethodGet, "/api/workflows/"+strconv.Itoa(id), nil, nil, &out)
	return out, err
}

// Stats calls GET /api/stats.
func (c *Client) Stats(ctx context.Context) (stats.Report, error) {
	var out stats.Report
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, nil, &out)
	return out, err
}

// StatsHistory calls GET /api/stats/history. A zero limit uses the server default.
func (c *Client) StatsHistory(ctx context.Context, limit int) (api.StatsHistory, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.StatsHistory
	err := c.do(ctx, http.MethodGet, "/api/stats/history", q, nil, &out)
	return out, err
}

// Audit calls GET /api/audit.
func (c *Client) Audit(ctx context.Context, entityType string, limit int) (api.AuditList, error) {
	q := url.Values{}
	setIf(q, "entity_type", entityType)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.AuditList
	err := c.do(ctx, http.MethodGet, "/api/audit", q, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(api.APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		var payload struct {
			Error  string   `json:"error"`
			Errors []string `json:"errors"`
		}
		if json.Unmarshal(data, &payload) == nil {
			apiErr.Message = payload.Error
			apiErr.Errors = payload.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
