package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"user_manager/internal/observability"
	"user_manager/internal/user"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://jsonplaceholder.typicode.com"

// Compile-time interface check.
var _ user.Directory = (*Client)(nil)

// ErrNotFound is returned when the remote answers 404.
var ErrNotFound = errors.New("remote: user not found")

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the demo users REST API.
type Client struct {
	http    *http.Client
	baseURL string
	metrics *observability.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.http = hc
	}
}

func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithMetrics(m *observability.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListUsers fetches the full remote user list.
func (c *Client) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := c.do(ctx, "list", http.MethodGet, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser posts a new user; the remote assigns the ID.
func (c *Client) CreateUser(ctx context.Context, in user.User) (*user.User, error) {
	in.ID = 0
	var created user.User
	if err := c.do(ctx, "create", http.MethodPost, "/users", in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int, u user.User) (*user.User, error) {
	u.ID = id
	var updated user.User
	if err := c.do(ctx, "update", http.MethodPut, userPath(id), u, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	return c.do(ctx, "delete", http.MethodDelete, userPath(id), nil, nil)
}

func userPath(id int) string {
	return "/users/" + strconv.Itoa(id)
}

// do performs one JSON round trip and records its outcome.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	status := "error"
	defer func() {
		if c.metrics != nil {
			c.metrics.RemoteRequestsTotal.WithLabelValues(op, status).Inc()
			c.metrics.RemoteRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		}
	}()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("remote: marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("remote: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", op, err)
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"operation": op,
			"status":    resp.StatusCode,
		}).Warn("Remote users API returned an error")
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("remote: decode %s response: %w", op, err)
	}
	return nil
}
