// Package remote implements the HTTP/JSON client for the remote session
// protocol: create an expert session, submit a query to it, and poll the
// resulting task until it reaches a terminal status.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	defaultCreateTimeout = 60 * time.Second
	defaultSubmitTimeout = 300 * time.Second
	defaultStatusTimeout = 30 * time.Second
)

// Error is returned for non-success HTTP statuses from the remote session
// surface. It is fatal to the operation that produced it.
type Error struct {
	Op      string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("remote %s: status %d", e.Op, e.Status)
}

// Client talks to the remote session service. Safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  hclog.Logger

	createTimeout time.Duration
	submitTimeout time.Duration
	statusTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger hclog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithTimeouts(create, submit, status time.Duration) Option {
	return func(c *Client) {
		c.createTimeout = create
		c.submitTimeout = submit
		c.statusTimeout = status
	}
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:       baseURL,
		token:         token,
		http:          &http.Client{},
		logger:        hclog.NewNullLogger(),
		createTimeout: defaultCreateTimeout,
		submitTimeout: defaultSubmitTimeout,
		statusTimeout: defaultStatusTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSessionParams identifies the expert profile and, for genie slaves,
// the parent session the new remote session belongs to.
type CreateSessionParams struct {
	ProfileID             string `json:"profile_id"`
	GenieParentSessionID  string `json:"genie_parent_session_id,omitempty"`
	GenieSlaveProfileID   string `json:"genie_slave_profile_id,omitempty"`
}

// CreateSession creates a remote session and returns its id.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.createTimeout)
	defer cancel()

	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := c.postJSON(ctx, "create session", "/sessions", params, http.StatusCreated, &resp); err != nil {
		return "", err
	}
	c.logger.Debug("created remote session", "session_id", resp.SessionID, "profile_id", params.ProfileID)
	return resp.SessionID, nil
}

// SubmitQuery submits a prompt to a session and returns the task id
// tracking its asynchronous execution.
func (c *Client) SubmitQuery(ctx context.Context, sessionID, prompt, profileID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	body := map[string]string{
		"prompt":     prompt,
		"profile_id": profileID,
	}
	var resp struct {
		TaskID string `json:"task_id"`
	}
	path := fmt.Sprintf("/sessions/%s/query", sessionID)
	if err := c.postJSON(ctx, "submit query", path, body, http.StatusAccepted, &resp); err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

// TaskStatus fetches the current status of a task.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("task status request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "task status", Status: httpResp.StatusCode, Message: readErrorBody(httpResp.Body)}
	}

	var status TaskStatus
	if err := json.NewDecoder(httpResp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	return &status, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, body any, wantStatus int, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", op, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != wantStatus {
		return &Error{Op: op, Status: httpResp.StatusCode, Message: readErrorBody(httpResp.Body)}
	}

	if out != nil {
		if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(data)
}
