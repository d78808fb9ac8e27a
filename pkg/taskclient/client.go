// Package taskclient is the Go client for the Todo Forge API. It wraps the
// REST surface in a typed client and provides the per-session task cache
// every view derives from.
package taskclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"todoforge/pkg/completion"
)

// ErrUpstreamTimeout marks a request that did not complete within the
// client timeout. Mutations are never retried on it: a timed-out create
// could have landed, and retrying would duplicate the task.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// Task is the wire shape of a task. Completed is kept untyped because
// older servers emit "Yes"/"No" strings; Done() applies the shared
// normalization rule.
type Task struct {
	ID          int         `json:"id"`
	OwnerID     int         `json:"ownerId"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Priority    string      `json:"priority"`
	DueDate     string      `json:"dueDate"`
	Completed   interface{} `json:"completed"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Done reports the canonical completion state.
func (t Task) Done() bool {
	return completion.Normalize(t.Completed)
}

// Due parses the due date if one is set. A blank due date is "absent",
// never an error.
func (t Task) Due() (time.Time, bool) {
	raw := strings.TrimSpace(t.DueDate)
	if raw == "" {
		return time.Time{}, false
	}
	if d, err := time.Parse("2006-01-02", raw); err == nil {
		return d, true
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// APIError is a failure reported by the service, with the stable fields
// the client switches on.
type APIError struct {
	Status  int
	Code    string
	Message string
	Errors  []string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("api error %d: %s (%s)", e.Status, e.Message, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsUnauthenticated reports whether the error means the session is dead
// and the user must log in again.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func IsValidation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && len(apiErr.Errors) > 0
}

func IsDuplicate(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

type envelope struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    string   `json:"code"`
	Token   string   `json:"token"`
	Task    *Task    `json:"task"`
	Tasks   []Task   `json:"tasks"`
	Errors  []string `json:"errors"`
}

type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		// Backward-compatibility shim: some deployments answered list
		// requests with a bare array instead of the envelope.
		if err := json.Unmarshal(trimmed, &env.Tasks); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		env.Success = true
	} else if len(trimmed) > 0 {
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Status:  resp.StatusCode,
			Code:    env.Code,
			Message: env.Message,
			Errors:  env.Errors,
		}
	}
	return &env, nil
}

// Register creates an account and starts a session with the returned token.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	env, err := c.do(ctx, "POST", "/api/v1/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	c.Token = env.Token
	return nil
}

// Login authenticates and stores the bearer token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	env, err := c.do(ctx, "POST", "/api/v1/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	c.Token = env.Token
	return nil
}

// Logout discards the session token.
func (c *Client) Logout() {
	c.Token = ""
}

func (c *Client) Tasks(ctx context.Context) ([]Task, error) {
	env, err := c.do(ctx, "GET", "/api/v1/tasks/", nil)
	if err != nil {
		return nil, err
	}
	if env.Tasks == nil {
		return []Task{}, nil
	}
	return env.Tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, fields map[string]interface{}) (*Task, error) {
	env, err := c.do(ctx, "POST", "/api/v1/tasks/", fields)
	if err != nil {
		return nil, err
	}
	return env.Task, nil
}

func (c *Client) GetTask(ctx context.Context, id int) (*Task, error) {
	env, err := c.do(ctx, "GET", fmt.Sprintf("/api/v1/tasks/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return env.Task, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int, fields map[string]interface{}) (*Task, error) {
	env, err := c.do(ctx, "PUT", fmt.Sprintf("/api/v1/tasks/%d", id), fields)
	if err != nil {
		return nil, err
	}
	return env.Task, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/api/v1/tasks/%d", id), nil)
	return err
}
