package sdk

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

	"github.com/Oudwins/shellrunner/internals/env"
	"github.com/Oudwins/shellrunner/internals/schemas"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

var ErrShutdownUnsupported = errors.New("shutdown unsupported")

type ErrorResponse struct {
	Status  string              `json:"status"`
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     map[string][]string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("unexpected status: %d", e.StatusCode)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(opts ...Option) *Client {
	envs := env.Get()
	client := &Client{
		baseURL: strings.TrimRight(envs.BASE_URL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/version", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *Client) Shutdown(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/shutdown", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrShutdownUnsupported
	}
	return responseError(resp)
}

func (c *Client) ListTasks(ctx context.Context) ([]schemas.Task, error) {
	var payload schemas.TaskListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/tasks", nil, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, request schemas.TaskCreateRequest) (*schemas.Task, error) {
	var payload schemas.Task
	if err := c.doJSON(ctx, http.MethodPost, "/tasks", request, &payload, http.StatusCreated); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) UpdateTask(ctx context.Context, id int64, request schemas.TaskUpdateRequest) (*schemas.Task, error) {
	var payload schemas.Task
	if err := c.doJSON(ctx, http.MethodPut, taskPath(id), request, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(id), nil, nil, http.StatusNoContent)
}

func (c *Client) TaskLogs(ctx context.Context, id int64) (*schemas.TaskLogsResponse, error) {
	var payload schemas.TaskLogsResponse
	if err := c.doJSON(ctx, http.MethodGet, taskPath(id)+"/logs", nil, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) RunStatus(ctx context.Context) (*schemas.RunSnapshot, error) {
	var payload schemas.RunSnapshot
	if err := c.doJSON(ctx, http.MethodGet, "/run", nil, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) StartRun(ctx context.Context) (*schemas.RunStartResponse, error) {
	var payload schemas.RunStartResponse
	if err := c.doJSON(ctx, http.MethodPost, "/run", nil, &payload, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) StopRun(ctx context.Context) (*schemas.RunSnapshot, error) {
	var payload schemas.RunSnapshot
	if err := c.doJSON(ctx, http.MethodPost, "/run/stop", nil, &payload, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Events returns the events published after since. With wait set the server
// holds the request until at least one event exists or its wait window ends.
func (c *Client) Events(ctx context.Context, since uint64, wait bool) (*schemas.EventsResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if wait {
		query.Set("wait", "true")
	}
	var payload schemas.EventsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/events?"+query.Encode(), nil, &payload, http.StatusOK); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (c *Client) CreateReport(ctx context.Context) (*schemas.ReportResponse, error) {
	var payload schemas.ReportResponse
	if err := c.doJSON(ctx, http.MethodPost, "/reports", nil, &payload, http.StatusCreated); err != nil {
		return nil, err
	}
	return &payload, nil
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

func (c *Client) doJSON(ctx context.Context, method, path string, request any, response any, okStatus int) error {
	var body io.Reader
	if request != nil {
		data, err := json.Marshal(request)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != okStatus {
		return responseError(resp)
	}
	if response == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(response)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func responseError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var payload ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && (payload.Code != "" || payload.Message != "") {
		return &APIError{StatusCode: resp.StatusCode, Code: payload.Code, Message: payload.Message, Fields: payload.Errors}
	}

	return fmt.Errorf("unexpected status: %s", resp.Status)
}
