package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultBasePath is the REST prefix served by the gateway firmware.
const DefaultBasePath = "/api/v1"

// RequestIDHeader carries the client correlation id of a job submission.
const RequestIDHeader = "X-Request-ID"

// envelope is the {status, data|error} wrapper every endpoint responds with.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
	Message string          `json:"message"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client is a thin HTTP client for the gateway REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given gateway root (e.g. http://192.168.4.1)
// and REST base path.
func NewClient(gatewayURL, basePath string, timeout time.Duration) *Client {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(gatewayURL, "/") + "/" + strings.Trim(basePath, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// Status fetches the coordinator summary and device list.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	if err := c.getJSON(ctx, "/status", &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Health fetches the full health snapshot.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var resp Health
	if err := c.getJSON(ctx, "/health", &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// LQI fetches the cached neighbor link-quality table.
func (c *Client) LQI(ctx context.Context) (LQISnapshot, error) {
	var resp LQISnapshot
	if err := c.getJSON(ctx, "/lqi", &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// SubmitJob queues an async job on the device.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (JobSubmitResponse, error) {
	var resp JobSubmitResponse
	var headers http.Header
	if req.RequestID != "" {
		headers = http.Header{RequestIDHeader: []string{req.RequestID}}
	}
	if err := c.postJSON(ctx, "/jobs", req, headers, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// Job fetches the current state of a job.
func (c *Client) Job(ctx context.Context, id int64) (JobStatus, error) {
	var resp JobStatus
	if err := c.getJSON(ctx, fmt.Sprintf("/jobs/%d", id), &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any, headers http.Header, out any) error {
	payload, err := jsonAPI.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header[k] = v
	}
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	var env envelope
	if text := strings.TrimSpace(string(raw)); text != "" {
		if err := jsonAPI.Unmarshal(raw, &env); err != nil {
			env = envelope{Message: text}
		}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return newHTTPError(res.StatusCode, env, fmt.Sprintf("HTTP %d", res.StatusCode))
	}
	if env.Status != "" && env.Status != "ok" {
		return newHTTPError(res.StatusCode, env, "API error")
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := jsonAPI.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
