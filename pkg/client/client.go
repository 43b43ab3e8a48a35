package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gridsync/pkg/config"
	"gridsync/pkg/transfer"
)

// HTTPClient implements the transfer.Client contract against the transfer
// service's REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(cfg *config.ServiceConfig) (*HTTPClient, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme: %q", base.Scheme)
	}

	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 5 * time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(base.String(), "/"),
		token:      cfg.Token,
		httpClient: httpClient,
	}, nil
}

type listResponse struct {
	Data []transfer.Entry `json:"DATA"`
}

type eventListResponse struct {
	Data []transfer.Event `json:"DATA"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type submitRequest struct {
	SourceEndpoint      string                  `json:"source_endpoint"`
	DestinationEndpoint string                  `json:"destination_endpoint"`
	Deadline            string                  `json:"deadline"`
	VerifyChecksum      bool                    `json:"verify_checksum"`
	Items               []transfer.ManifestItem `json:"items"`
}

type updateTaskRequest struct {
	Deadline string `json:"deadline"`
}

func (c *HTTPClient) ListDirectory(ctx context.Context, endpoint, path string) ([]transfer.Entry, error) {
	query := url.Values{"path": {path}}
	route := fmt.Sprintf("/operation/endpoint/%s/ls", url.PathEscape(endpoint))

	var out listResponse
	if err := c.do(ctx, http.MethodGet, route, query, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) Submit(ctx context.Context, manifest *transfer.Manifest) (*transfer.SubmitResponse, error) {
	req := submitRequest{
		SourceEndpoint:      manifest.SourceEndpoint,
		DestinationEndpoint: manifest.DestinationEndpoint,
		Deadline:            manifest.Deadline.UTC().Format(time.RFC3339),
		VerifyChecksum:      manifest.VerifyChecksum,
		Items:               manifest.Items,
	}

	var out transfer.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/transfer", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitUntilInactive polls the task status until it leaves ACTIVE or the
// timeout elapses. The upstream API has no blocking wait, so the bounded wait
// is implemented client-side.
func (c *HTTPClient) WaitUntilInactive(ctx context.Context, taskID string, timeout, pollInterval time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		status, err := c.GetTask(ctx, taskID)
		if err != nil {
			return false, err
		}
		if status.Status != transfer.StatusActive {
			return true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		wait := pollInterval
		if wait > remaining {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *HTTPClient) ListEvents(ctx context.Context, taskID string) ([]transfer.Event, error) {
	route := fmt.Sprintf("/task/%s/event_list", url.PathEscape(taskID))

	var out eventListResponse
	if err := c.do(ctx, http.MethodGet, route, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *HTTPClient) UpdateDeadline(ctx context.Context, taskID string, deadline time.Time) error {
	route := fmt.Sprintf("/task/%s", url.PathEscape(taskID))
	req := updateTaskRequest{Deadline: deadline.UTC().Format(time.RFC3339)}
	return c.do(ctx, http.MethodPut, route, nil, req, nil)
}

func (c *HTTPClient) Cancel(ctx context.Context, taskID string) error {
	route := fmt.Sprintf("/task/%s/cancel", url.PathEscape(taskID))
	return c.do(ctx, http.MethodPost, route, nil, nil, nil)
}

func (c *HTTPClient) GetTask(ctx context.Context, taskID string) (*transfer.TaskStatus, error) {
	route := fmt.Sprintf("/task/%s", url.PathEscape(taskID))

	var out transfer.TaskStatus
	if err := c.do(ctx, http.MethodGet, route, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, route string, query url.Values, body, out any) error {
	target := c.baseURL + route
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, route, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("read error response (HTTP %d): %w", resp.StatusCode, err)
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil || body.Code == "" {
		return &transfer.APIError{
			Code:    fmt.Sprintf("HTTP%d", resp.StatusCode),
			Message: strings.TrimSpace(string(data)),
		}
	}
	return &transfer.APIError{Code: body.Code, Message: body.Message}
}
