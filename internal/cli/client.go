package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/me/schedsim/pkg/model"
)

// Client talks to the cycles API of a schedsim server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient creates a schedsim API client.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		Logger:     logger,
	}
}

// SubmitCycle asks the server to run one cycle on the given workload.
func (c *Client) SubmitCycle(ctx context.Context, workload string) (*model.Cycle, error) {
	var cycle model.Cycle
	if _, err := c.do(ctx, http.MethodPost, "/api/v1/cycles", model.SubmitCycleRequest{Workload: workload}, &cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// GetCycle fetches one recorded cycle.
func (c *Client) GetCycle(ctx context.Context, id string) (*model.Cycle, error) {
	var cycle model.Cycle
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/cycles/"+url.PathEscape(id), nil, &cycle); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// ListCycles returns one page of recorded cycles and the total matching.
func (c *Client) ListCycles(ctx context.Context, opts model.ListOptions) ([]*model.Cycle, int, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(opts.Limit))
	q.Set("offset", strconv.Itoa(opts.Offset))
	if opts.Workload != "" {
		q.Set("workload", opts.Workload)
	}

	var cycles []*model.Cycle
	page, err := c.do(ctx, http.MethodGet, "/api/v1/cycles?"+q.Encode(), nil, &cycles)
	if err != nil {
		return nil, 0, err
	}
	total := len(cycles)
	if page != nil {
		total = page.Total
	}
	return cycles, total, nil
}

// DeleteCycle removes a recorded cycle.
func (c *Client) DeleteCycle(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/cycles/"+url.PathEscape(id), nil, nil)
	return err
}

// envelope is the parsed response envelope.
type envelope struct {
	Status     string            `json:"status"`
	Data       json.RawMessage   `json:"data"`
	Pagination *model.Pagination `json:"pagination"`
	Error      *model.APIError   `json:"error"`
}

// do performs one request and decodes the envelope's data into out. An
// error envelope comes back as its *model.APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (*model.Pagination, error) {
	url := c.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
		c.Logger.Debug("HTTP request body", "body", string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.Logger.Debug("HTTP request", "method", method, "url", url)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.Logger.Debug("HTTP response", "status", resp.StatusCode, "request_id", resp.Header.Get("X-Request-ID"))

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if env.Status == "error" && env.Error != nil {
		return nil, env.Error
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("parse response data: %w", err)
		}
	}
	return env.Pagination, nil
}
