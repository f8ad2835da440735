package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/vector"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Detail     string `json:"detail"`
	ErrorType  string `json:"error_type"`
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("server returned %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running semprompt server.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL. A nil httpClient uses one with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// CreatePrompt stores a prompt and returns the record with its generated response.
func (c *Client) CreatePrompt(ctx context.Context, text string) (*models.PromptRecord, error) {
	var rec models.PromptRecord
	if err := c.do(ctx, http.MethodPost, "/prompt", models.PromptInput{Prompt: text}, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Similar returns up to k prompts similar to query.
func (c *Client) Similar(ctx context.Context, query string, k int) ([]*models.SimilarResult, error) {
	v := url.Values{"query": {query}}
	if k > 0 {
		v.Set("k", strconv.Itoa(k))
	}
	var results []*models.SimilarResult
	if err := c.do(ctx, http.MethodGet, "/similar?"+v.Encode(), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ListPrompts returns one page of stored prompts.
func (c *Client) ListPrompts(ctx context.Context, q models.PageQuery) (*models.PromptPage, error) {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	var page models.PromptPage
	if err := c.do(ctx, http.MethodGet, "/prompts?"+v.Encode(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// statsResponse is the subset of GET /stats the CLI reads.
type statsResponse struct {
	Data struct {
		TotalPrompts int64 `json:"total_prompts"`
		Embedder     struct {
			Model      string `json:"model"`
			Dimensions int    `json:"dimensions"`
		} `json:"embedder"`
		Generator string `json:"generator"`
	} `json:"data"`
	VectorIndex    vector.Stats `json:"vector_index"`
	DiskUsageBytes *int64       `json:"disk_usage_bytes"`
}

// Status fetches service statistics.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var resp statsResponse
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &Status{
		TotalPrompts:   resp.Data.TotalPrompts,
		Embedder:       resp.Data.Embedder.Model,
		Dimensions:     resp.Data.Embedder.Dimensions,
		Generator:      resp.Data.Generator,
		VectorIndex:    resp.VectorIndex,
		DiskUsageBytes: resp.DiskUsageBytes,
	}, nil
}

// Flush asks the server to write the vector snapshot now and returns the entry count.
func (c *Client) Flush(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodPost, "/admin/flush", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(b, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
