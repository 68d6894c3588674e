package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	versionapi "github.com/agentregistry-dev/promptregistry/internal/registry/api/handlers/api"
	"github.com/agentregistry-dev/promptregistry/pkg/models"
)

const (
	// DefaultBaseURL is where a locally started registry serves its API.
	DefaultBaseURL = "http://localhost:12121/v0"

	// Environment variables read by NewClientFromEnv.
	BaseURLEnv = "PRCTL_API_BASE_URL"
	TokenEnv   = "PRCTL_API_TOKEN"

	pingAttempts = 5
	pingBackoff  = 100 * time.Millisecond
)

// Client is a thin wrapper over the registry's REST API.
type Client struct {
	BaseURL    string
	token      string
	httpClient *http.Client
}

// APIError is a non-2xx response from the registry.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Errors     []string
}

func (e *APIError) Error() string {
	if e.Detail != "" && len(e.Errors) > 0 {
		return fmt.Sprintf("registry returned %d: %s (%s)", e.StatusCode, e.Detail, strings.Join(e.Errors, "; "))
	}
	if e.Detail != "" {
		return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Detail)
	}
	if e.Title != "" {
		return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Title)
	}
	return fmt.Sprintf("registry returned %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the registry.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient creates a client for baseURL. An empty token sends no
// Authorization header.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientFromEnv builds a client from PRCTL_API_BASE_URL and
// PRCTL_API_TOKEN and waits for the registry to answer a ping.
func NewClientFromEnv() (*Client, error) {
	baseURL := os.Getenv(BaseURLEnv)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := NewClient(baseURL, os.Getenv(TokenEnv))
	if err := pingWithRetry(c); err != nil {
		return nil, fmt.Errorf("registry at %s is not reachable: %w", c.BaseURL, err)
	}
	return c, nil
}

func pingWithRetry(c *Client) error {
	var err error
	for attempt := range pingAttempts {
		if err = c.Ping(); err == nil {
			return nil
		}
		time.Sleep(pingBackoff * time.Duration(attempt+1))
	}
	return err
}

// Ping checks that the registry is up.
func (c *Client) Ping() error {
	return c.do(http.MethodGet, "/ping", nil, nil)
}

// GetVersion returns the server's build metadata.
func (c *Client) GetVersion() (*versionapi.VersionBody, error) {
	var out versionapi.VersionBody
	if err := c.do(http.MethodGet, "/version", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOptions are the query parameters for ListPrompts.
type ListOptions struct {
	Category   string
	IsTemplate *bool
	Tags       []string
	Limit      int
	Offset     int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Category != "" {
		q.Set("category", o.Category)
	}
	if o.IsTemplate != nil {
		q.Set("isTemplate", strconv.FormatBool(*o.IsTemplate))
	}
	if len(o.Tags) > 0 {
		q.Set("tags", strings.Join(o.Tags, ","))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// ListPrompts returns one page of prompts.
func (c *Client) ListPrompts(opts ListOptions) ([]models.Prompt, error) {
	var out models.PromptListResponse
	path := "/prompts"
	if q := opts.query().Encode(); q != "" {
		path += "?" + q
	}
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Prompts, nil
}

// GetPrompt returns a prompt at version, or the current version when
// version is 0. A missing prompt yields nil without an error.
func (c *Client) GetPrompt(id string, version int) (*models.Prompt, error) {
	path := "/prompts/" + url.PathEscape(id)
	if version > 0 {
		path += "/versions/" + strconv.Itoa(version)
	}
	var out models.Prompt
	if err := c.do(http.MethodGet, path, nil, &out); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePrompt(in *models.CreatePromptInput) (*models.Prompt, error) {
	var out models.Prompt
	if err := c.do(http.MethodPost, "/prompts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePrompt(id string, patch *models.UpdatePromptInput) (*models.Prompt, error) {
	var out models.Prompt
	if err := c.do(http.MethodPatch, "/prompts/"+url.PathEscape(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePrompt removes a prompt, or one version of it when version > 0.
// It reports false when there was nothing to delete.
func (c *Client) DeletePrompt(id string, version int) (bool, error) {
	path := "/prompts/" + url.PathEscape(id)
	if version > 0 {
		path += "/versions/" + strconv.Itoa(version)
	}
	if err := c.do(http.MethodDelete, path, nil, nil); err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) ListPromptVersions(id string) ([]int, error) {
	var out struct {
		Versions []int `json:"versions"`
	}
	if err := c.do(http.MethodGet, "/prompts/"+url.PathEscape(id)+"/versions", nil, &out); err != nil {
		return nil, err
	}
	return out.Versions, nil
}

// ApplyTemplate renders a template prompt with variables.
func (c *Client) ApplyTemplate(id string, variables map[string]string) (string, error) {
	body := struct {
		Variables map[string]string `json:"variables,omitempty"`
	}{Variables: variables}
	var out struct {
		Content string `json:"content"`
	}
	if err := c.do(http.MethodPost, "/prompts/"+url.PathEscape(id)+"/apply", body, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *Client) SearchPrompts(query string) ([]models.Prompt, error) {
	var out models.PromptListResponse
	if err := c.do(http.MethodGet, "/search?q="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return out.Prompts, nil
}

func (c *Client) GetStats() (*models.Stats, error) {
	var out models.Stats
	if err := c.do(http.MethodGet, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
			Errors []struct {
				Location string `json:"location"`
				Message  string `json:"message"`
			} `json:"errors"`
		}
		if data, readErr := io.ReadAll(resp.Body); readErr == nil && json.Unmarshal(data, &problem) == nil {
			apiErr.Title = problem.Title
			apiErr.Detail = problem.Detail
			for _, e := range problem.Errors {
				if e.Location != "" {
					apiErr.Errors = append(apiErr.Errors, e.Location+": "+e.Message)
				} else {
					apiErr.Errors = append(apiErr.Errors, e.Message)
				}
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
