package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAPIURL is the IPFS daemon HTTP API address used when none is configured.
const DefaultAPIURL = "http://localhost:5001"

// API defines the IPFS operations the facades rely on
type API interface {
	Add(ctx context.Context, data []byte) ([]AddResult, error)
	ObjectGet(ctx context.Context, hash string) (*Node, error)
	Cat(ctx context.Context, hash string) ([]byte, error)
	Version(ctx context.Context) (string, error)
}

// Client wraps the IPFS daemon HTTP API (/api/v0)
type Client struct {
	apiURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ API = (*Client)(nil)

// Config holds configuration for the IPFS client
type Config struct {
	// APIURL is the base URL of the daemon API (e.g., "http://localhost:5001")
	// If empty, defaults to "http://localhost:5001"
	APIURL string

	// Timeout is the timeout for client operations
	// If zero, defaults to 60 seconds
	Timeout time.Duration
}

// AddResult is one entry of the add response stream
type AddResult struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Path returns the content address of the added entry.
func (r AddResult) Path() string {
	return r.Hash
}

// Link is a named reference from one object to another
type Link struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size uint64 `json:"Size"`
}

// Node is a DAG object as returned by object/get
type Node struct {
	Links []Link `json:"Links"`
	Data  string `json:"Data"`
}

// NewClient creates a new IPFS API client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid IPFS API URL %q: %w", apiURL, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

// Dial creates a client and checks the daemon answers.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	c, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	version, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("Connected to IPFS", zap.String("api", c.apiURL), zap.String("version", version))
	return c, nil
}

// APIURL returns the base URL the client talks to.
func (c *Client) APIURL() string {
	return c.apiURL
}

func (c *Client) post(ctx context.Context, op string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	reqURL := c.apiURL + "/api/v0/" + op
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(op, resp)
	}
	return resp, nil
}

// statusError decodes the daemon's {"Message": ...} error body when present.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Message string `json:"Message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// Add stores data and returns every entry of the response stream.
func (c *Client) Add(ctx context.Context, data []byte) ([]AddResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "file")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to copy data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	resp, err := c.post(ctx, "add", nil, &buf, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// The add endpoint streams NDJSON, one object per added entry.
	dec := json.NewDecoder(resp.Body)
	var results []AddResult
	for {
		var chunk AddResult
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode add response: %w", err)
		}
		results = append(results, chunk)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("add response missing hash")
	}

	c.logger.Debug("Added content",
		zap.String("hash", results[0].Hash),
		zap.Int("bytes", len(data)))

	return results, nil
}

// ObjectGet fetches the DAG node stored under hash.
func (c *Client) ObjectGet(ctx context.Context, hash string) (*Node, error) {
	resp, err := c.post(ctx, "object/get", url.Values{"arg": {hash}}, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var node Node
	if err := json.NewDecoder(resp.Body).Decode(&node); err != nil {
		return nil, fmt.Errorf("failed to decode object response: %w", err)
	}
	return &node, nil
}

// Cat returns the raw file content stored under hash.
func (c *Client) Cat(ctx context.Context, hash string) ([]byte, error) {
	resp, err := c.post(ctx, "cat", url.Values{"arg": {hash}}, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read cat response: %w", err)
	}
	return data, nil
}

// Version returns the daemon version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, "version", nil, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var v struct {
		Version string `json:"Version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("failed to decode version response: %w", err)
	}
	return v.Version, nil
}
