package anomaly

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// DefaultURL is where the reference classifier listens.
const DefaultURL = "http://localhost:8000/analyze"

const maxResponseBytes = 1 << 20

// Classifier returns a verdict for a feature vector.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (Result, error)
}

// Client is an HTTP Classifier.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client posting to url. A nil httpClient uses a
// default client; per-request deadlines come from the context.
func NewClient(url string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{url: url, http: httpClient}
}

// Classify posts features and parses the verdict.
func (c *Client) Classify(ctx context.Context, features []float64) (Result, error) {
	body, err := json.Marshal(Request{Features: features})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("post %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("classifier returned %s", resp.Status)
	}

	return ParseResponse(data)
}
