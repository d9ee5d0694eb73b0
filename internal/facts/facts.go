// Package facts fetches random facts for the fact command.
package facts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the public useless-facts endpoint.
const DefaultURL = "https://uselessfacts.jsph.pl/random.json?language=en"

// Client fetches facts from a JSON endpoint returning {"text": "..."}.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a facts client. An empty url selects DefaultURL.
func NewClient(url string, timeout time.Duration) *Client {
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Random returns one fact.
func (c *Client) Random(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch fact: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("facts API error (status %d): %s", resp.StatusCode, string(body))
	}

	var fact struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &fact); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if strings.TrimSpace(fact.Text) == "" {
		return "", fmt.Errorf("facts API returned no text")
	}
	return fact.Text, nil
}
