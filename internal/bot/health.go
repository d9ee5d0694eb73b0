package bot

import (
	"context"
	"net/http"
)

// HealthStatus is the liveness of the control endpoint.
type HealthStatus string

const (
	Running    HealthStatus = "Running"
	NotRunning HealthStatus = "Not Running"
)

// CheckHealth probes the control endpoint. Every failure collapses to
// NotRunning.
func (c *Controller) CheckHealth(ctx context.Context) HealthStatus {
	return Probe(ctx, c.client, c.healthURL)
}

// Probe issues a GET to url and reports Running on a 200 response.
func Probe(ctx context.Context, client *http.Client, url string) HealthStatus {
	if url == "" {
		return NotRunning
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return NotRunning
	}
	resp, err := client.Do(req)
	if err != nil {
		return NotRunning
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return NotRunning
	}
	return Running
}
