package core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPCheck probes a URL for reachability. A non-2xx status or a missing
// expected substring fails the check; a response slower than the latency
// budget degrades it.
type HTTPCheck struct {
	name          string
	interval      time.Duration
	url           string
	find          string
	latencyBudget time.Duration
	client        *http.Client
}

// NewHTTPCheck creates an HTTP probe from configuration. Params:
// url (required), find (optional body substring),
// latency_budget_ms (optional, default 2000), timeout_seconds (default 10).
func NewHTTPCheck(config CheckConfig) (*HTTPCheck, error) {
	url := config.Params["url"]
	if url == "" {
		return nil, fmt.Errorf("http check %q: url param is required", config.Name)
	}

	timeout := 10 * time.Second
	if v := config.Params["timeout_seconds"]; v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			timeout = time.Duration(sec) * time.Second
		}
	}

	latencyBudget := 2 * time.Second
	if v := config.Params["latency_budget_ms"]; v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			latencyBudget = time.Duration(ms) * time.Millisecond
		}
	}

	return &HTTPCheck{
		name:          config.Name,
		interval:      config.Interval(),
		url:           url,
		find:          config.Params["find"],
		latencyBudget: latencyBudget,
		client:        &http.Client{Timeout: timeout},
	}, nil
}

// Name returns the check name
func (c *HTTPCheck) Name() string { return c.name }

// Interval returns the probe interval
func (c *HTTPCheck) Interval() time.Duration { return c.interval }

// Run executes the probe once
func (c *HTTPCheck) Run(ctx context.Context) CheckResult {
	result := CheckResult{
		CheckName: c.name,
		Timestamp: time.Now(),
		Metadata:  map[string]string{"url": c.url},
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.url, nil)
	if err != nil {
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	result.DurationMS = elapsed.Milliseconds()

	if err != nil {
		result.Status = StatusFail
		result.ErrorMessage = err.Error()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Status = StatusFail
		result.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}

	if c.find != "" {
		// Cap the read; a health page should not be megabytes
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			result.Status = StatusFail
			result.ErrorMessage = fmt.Sprintf("failed to read body: %v", err)
			return result
		}
		if !strings.Contains(string(body), c.find) {
			result.Status = StatusFail
			result.ErrorMessage = fmt.Sprintf("response body does not contain %q", c.find)
			return result
		}
	}

	if elapsed > c.latencyBudget {
		result.Status = StatusDegraded
		result.ErrorMessage = fmt.Sprintf("response took %s, budget is %s", elapsed.Round(time.Millisecond), c.latencyBudget)
		return result
	}

	result.Status = StatusPass
	return result
}
