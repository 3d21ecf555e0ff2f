package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"
)

// WebhookNotifier sends notifications via generic HTTP webhook. Useful as
// a low-cost channel when the operator console ingests JSON directly.
type WebhookNotifier struct {
	URL     string
	Method  string
	Headers map[string]string
	Timeout time.Duration
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(config map[string]interface{}) *WebhookNotifier {
	wn := &WebhookNotifier{
		Method:  "POST",
		Timeout: 10 * time.Second,
		Headers: make(map[string]string),
	}

	wn.URL = configString(config, "url")

	// Support environment variable for URL
	if wn.URL == "" || wn.URL == "${WEBHOOK_URL}" {
		if envURL := os.Getenv("WEBHOOK_URL"); envURL != "" {
			wn.URL = envURL
		}
	}

	if method := configString(config, "method"); method != "" {
		wn.Method = method
	}
	if headers, ok := config["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if str, ok := v.(string); ok {
				wn.Headers[k] = str
			}
		}
	}

	if _, ok := wn.Headers["Content-Type"]; !ok {
		wn.Headers["Content-Type"] = "application/json"
	}

	return wn
}

// Send sends a notification via webhook
func (wn *WebhookNotifier) Send(subject, body string, severity Severity) error {
	if wn.URL == "" {
		return fmt.Errorf("webhook URL is empty")
	}

	payload := map[string]interface{}{
		"subject":   subject,
		"body":      body,
		"severity":  string(severity),
		"timestamp": time.Now().Unix(),
		"source":    "healthwatch",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(wn.Method, wn.URL, bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range wn.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: wn.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
