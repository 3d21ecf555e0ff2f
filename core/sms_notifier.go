package core

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SMSNotifier sends messages through a Twilio-compatible HTTP gateway.
// This is the high-cost channel: every send has a per-message price, so
// it sits behind the alert manager's hourly rate limit.
type SMSNotifier struct {
	AccountSID string
	AuthToken  string
	From       string
	Recipients []string
	BaseURL    string
	Timeout    time.Duration
}

// NewSMSNotifier creates a new SMS notifier
func NewSMSNotifier(config map[string]interface{}) *SMSNotifier {
	sn := &SMSNotifier{
		BaseURL: "https://api.twilio.com",
		Timeout: 10 * time.Second,
	}

	sn.AccountSID = configString(config, "account_sid")
	sn.AuthToken = configString(config, "auth_token")
	sn.From = configString(config, "from")
	sn.Recipients = configStrings(config, "recipients")
	if baseURL := configString(config, "base_url"); baseURL != "" {
		sn.BaseURL = baseURL
	}

	// Support environment variables for credentials
	if sn.AccountSID == "" || sn.AccountSID == "${TWILIO_ACCOUNT_SID}" {
		sn.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if sn.AuthToken == "" || sn.AuthToken == "${TWILIO_AUTH_TOKEN}" {
		sn.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}

	return sn
}

// Send sends the notification as one SMS per recipient. The first
// delivery error is returned after all recipients were attempted.
func (sn *SMSNotifier) Send(subject, body string, severity Severity) error {
	if sn.AccountSID == "" || sn.AuthToken == "" {
		return fmt.Errorf("sms credentials are empty")
	}
	if len(sn.Recipients) == 0 {
		return fmt.Errorf("sms recipient list is empty")
	}

	// SMS bodies are short; subject carries the signal
	message := subject
	if severity == SeverityCritical {
		message = "CRITICAL: " + message
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", sn.BaseURL, sn.AccountSID)
	client := &http.Client{Timeout: sn.Timeout}

	var firstErr error
	for _, to := range sn.Recipients {
		form := url.Values{}
		form.Set("From", sn.From)
		form.Set("To", to)
		form.Set("Body", message)

		req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to create request: %w", err)
			}
			continue
		}
		req.SetBasicAuth(sn.AccountSID, sn.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to send sms to %s: %w", to, err)
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if firstErr == nil {
				firstErr = fmt.Errorf("sms gateway returned status %d for %s", resp.StatusCode, to)
			}
		}
	}

	return firstErr
}
