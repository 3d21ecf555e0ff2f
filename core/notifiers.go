package core

import (
	"fmt"
)

// Notifier is the capability interface every notification transport
// implements. The engine is agnostic to transport identity; recipients
// live in per-channel configuration.
type Notifier interface {
	Send(subject, body string, severity Severity) error
}

// NotifierConfig represents configuration for a notifier
type NotifierConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config,omitempty"`
}

// NewNotifier creates a notifier based on configuration
func NewNotifier(notifierType string, config map[string]interface{}) (Notifier, error) {
	switch notifierType {
	case "sms":
		return NewSMSNotifier(config), nil
	case "email":
		return NewEmailNotifier(config), nil
	case "webhook":
		return NewWebhookNotifier(config), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown notifier type: %s", notifierType)
	}
}

// configString reads a string key from a notifier config map
func configString(config map[string]interface{}, key string) string {
	if v, ok := config[key].(string); ok {
		return v
	}
	return ""
}

// configStrings reads a string list from a notifier config map
func configStrings(config map[string]interface{}, key string) []string {
	var out []string
	if list, ok := config[key].([]interface{}); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
