package core

import (
	"fmt"
	"time"
)

// Version is the engine version reported by the CLI and the API
const Version = "0.1.0"

// CheckStatus is the outcome of a single probe execution
type CheckStatus string

const (
	StatusPass     CheckStatus = "pass"
	StatusFail     CheckStatus = "fail"
	StatusDegraded CheckStatus = "degraded"
)

// Failing reports whether this status counts as failing for gating purposes.
// Anything that is not an explicit pass is failing.
func (s CheckStatus) Failing() bool {
	return s != StatusPass
}

// Severity classifies how a check failure is routed
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// IncidentStatus is the lifecycle state of an incident
type IncidentStatus string

const (
	IncidentActive       IncidentStatus = "active"
	IncidentAcknowledged IncidentStatus = "acknowledged"
	IncidentResolved     IncidentStatus = "resolved"
)

// CheckResult is produced once per probe execution. It is never mutated
// after creation.
type CheckResult struct {
	CheckName    string            `json:"check_name"`
	Status       CheckStatus       `json:"status"`
	DurationMS   int64             `json:"duration_ms"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Metric is the persisted form of a CheckResult
type Metric struct {
	ID           int64             `json:"id"`
	CheckName    string            `json:"check_name"`
	Status       CheckStatus       `json:"status"`
	DurationMS   int64             `json:"duration_ms"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Incident is the materialized record of a failing check. At most one
// active or acknowledged incident exists per check name at a time.
type Incident struct {
	ID             string         `json:"id"`
	CheckName      string         `json:"check_name"`
	Severity       Severity       `json:"severity"`
	Status         IncidentStatus `json:"status"`
	FirstSeen      time.Time      `json:"first_seen"`
	LastSeen       time.Time      `json:"last_seen"`
	FailureCount   int            `json:"failure_count"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string         `json:"acknowledged_by,omitempty"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

// Open reports whether the incident is still active or acknowledged
func (i *Incident) Open() bool {
	return i.Status == IncidentActive || i.Status == IncidentAcknowledged
}

// TimelineEvent is one derived entry in an incident's history. Events are
// reconstructed on demand from stored metrics and the incident row, not
// logged as a separate stream.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Kind        string    `json:"kind"` // opened, failure, escalated, acknowledged, resolved
	Description string    `json:"description"`
}

// Config represents the application configuration
type Config struct {
	DataDir  string         `yaml:"data_dir"`
	Alerting AlertConfig    `yaml:"alerting"`
	Storage  StorageConfig  `yaml:"storage"`
	Checks   []CheckConfig  `yaml:"checks"`
	Channels ChannelsConfig `yaml:"channels"`
	Web      WebConfig      `yaml:"web"`
}

// AlertConfig holds the alert policy knobs
type AlertConfig struct {
	// FailureThreshold is the number of consecutive failing outcomes
	// required before a check is considered down.
	FailureThreshold int `yaml:"failure_threshold"`

	// DedupWindowMinutes is the minimum time between two notifications
	// for the same check, regardless of severity.
	DedupWindowMinutes int `yaml:"dedup_window_minutes"`

	// EscalationThresholdMinutes is how long a warning incident may stay
	// unacknowledged before it is escalated to the high-cost channel.
	EscalationThresholdMinutes int `yaml:"escalation_threshold_minutes"`

	// RateLimitPerHour caps high-cost channel sends per calendar hour.
	RateLimitPerHour int `yaml:"rate_limit_per_hour"`

	// StalenessThresholdMinutes is how old the newest metric may be
	// before the self-monitor declares the scheduler dead.
	StalenessThresholdMinutes int `yaml:"staleness_threshold_minutes"`

	// SelfMonitorIntervalMinutes is how often the self-monitor inspects
	// metric freshness.
	SelfMonitorIntervalMinutes int `yaml:"self_monitor_interval_minutes"`

	// Severities maps check names to critical or warning. A check with
	// no mapping defaults to warning.
	Severities map[string]Severity `yaml:"severities"`
}

// DedupWindow returns the dedup window as a duration
func (c AlertConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMinutes) * time.Minute
}

// EscalationThreshold returns the escalation threshold as a duration
func (c AlertConfig) EscalationThreshold() time.Duration {
	return time.Duration(c.EscalationThresholdMinutes) * time.Minute
}

// StalenessThreshold returns the staleness threshold as a duration
func (c AlertConfig) StalenessThreshold() time.Duration {
	return time.Duration(c.StalenessThresholdMinutes) * time.Minute
}

// SeverityFor returns the configured severity for a check. Missing
// mappings default to warning so a config gap under-escalates instead of
// crashing or paging.
func (c AlertConfig) SeverityFor(checkName string) Severity {
	if sev, ok := c.Severities[checkName]; ok {
		if sev == SeverityCritical || sev == SeverityWarning {
			return sev
		}
	}
	return SeverityWarning
}

// StorageConfig represents storage configuration
type StorageConfig struct {
	SQLitePath      string `yaml:"sqlite_path"`
	SQLiteWAL       bool   `yaml:"sqlite_wal"`
	SQLiteCacheSize int    `yaml:"sqlite_cache_size"`
	KeepDays        int    `yaml:"keep_days"`
	AutoCleanup     bool   `yaml:"auto_cleanup"`
}

// CheckConfig defines one scheduled probe
type CheckConfig struct {
	Name            string            `yaml:"name"`
	Type            string            `yaml:"type"` // http, system, docker
	IntervalSeconds int               `yaml:"interval_seconds"`
	Params          map[string]string `yaml:"params,omitempty"`
}

// Interval returns the probe interval as a duration
func (c CheckConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// ChannelsConfig names the high-cost and low-cost notifier configurations.
// The engine only distinguishes cost class; transport identity lives in
// the per-channel config maps.
type ChannelsConfig struct {
	HighCost NotifierConfig `yaml:"high_cost"`
	LowCost  NotifierConfig `yaml:"low_cost"`
}

// WebConfig represents the HTTP API configuration
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() Config {
	return Config{
		DataDir: "~/.healthwatch",
		Alerting: AlertConfig{
			FailureThreshold:           2,
			DedupWindowMinutes:         15,
			EscalationThresholdMinutes: 15,
			RateLimitPerHour:           10,
			StalenessThresholdMinutes:  10,
			SelfMonitorIntervalMinutes: 5,
			Severities:                 map[string]Severity{},
		},
		Storage: StorageConfig{
			SQLitePath:      "",
			SQLiteWAL:       true,
			SQLiteCacheSize: 2000,
			KeepDays:        90,
			AutoCleanup:     true,
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    9822,
		},
	}
}

// ValidateAlertConfig validates the alert policy configuration
func ValidateAlertConfig(config AlertConfig) error {
	if config.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1")
	}
	if config.FailureThreshold > 20 {
		return fmt.Errorf("failure_threshold too large (max 20), recommended: 2")
	}
	if config.DedupWindowMinutes < 1 {
		return fmt.Errorf("dedup_window_minutes must be at least 1")
	}
	if config.EscalationThresholdMinutes < 1 {
		return fmt.Errorf("escalation_threshold_minutes must be at least 1")
	}
	if config.RateLimitPerHour < 1 {
		return fmt.Errorf("rate_limit_per_hour must be at least 1")
	}
	if config.StalenessThresholdMinutes < 1 {
		return fmt.Errorf("staleness_threshold_minutes must be at least 1")
	}
	if config.SelfMonitorIntervalMinutes < 1 {
		return fmt.Errorf("self_monitor_interval_minutes must be at least 1")
	}
	for name, sev := range config.Severities {
		if sev != SeverityCritical && sev != SeverityWarning {
			return fmt.Errorf("severity for check %q must be 'critical' or 'warning'", name)
		}
	}
	return nil
}

// ValidateStorageConfig validates storage configuration
func ValidateStorageConfig(config StorageConfig) error {
	if config.KeepDays < 1 {
		return fmt.Errorf("keep_days must be at least 1")
	}
	if config.KeepDays > 365 {
		return fmt.Errorf("keep_days too large (max 365), recommended: 90")
	}
	return nil
}

// ValidateConfig validates the entire configuration
func ValidateConfig(config Config) error {
	if err := ValidateAlertConfig(config.Alerting); err != nil {
		return fmt.Errorf("alerting config invalid: %w", err)
	}
	if err := ValidateStorageConfig(config.Storage); err != nil {
		return fmt.Errorf("storage config invalid: %w", err)
	}
	for _, check := range config.Checks {
		if check.Name == "" {
			return fmt.Errorf("check name must not be empty")
		}
		if check.IntervalSeconds < 1 {
			return fmt.Errorf("check %q: interval_seconds must be at least 1", check.Name)
		}
		switch check.Type {
		case "http", "system", "docker":
		default:
			return fmt.Errorf("check %q: type must be 'http', 'system' or 'docker'", check.Name)
		}
	}
	if config.Web.Enabled && (config.Web.Port < 1 || config.Web.Port > 65535) {
		return fmt.Errorf("web port out of range: %d", config.Web.Port)
	}
	return nil
}
