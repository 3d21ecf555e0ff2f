package core

import (
	"time"
)

// Storage defines persistence for check outcomes and incidents.
// Metrics are append-only; incidents are a small mutable table with the
// incident tracker as the only writer.
type Storage interface {
	// Initialize opens the backing store and creates the schema
	Initialize() error

	// Close closes the store and releases resources
	Close() error

	// SaveMetric durably appends one check outcome. Errors propagate so
	// the alert manager can abort the evaluation cycle.
	SaveMetric(result CheckResult) error

	// RecentOutcomes returns the last n outcomes for a check in
	// reverse-chronological order
	RecentOutcomes(checkName string, n int) ([]Metric, error)

	// MetricsByTimeRange returns metrics for a check within [start, end]
	MetricsByTimeRange(checkName string, start, end time.Time) ([]Metric, error)

	// Uptime returns the fraction of pass outcomes for a check over the
	// trailing window. Returns 1.0 when no outcomes exist.
	Uptime(checkName string, window time.Duration) (float64, error)

	// LatestMetricTime returns the timestamp of the most recently
	// recorded metric of any kind. Zero time when the store is empty.
	LatestMetricTime() (time.Time, error)

	// CleanOldData deletes metrics older than keepDays. Incidents are
	// never touched by retention.
	CleanOldData(keepDays int) error

	// CreateIncident inserts a new incident row
	CreateIncident(incident *Incident) error

	// UpdateIncident persists mutations to an existing incident
	UpdateIncident(incident *Incident) error

	// GetIncident fetches one incident by id; nil when not found
	GetIncident(id string) (*Incident, error)

	// FindOpenIncident returns the active or acknowledged incident for a
	// check, or nil when none is open
	FindOpenIncident(checkName string) (*Incident, error)

	// ListIncidents returns incidents filtered by status, newest first.
	// An empty status returns all incidents.
	ListIncidents(status IncidentStatus, limit int) ([]Incident, error)

	// GetStorageInfo returns storage statistics
	GetStorageInfo() StorageInfo
}

// StorageInfo describes the backing store
type StorageInfo struct {
	Type          string    `json:"type"`
	TotalMetrics  int       `json:"total_metrics"`
	TotalSize     int64     `json:"total_size"`
	OldestMetric  time.Time `json:"oldest_metric"`
	NewestMetric  time.Time `json:"newest_metric"`
	OpenIncidents int       `json:"open_incidents"`
	FilePath      string    `json:"file_path"`
	LastModified  time.Time `json:"last_modified"`
}

// NewStorage creates a new storage instance
func NewStorage(dataDir string, config StorageConfig) Storage {
	return NewSQLiteStorage(dataDir, config)
}
