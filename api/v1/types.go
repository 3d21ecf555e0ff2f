package v1

import (
	"time"
)

// APIVersion defines the API version
const APIVersion = "v1"

// ResponseKind defines the kind of response
type ResponseKind string

const (
	KindIncidentList ResponseKind = "IncidentList"
	KindIncident     ResponseKind = "Incident"
	KindTimeline     ResponseKind = "Timeline"
	KindUptime       ResponseKind = "Uptime"
	KindCheckList    ResponseKind = "CheckList"
	KindStorageInfo  ResponseKind = "StorageInfo"
	KindVersion      ResponseKind = "Version"
	KindError        ResponseKind = "Error"
)

// ResponseMetadata provides listing metadata
type ResponseMetadata struct {
	Total       int       `json:"total,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	Filter      string    `json:"filter,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	RequestID   string    `json:"request_id,omitempty"`
}

// APIError represents a standardized API error
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIResponse represents a standardized API response
type APIResponse struct {
	Kind       ResponseKind      `json:"kind"`
	APIVersion string            `json:"apiVersion"`
	Metadata   *ResponseMetadata `json:"metadata,omitempty"`
	Data       interface{}       `json:"data,omitempty"`
	Errors     []APIError        `json:"errors,omitempty"`
}

// AcknowledgeRequest is the body of an incident acknowledgment
type AcknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledged_by" binding:"required"`
}

// UptimeResponse reports pass-fraction for one check over a window
type UptimeResponse struct {
	CheckName     string  `json:"check_name"`
	Period        string  `json:"period"`
	UptimePercent float64 `json:"uptime_percent"`
}

// CheckStatusResponse describes one registered check and its last outcome
type CheckStatusResponse struct {
	Name            string    `json:"name"`
	IntervalSeconds int       `json:"interval_seconds"`
	LastStatus      string    `json:"last_status,omitempty"`
	LastError       string    `json:"last_error,omitempty"`
	LastDurationMS  int64     `json:"last_duration_ms,omitempty"`
	LastRun         time.Time `json:"last_run,omitempty"`
}

// Error codes
const (
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeNotFound         = "NOT_FOUND"
	ErrorCodeInternal         = "INTERNAL_ERROR"
	ErrorCodeBadRequest       = "BAD_REQUEST"
	ErrorCodeIncidentNotFound = "INCIDENT_NOT_FOUND"
)
