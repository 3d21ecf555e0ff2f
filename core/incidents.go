package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IncidentTracker maintains the incident state machine per check name.
// All writes, operator acknowledgment included, go through the alert
// manager's mutex; API handlers only read.
type IncidentTracker struct {
	storage Storage

	// now is replaceable in tests
	now func() time.Time
}

// NewIncidentTracker creates a new incident tracker
func NewIncidentTracker(storage Storage) *IncidentTracker {
	return &IncidentTracker{storage: storage, now: time.Now}
}

// OpenOrUpdate creates an incident for a qualifying failure, or updates
// the already-open one. A new failure for a check with an open incident
// never creates a second incident.
func (t *IncidentTracker) OpenOrUpdate(checkName string, severity Severity, at time.Time) (*Incident, bool, error) {
	existing, err := t.storage.FindOpenIncident(checkName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up open incident: %w", err)
	}

	if existing != nil {
		existing.FailureCount++
		existing.LastSeen = at
		if err := t.storage.UpdateIncident(existing); err != nil {
			return nil, false, fmt.Errorf("failed to update incident: %w", err)
		}
		return existing, false, nil
	}

	incident := &Incident{
		ID:           uuid.New().String(),
		CheckName:    checkName,
		Severity:     severity,
		Status:       IncidentActive,
		FirstSeen:    at,
		LastSeen:     at,
		FailureCount: 1,
	}
	if err := t.storage.CreateIncident(incident); err != nil {
		return nil, false, fmt.Errorf("failed to create incident: %w", err)
	}
	return incident, true, nil
}

// Acknowledge marks an incident acknowledged. Acknowledging an incident
// that is already acknowledged or resolved is a no-op, not an error; the
// first acknowledged_at assignment wins. Returns the incident, or nil
// when the id is unknown.
func (t *IncidentTracker) Acknowledge(id, acknowledgedBy string) (*Incident, error) {
	incident, err := t.storage.GetIncident(id)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, nil
	}

	if incident.Status != IncidentActive {
		return incident, nil
	}

	now := t.now()
	incident.Status = IncidentAcknowledged
	incident.AcknowledgedAt = &now
	incident.AcknowledgedBy = acknowledgedBy
	if err := t.storage.UpdateIncident(incident); err != nil {
		return nil, fmt.Errorf("failed to acknowledge incident: %w", err)
	}
	return incident, nil
}

// Resolve closes the open incident for a check when it returns to pass.
// Resolved is terminal; a later failure of the same check opens a fresh
// incident. Returns nil when no incident was open.
func (t *IncidentTracker) Resolve(checkName string, at time.Time) (*Incident, error) {
	incident, err := t.storage.FindOpenIncident(checkName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open incident: %w", err)
	}
	if incident == nil {
		return nil, nil
	}

	incident.Status = IncidentResolved
	incident.ResolvedAt = &at
	if err := t.storage.UpdateIncident(incident); err != nil {
		return nil, fmt.Errorf("failed to resolve incident: %w", err)
	}
	return incident, nil
}

// Get fetches one incident by id, nil when not found
func (t *IncidentTracker) Get(id string) (*Incident, error) {
	return t.storage.GetIncident(id)
}

// List returns incidents newest first, optionally filtered by status
func (t *IncidentTracker) List(status IncidentStatus, limit int) ([]Incident, error) {
	return t.storage.ListIncidents(status, limit)
}

// Timeline reconstructs an incident's history on demand from the incident
// row and the stored metrics. Alert send times are not persisted, so the
// escalation point is inferred from the policy thresholds rather than
// replayed from a log.
func (t *IncidentTracker) Timeline(id string, alerting AlertConfig) ([]TimelineEvent, error) {
	incident, err := t.storage.GetIncident(id)
	if err != nil {
		return nil, err
	}
	if incident == nil {
		return nil, nil
	}

	events := []TimelineEvent{
		{
			Timestamp:   incident.FirstSeen,
			Kind:        "opened",
			Description: fmt.Sprintf("incident opened for check %s (%s)", incident.CheckName, incident.Severity),
		},
	}

	end := incident.LastSeen
	if incident.ResolvedAt != nil {
		end = *incident.ResolvedAt
	}
	metrics, err := t.storage.MetricsByTimeRange(incident.CheckName, incident.FirstSeen, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics for timeline: %w", err)
	}
	for _, m := range metrics {
		if !m.Status.Failing() || m.Timestamp.Equal(incident.FirstSeen) {
			continue
		}
		desc := fmt.Sprintf("check %s still failing (%s)", m.CheckName, m.Status)
		if m.ErrorMessage != "" {
			desc += ": " + m.ErrorMessage
		}
		events = append(events, TimelineEvent{Timestamp: m.Timestamp, Kind: "failure", Description: desc})
	}

	// A warning incident that crossed the escalation threshold before
	// being acknowledged was escalated once at the crossing point. An
	// acknowledgment that arrived later does not undo a fired escalation.
	if incident.Severity == SeverityWarning {
		escalatedAt := incident.FirstSeen.Add(alerting.EscalationThreshold())
		ackedInTime := incident.AcknowledgedAt != nil && incident.AcknowledgedAt.Before(escalatedAt)
		if !ackedInTime && escalatedAt.Before(end) {
			events = append(events, TimelineEvent{
				Timestamp:   escalatedAt,
				Kind:        "escalated",
				Description: "unacknowledged past escalation threshold, promoted to high-cost channel",
			})
		}
	}

	if incident.AcknowledgedAt != nil {
		desc := "acknowledged"
		if incident.AcknowledgedBy != "" {
			desc = "acknowledged by " + incident.AcknowledgedBy
		}
		events = append(events, TimelineEvent{Timestamp: *incident.AcknowledgedAt, Kind: "acknowledged", Description: desc})
	}

	if incident.ResolvedAt != nil {
		events = append(events, TimelineEvent{
			Timestamp:   *incident.ResolvedAt,
			Kind:        "resolved",
			Description: fmt.Sprintf("check %s returned to pass", incident.CheckName),
		})
	}

	sortTimeline(events)
	return events, nil
}

// sortTimeline orders events chronologically (stable for equal timestamps)
func sortTimeline(events []TimelineEvent) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].Timestamp.Before(events[j-1].Timestamp); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
