package core

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// AlertState tracks in-memory alert bookkeeping for one check. It lives
// only for the process lifetime; a restart resets dedup and escalation
// timers (accepted tradeoff).
type AlertState struct {
	LastAlertTime      time.Time // last notification actually attempted, for dedup
	LastEscalationTime time.Time
	Escalated          bool // whether the open incident was already escalated
}

// RateLimitBucket counts high-cost channel sends in the current
// calendar hour
type RateLimitBucket struct {
	WindowStart time.Time
	Count       int
}

// AlertManager converts check outcomes into incidents and notifications.
// It is the only writer of incidents and owns all in-memory alert state.
type AlertManager struct {
	storage  Storage
	tracker  *IncidentTracker
	highCost Notifier
	lowCost  Notifier

	config    AlertConfig
	states    map[string]*AlertState
	rateLimit RateLimitBucket
	mu        sync.Mutex

	// now is replaceable in tests
	now func() time.Time
}

// NewAlertManager creates a new alert manager
func NewAlertManager(config AlertConfig, storage Storage, tracker *IncidentTracker, highCost, lowCost Notifier) *AlertManager {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 2
	}
	if config.DedupWindowMinutes == 0 {
		config.DedupWindowMinutes = 15
	}
	if config.EscalationThresholdMinutes == 0 {
		config.EscalationThresholdMinutes = 15
	}
	if config.RateLimitPerHour == 0 {
		config.RateLimitPerHour = 10
	}

	return &AlertManager{
		storage:  storage,
		tracker:  tracker,
		highCost: highCost,
		lowCost:  lowCost,
		config:   config,
		states:   make(map[string]*AlertState),
		now:      time.Now,
	}
}

// UpdateConfig applies reloaded policy settings. Per-check alert state
// and the rate-limit bucket are preserved across reloads.
func (am *AlertManager) UpdateConfig(config AlertConfig) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.config = config
	log.Printf("Alert policy reloaded: threshold=%d dedup=%dm escalation=%dm rate=%d/h",
		config.FailureThreshold, config.DedupWindowMinutes,
		config.EscalationThresholdMinutes, config.RateLimitPerHour)
}

// outbound is a notification decided under the policy lock and delivered
// after the lock is released, so a slow or hung transport never holds up
// another check's evaluation.
type outbound struct {
	notifier Notifier
	subject  string
	body     string
	severity Severity
}

// Evaluate processes one check outcome against stored history and
// incident state. The outcome must already be persisted; evaluate reads
// history back from storage so record-then-evaluate stays strictly
// ordered within a job invocation. All policy decisions, including dedup
// and rate-limit budget consumption, happen under the mutex; the actual
// channel I/O happens after it is released.
func (am *AlertManager) Evaluate(result CheckResult) error {
	am.mu.Lock()
	var sends []outbound
	var err error
	if result.Status == StatusPass {
		sends, err = am.planRecovery(result)
	} else {
		sends, err = am.planFailure(result)
	}
	am.mu.Unlock()
	if err != nil {
		return err
	}
	am.deliver(sends)
	return nil
}

// Acknowledge marks an incident acknowledged on behalf of an operator.
// It takes the same mutex as evaluations: the incident row is
// read-modify-written by both paths, and an ack landing inside an
// in-flight update would be written back with its pre-ack fields.
func (am *AlertManager) Acknowledge(id, acknowledgedBy string) (*Incident, error) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.tracker.Acknowledge(id, acknowledgedBy)
}

// planFailure runs the gate, materializes the incident and queues
// notifications. Caller holds the mutex.
func (am *AlertManager) planFailure(result CheckResult) ([]outbound, error) {
	// Consecutive-failure gate: one blip never alerts
	recent, err := am.storage.RecentOutcomes(result.CheckName, am.config.FailureThreshold)
	if err != nil {
		return nil, fmt.Errorf("aborting evaluation, cannot read outcome history: %w", err)
	}
	if len(recent) < am.config.FailureThreshold {
		return nil, nil
	}
	for _, m := range recent {
		if !m.Status.Failing() {
			return nil, nil
		}
	}

	severity := am.config.SeverityFor(result.CheckName)
	// Degraded signals a partial failure, so a critical check only warns
	if result.Status == StatusDegraded {
		severity = SeverityWarning
	}

	incident, created, err := am.tracker.OpenOrUpdate(result.CheckName, severity, result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("aborting evaluation, cannot materialize incident: %w", err)
	}

	state := am.stateFor(result.CheckName)
	if created {
		state.Escalated = false
		state.LastEscalationTime = time.Time{}
	}

	now := am.now()

	// Escalation for warning incidents: unresolved and unacknowledged
	// past the threshold, at most once per incident, dedup still applies
	escalate := false
	if incident.Severity == SeverityWarning &&
		incident.Status == IncidentActive &&
		!state.Escalated &&
		now.Sub(incident.FirstSeen) >= am.config.EscalationThreshold() {
		escalate = true
	}

	// Dedup gate: no new notification for this check inside the window
	if now.Sub(state.LastAlertTime) < am.config.DedupWindow() {
		return nil, nil
	}

	subject := fmt.Sprintf("[%s] check %s is failing", incident.Severity, incident.CheckName)
	body := am.failureBody(incident, result)

	var sends []outbound
	switch {
	case incident.Severity == SeverityCritical:
		sends = am.queueHighCost(sends, subject, body, incident.Severity)
		sends = am.queue(sends, am.lowCost, subject, body, incident.Severity)
	case escalate:
		escSubject := fmt.Sprintf("[escalation] check %s still failing", incident.CheckName)
		sends = am.queueHighCost(sends, escSubject, body, incident.Severity)
		sends = am.queue(sends, am.lowCost, escSubject, body, incident.Severity)
		state.Escalated = true
		state.LastEscalationTime = now
		log.Printf("Escalated incident %s (check %s) after %s unacknowledged",
			incident.ID, incident.CheckName, now.Sub(incident.FirstSeen).Round(time.Second))
	default:
		sends = am.queue(sends, am.lowCost, subject, body, incident.Severity)
	}

	// A failed send still counts: the intent to notify was correct
	state.LastAlertTime = now
	return sends, nil
}

// planRecovery resolves the open incident and always reports the
// resolution. Recovery bypasses the dedup gate but not the high-cost
// rate limit. Caller holds the mutex.
func (am *AlertManager) planRecovery(result CheckResult) ([]outbound, error) {
	incident, err := am.tracker.Resolve(result.CheckName, result.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("aborting evaluation, cannot resolve incident: %w", err)
	}
	if incident == nil {
		return nil, nil
	}

	state := am.stateFor(result.CheckName)
	state.Escalated = false
	state.LastEscalationTime = time.Time{}

	subject := fmt.Sprintf("[recovered] check %s is passing again", incident.CheckName)
	body := fmt.Sprintf("Check: %s\nSeverity: %s\nFirst seen: %s\nFailures: %d\nResolved: %s",
		incident.CheckName,
		incident.Severity,
		incident.FirstSeen.Format(time.RFC3339),
		incident.FailureCount,
		result.Timestamp.Format(time.RFC3339),
	)

	var sends []outbound
	if am.config.SeverityFor(incident.CheckName) == SeverityCritical {
		sends = am.queueHighCost(sends, subject, body, incident.Severity)
	}
	sends = am.queue(sends, am.lowCost, subject, body, incident.Severity)

	log.Printf("Incident %s resolved (check %s, %d failures)", incident.ID, incident.CheckName, incident.FailureCount)
	return sends, nil
}

// SelfMonitorAlert reports a monitoring outage through both channels.
// This is the one path permitted to bypass the dedup window; the
// high-cost rate limit still applies.
func (am *AlertManager) SelfMonitorAlert(subject, body string) {
	am.mu.Lock()
	var sends []outbound
	sends = am.queueHighCost(sends, subject, body, SeverityCritical)
	sends = am.queue(sends, am.lowCost, subject, body, SeverityCritical)
	am.mu.Unlock()

	am.deliver(sends)
}

// stateFor returns the alert state for a check, creating it on first use.
// Caller holds the mutex.
func (am *AlertManager) stateFor(checkName string) *AlertState {
	state, ok := am.states[checkName]
	if !ok {
		state = &AlertState{}
		am.states[checkName] = state
	}
	return state
}

// queueHighCost queues a high-cost send unless the hourly ceiling is
// reached. The budget slot is consumed here, under the mutex, so the
// decision stays atomic even though the send happens later.
func (am *AlertManager) queueHighCost(sends []outbound, subject, body string, severity Severity) []outbound {
	if !am.allowHighCost() {
		log.Printf("High-cost send suppressed by rate limit (%d/h): %s", am.config.RateLimitPerHour, subject)
		return sends
	}
	return am.queue(sends, am.highCost, subject, body, severity)
}

// queue appends one pending send. A nil notifier means the channel is
// not configured.
func (am *AlertManager) queue(sends []outbound, notifier Notifier, subject, body string, severity Severity) []outbound {
	if notifier == nil {
		return sends
	}
	return append(sends, outbound{notifier, subject, body, severity})
}

// allowHighCost consumes one slot from the hourly bucket. The window is
// calendar-hour aligned. Caller holds the mutex.
func (am *AlertManager) allowHighCost() bool {
	hour := am.now().Truncate(time.Hour)
	if !am.rateLimit.WindowStart.Equal(hour) {
		am.rateLimit.WindowStart = hour
		am.rateLimit.Count = 0
	}
	if am.rateLimit.Count >= am.config.RateLimitPerHour {
		return false
	}
	am.rateLimit.Count++
	return true
}

// deliver performs the queued sends outside the mutex. Failures are
// logged and never retried inline; retry storms during an outage are
// worse than a lost notification.
func (am *AlertManager) deliver(sends []outbound) {
	for _, o := range sends {
		if err := o.notifier.Send(o.subject, o.body, o.severity); err != nil {
			log.Printf("Notification send failed (%s): %v", o.subject, err)
		}
	}
}

// failureBody renders the notification body for a failing check
func (am *AlertManager) failureBody(incident *Incident, result CheckResult) string {
	body := fmt.Sprintf("Check: %s\nStatus: %s\nSeverity: %s\nFirst seen: %s\nFailures: %d",
		incident.CheckName,
		result.Status,
		incident.Severity,
		incident.FirstSeen.Format(time.RFC3339),
		incident.FailureCount,
	)
	if result.ErrorMessage != "" {
		body += "\nError: " + result.ErrorMessage
	}
	if result.DurationMS > 0 {
		body += fmt.Sprintf("\nDuration: %dms", result.DurationMS)
	}
	return body
}
