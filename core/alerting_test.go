package core

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errSendFailed = errors.New("send failed")

// memStorage is an in-memory Storage for tests
type memStorage struct {
	mu        sync.Mutex
	metrics   []Metric
	incidents map[string]*Incident
	nextID    int64
}

func newMemStorage() *memStorage {
	return &memStorage{incidents: make(map[string]*Incident)}
}

func (m *memStorage) Initialize() error { return nil }
func (m *memStorage) Close() error      { return nil }

func (m *memStorage) SaveMetric(result CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.metrics = append(m.metrics, Metric{
		ID:           m.nextID,
		CheckName:    result.CheckName,
		Status:       result.Status,
		DurationMS:   result.DurationMS,
		ErrorMessage: result.ErrorMessage,
		Timestamp:    result.Timestamp,
		Metadata:     result.Metadata,
		CreatedAt:    result.Timestamp,
	})
	return nil
}

func (m *memStorage) RecentOutcomes(checkName string, n int) ([]Metric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Metric
	for i := len(m.metrics) - 1; i >= 0 && len(out) < n; i-- {
		if m.metrics[i].CheckName == checkName {
			out = append(out, m.metrics[i])
		}
	}
	return out, nil
}

func (m *memStorage) MetricsByTimeRange(checkName string, start, end time.Time) ([]Metric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Metric
	for _, metric := range m.metrics {
		if metric.CheckName != checkName {
			continue
		}
		if metric.Timestamp.Before(start) || metric.Timestamp.After(end) {
			continue
		}
		out = append(out, metric)
	}
	return out, nil
}

func (m *memStorage) Uptime(checkName string, window time.Duration) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, passed int
	for _, metric := range m.metrics {
		if metric.CheckName != checkName {
			continue
		}
		total++
		if metric.Status == StatusPass {
			passed++
		}
	}
	if total == 0 {
		return 1.0, nil
	}
	return float64(passed) / float64(total), nil
}

func (m *memStorage) LatestMetricTime() (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest time.Time
	for _, metric := range m.metrics {
		if metric.Timestamp.After(latest) {
			latest = metric.Timestamp
		}
	}
	return latest, nil
}

func (m *memStorage) CleanOldData(keepDays int) error { return nil }

func (m *memStorage) CreateIncident(incident *Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *incident
	m.incidents[incident.ID] = &copied
	return nil
}

func (m *memStorage) UpdateIncident(incident *Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *incident
	m.incidents[incident.ID] = &copied
	return nil
}

func (m *memStorage) GetIncident(id string) (*Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, nil
	}
	copied := *incident
	return &copied, nil
}

func (m *memStorage) FindOpenIncident(checkName string) (*Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, incident := range m.incidents {
		if incident.CheckName == checkName && incident.Open() {
			copied := *incident
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStorage) ListIncidents(status IncidentStatus, limit int) ([]Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Incident
	for _, incident := range m.incidents {
		if status != "" && incident.Status != status {
			continue
		}
		out = append(out, *incident)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStorage) GetStorageInfo() StorageInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StorageInfo{Type: "memory", TotalMetrics: len(m.metrics)}
}

// sentNotification records one delivery through a fake channel
type sentNotification struct {
	Subject  string
	Body     string
	Severity Severity
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	err  error
}

func (f *fakeNotifier) Send(subject, body string, severity Severity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{subject, body, severity})
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// alertHarness wires an AlertManager against in-memory fakes with a
// controllable clock
type alertHarness struct {
	storage *memStorage
	tracker *IncidentTracker
	high    *fakeNotifier
	low     *fakeNotifier
	manager *AlertManager
	clock   time.Time
}

func newAlertHarness(config AlertConfig) *alertHarness {
	h := &alertHarness{
		storage: newMemStorage(),
		high:    &fakeNotifier{},
		low:     &fakeNotifier{},
		clock:   time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC),
	}
	h.tracker = NewIncidentTracker(h.storage)
	h.manager = NewAlertManager(config, h.storage, h.tracker, h.high, h.low)
	h.manager.now = func() time.Time { return h.clock }
	return h
}

func (h *alertHarness) advance(d time.Duration) {
	h.clock = h.clock.Add(d)
}

// observe persists one outcome and evaluates it, the way the scheduler does
func (h *alertHarness) observe(t *testing.T, checkName string, status CheckStatus) {
	t.Helper()
	result := CheckResult{CheckName: checkName, Status: status, Timestamp: h.clock}
	if err := h.storage.SaveMetric(result); err != nil {
		t.Fatalf("SaveMetric failed: %v", err)
	}
	if err := h.manager.Evaluate(result); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
}

func (h *alertHarness) openIncident(t *testing.T, checkName string) *Incident {
	t.Helper()
	incident, err := h.storage.FindOpenIncident(checkName)
	if err != nil {
		t.Fatalf("FindOpenIncident failed: %v", err)
	}
	return incident
}

func TestSingleFailureDoesNotAlert(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)

	if len(h.low.sent) != 0 {
		t.Errorf("One failure should not notify, got %d sends", len(h.low.sent))
	}
	if h.openIncident(t, "api") != nil {
		t.Error("One failure should not open an incident")
	}
}

func TestConsecutiveFailuresAlert(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)

	if len(h.low.sent) != 1 {
		t.Fatalf("Expected 1 low-cost notification, got %d", len(h.low.sent))
	}
	if len(h.high.sent) != 0 {
		t.Errorf("Warning severity should not use high-cost channel, got %d sends", len(h.high.sent))
	}

	incident := h.openIncident(t, "api")
	if incident == nil {
		t.Fatal("Expected an open incident")
	}
	if incident.Severity != SeverityWarning {
		t.Errorf("Unmapped check should default to warning, got %s", incident.Severity)
	}
	if incident.Status != IncidentActive {
		t.Errorf("Expected active incident, got %s", incident.Status)
	}
}

func TestPassBetweenFailuresResetsGate(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusPass)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)

	if len(h.low.sent) != 0 {
		t.Errorf("Non-consecutive failures should not notify, got %d sends", len(h.low.sent))
	}
}

func TestDedupWindowSuppressesRepeats(t *testing.T) {
	h := newAlertHarness(AlertConfig{
		Severities: map[string]Severity{"api": SeverityCritical},
	})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Fatalf("Expected first notification, got %d", len(h.low.sent))
	}

	// Keep failing inside the window
	for i := 0; i < 3; i++ {
		h.advance(4 * time.Minute)
		h.observe(t, "api", StatusFail)
	}
	if len(h.low.sent) != 1 {
		t.Errorf("Failures inside dedup window should not notify again, got %d sends", len(h.low.sent))
	}

	// Past the window the next failure notifies again
	h.advance(4 * time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 2 {
		t.Errorf("Expected a second notification after the window, got %d sends", len(h.low.sent))
	}
}

func TestCriticalRoutesBothChannels(t *testing.T) {
	h := newAlertHarness(AlertConfig{
		Severities: map[string]Severity{"db": SeverityCritical},
	})

	h.observe(t, "db", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "db", StatusFail)

	if len(h.high.sent) != 1 {
		t.Errorf("Critical incident should use high-cost channel, got %d sends", len(h.high.sent))
	}
	if len(h.low.sent) != 1 {
		t.Errorf("Critical incident should also use low-cost channel, got %d sends", len(h.low.sent))
	}
}

func TestDegradedDowngradesToWarning(t *testing.T) {
	h := newAlertHarness(AlertConfig{
		Severities: map[string]Severity{"api": SeverityCritical},
	})

	h.observe(t, "api", StatusDegraded)
	h.advance(time.Minute)
	h.observe(t, "api", StatusDegraded)

	if len(h.high.sent) != 0 {
		t.Errorf("Degraded outcome should not page, got %d high-cost sends", len(h.high.sent))
	}
	if len(h.low.sent) != 1 {
		t.Fatalf("Expected 1 low-cost notification, got %d", len(h.low.sent))
	}

	incident := h.openIncident(t, "api")
	if incident == nil {
		t.Fatal("Expected an open incident")
	}
	if incident.Severity != SeverityWarning {
		t.Errorf("Degraded critical check should open warning incident, got %s", incident.Severity)
	}
}

func TestEscalationFiresExactlyOnce(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 || len(h.high.sent) != 0 {
		t.Fatalf("Expected initial warning on low-cost only, got low=%d high=%d", len(h.low.sent), len(h.high.sent))
	}

	// Unacknowledged past the escalation threshold: exactly when the
	// dedup window reopens, the next failure escalates
	h.advance(15 * time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.high.sent) != 1 {
		t.Fatalf("Expected escalation on high-cost channel, got %d sends", len(h.high.sent))
	}
	if !strings.Contains(h.high.sent[0].Subject, "[escalation]") {
		t.Errorf("Escalation subject should be marked, got %q", h.high.sent[0].Subject)
	}
	if len(h.low.sent) != 2 {
		t.Errorf("Escalation should also go to low-cost, got %d sends", len(h.low.sent))
	}

	// Still failing another window later: no second escalation
	h.advance(15 * time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.high.sent) != 1 {
		t.Errorf("Escalation must fire once per incident, got %d high-cost sends", len(h.high.sent))
	}
	if len(h.low.sent) != 3 {
		t.Errorf("Expected routine reminder on low-cost, got %d sends", len(h.low.sent))
	}
}

func TestAcknowledgedIncidentDoesNotEscalate(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)

	incident := h.openIncident(t, "api")
	if incident == nil {
		t.Fatal("Expected an open incident")
	}
	if _, err := h.tracker.Acknowledge(incident.ID, "oncall"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	h.advance(20 * time.Minute)
	h.observe(t, "api", StatusFail)

	if len(h.high.sent) != 0 {
		t.Errorf("Acknowledged incident should not escalate, got %d high-cost sends", len(h.high.sent))
	}
	if len(h.low.sent) != 2 {
		t.Errorf("Acknowledged incident still gets routine reminders, got %d sends", len(h.low.sent))
	}
}

func TestRecoveryBypassesDedupAndResolves(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Fatalf("Expected failure notification, got %d", len(h.low.sent))
	}

	// Recovery one minute later, deep inside the dedup window
	h.advance(time.Minute)
	h.observe(t, "api", StatusPass)
	if len(h.low.sent) != 2 {
		t.Fatalf("Recovery must notify despite dedup window, got %d sends", len(h.low.sent))
	}
	if !strings.Contains(h.low.sent[1].Subject, "[recovered]") {
		t.Errorf("Recovery subject should be marked, got %q", h.low.sent[1].Subject)
	}
	if h.openIncident(t, "api") != nil {
		t.Error("Incident should be resolved after recovery")
	}

	// A fresh outage opens a fresh incident; the dedup clock carries
	// over, so its notification waits for the window to reopen
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)

	second := h.openIncident(t, "api")
	if second == nil {
		t.Fatal("New outage should open a new incident")
	}
	if len(h.low.sent) != 2 {
		t.Errorf("New incident inside dedup window should stay quiet, got %d sends", len(h.low.sent))
	}

	h.advance(15 * time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 3 {
		t.Errorf("Expected notification once window reopened, got %d sends", len(h.low.sent))
	}
}

func TestCriticalRecoveryNotifiesHighCost(t *testing.T) {
	h := newAlertHarness(AlertConfig{
		Severities: map[string]Severity{"db": SeverityCritical},
	})

	h.observe(t, "db", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "db", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "db", StatusPass)

	if len(h.high.sent) != 2 {
		t.Errorf("Critical recovery should use high-cost channel, got %d sends", len(h.high.sent))
	}
	if !strings.Contains(h.high.sent[1].Subject, "[recovered]") {
		t.Errorf("Recovery subject should be marked, got %q", h.high.sent[1].Subject)
	}
}

func TestHighCostRateLimit(t *testing.T) {
	h := newAlertHarness(AlertConfig{RateLimitPerHour: 2})

	for i := 0; i < 5; i++ {
		h.manager.SelfMonitorAlert("scheduler dead", "no metrics")
	}

	if len(h.high.sent) != 2 {
		t.Errorf("High-cost sends should stop at the hourly ceiling, got %d", len(h.high.sent))
	}
	if len(h.low.sent) != 5 {
		t.Errorf("Low-cost channel is never rate limited, got %d sends", len(h.low.sent))
	}

	// A new calendar hour resets the bucket
	h.advance(time.Hour)
	h.manager.SelfMonitorAlert("scheduler dead", "no metrics")
	if len(h.high.sent) != 3 {
		t.Errorf("Rate limit should reset on the calendar hour, got %d sends", len(h.high.sent))
	}
}

func TestFailedSendStillStartsDedupWindow(t *testing.T) {
	h := newAlertHarness(AlertConfig{})
	h.low.err = errSendFailed

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Fatalf("Expected one send attempt, got %d", len(h.low.sent))
	}

	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Errorf("A failed send still counts for dedup, got %d attempts", len(h.low.sent))
	}
}

func TestSelfMonitorAlertBypassesDedup(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Fatalf("Expected failure notification, got %d", len(h.low.sent))
	}

	h.manager.SelfMonitorAlert("scheduler dead", "no metrics")
	if len(h.low.sent) != 2 {
		t.Errorf("Self-monitor alert must bypass dedup, got %d sends", len(h.low.sent))
	}
	if len(h.high.sent) != 1 {
		t.Errorf("Self-monitor alert should page, got %d high-cost sends", len(h.high.sent))
	}
}

func TestUpdateConfigPreservesDedupState(t *testing.T) {
	h := newAlertHarness(AlertConfig{})

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)

	h.manager.UpdateConfig(AlertConfig{
		FailureThreshold:           2,
		DedupWindowMinutes:         15,
		EscalationThresholdMinutes: 15,
		RateLimitPerHour:           10,
	})

	h.advance(time.Minute)
	h.observe(t, "api", StatusFail)
	if len(h.low.sent) != 1 {
		t.Errorf("Reload should preserve dedup state, got %d sends", len(h.low.sent))
	}
}

// blockingNotifier parks inside Send until released, standing in for a
// hung transport
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingNotifier) Send(subject, body string, severity Severity) error {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return nil
}

func TestSlowSendDoesNotBlockOtherChecks(t *testing.T) {
	h := newAlertHarness(AlertConfig{})
	slow := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	h.manager.lowCost = slow

	h.observe(t, "api", StatusFail)
	h.advance(time.Minute)

	// Second consecutive failure crosses the gate and notifies through
	// the hung transport
	stuck := CheckResult{CheckName: "api", Status: StatusFail, Timestamp: h.clock}
	if err := h.storage.SaveMetric(stuck); err != nil {
		t.Fatalf("SaveMetric failed: %v", err)
	}
	stuckDone := make(chan struct{})
	go func() {
		h.manager.Evaluate(stuck)
		close(stuckDone)
	}()
	<-slow.entered

	// A different check's evaluation needs only the policy state, never
	// the first check's transport
	other := CheckResult{CheckName: "db", Status: StatusFail, Timestamp: h.clock}
	if err := h.storage.SaveMetric(other); err != nil {
		t.Fatalf("SaveMetric failed: %v", err)
	}
	otherDone := make(chan error, 1)
	go func() { otherDone <- h.manager.Evaluate(other) }()

	select {
	case err := <-otherDone:
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Evaluation of another check waited on a hung send")
	}

	close(slow.release)
	<-stuckDone
}

// pausingStorage parks one armed FindOpenIncident call mid-flight so the
// test can try to interleave a concurrent writer
type pausingStorage struct {
	*memStorage
	armed   chan struct{}
	paused  chan struct{}
	release chan struct{}
}

func (p *pausingStorage) FindOpenIncident(checkName string) (*Incident, error) {
	incident, err := p.memStorage.FindOpenIncident(checkName)
	select {
	case <-p.armed:
		close(p.paused)
		<-p.release
	default:
	}
	return incident, err
}

func TestAcknowledgeSerializedWithEvaluation(t *testing.T) {
	storage := &pausingStorage{
		memStorage: newMemStorage(),
		armed:      make(chan struct{}, 1),
		paused:     make(chan struct{}),
		release:    make(chan struct{}),
	}
	tracker := NewIncidentTracker(storage)
	manager := NewAlertManager(AlertConfig{}, storage, tracker, &fakeNotifier{}, &fakeNotifier{})
	clock := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)
	manager.now = func() time.Time { return clock }

	observe := func(at time.Time) error {
		result := CheckResult{CheckName: "api", Status: StatusFail, Timestamp: at}
		if err := storage.SaveMetric(result); err != nil {
			t.Fatalf("SaveMetric failed: %v", err)
		}
		return manager.Evaluate(result)
	}
	if err := observe(clock); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if err := observe(clock.Add(time.Minute)); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	incident, err := storage.FindOpenIncident("api")
	if err != nil || incident == nil {
		t.Fatalf("Expected an open incident, got %v (%v)", incident, err)
	}

	// Third failure: pause the evaluation inside the incident's
	// read-modify-write window
	storage.armed <- struct{}{}
	evalDone := make(chan error, 1)
	third := CheckResult{CheckName: "api", Status: StatusFail, Timestamp: clock.Add(2 * time.Minute)}
	if err := storage.SaveMetric(third); err != nil {
		t.Fatalf("SaveMetric failed: %v", err)
	}
	go func() { evalDone <- manager.Evaluate(third) }()
	<-storage.paused

	ackDone := make(chan struct{})
	go func() {
		if _, err := manager.Acknowledge(incident.ID, "oncall"); err != nil {
			t.Errorf("Acknowledge failed: %v", err)
		}
		close(ackDone)
	}()

	// The ack must wait for the in-flight evaluation instead of landing
	// inside it and being overwritten
	select {
	case <-ackDone:
		t.Fatal("Acknowledge completed inside an in-flight evaluation")
	case <-time.After(100 * time.Millisecond):
	}

	close(storage.release)
	if err := <-evalDone; err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	<-ackDone

	final, err := storage.GetIncident(incident.ID)
	if err != nil || final == nil {
		t.Fatalf("GetIncident failed: %v", err)
	}
	if final.Status != IncidentAcknowledged || final.AcknowledgedAt == nil {
		t.Fatalf("Acknowledgment lost to concurrent evaluation: status=%s acknowledged_at=%v",
			final.Status, final.AcknowledgedAt)
	}
	if final.FailureCount != 3 {
		t.Errorf("Expected 3 recorded failures, got %d", final.FailureCount)
	}
}
