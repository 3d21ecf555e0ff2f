package core

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// SelfMonitor is the meta-monitoring watchdog. It runs on its own
// interval, independent of the check schedule, and alerts when the
// newest stored metric is older than the staleness threshold: if nothing
// is being recorded, the scheduler itself has died. Its alert bypasses
// the dedup window, the one path in the system allowed to.
type SelfMonitor struct {
	storage  Storage
	alerts   *AlertManager
	interval time.Duration
	maxAge   time.Duration

	alerted  bool
	mu       sync.Mutex
	stopChan chan struct{}
	stopOnce sync.Once

	// now is replaceable in tests
	now func() time.Time
}

// NewSelfMonitor creates a new self-monitor
func NewSelfMonitor(config AlertConfig, storage Storage, alerts *AlertManager) *SelfMonitor {
	interval := time.Duration(config.SelfMonitorIntervalMinutes) * time.Minute
	if interval == 0 {
		interval = 5 * time.Minute
	}
	maxAge := config.StalenessThreshold()
	if maxAge == 0 {
		maxAge = 10 * time.Minute
	}

	return &SelfMonitor{
		storage:  storage,
		alerts:   alerts,
		interval: interval,
		maxAge:   maxAge,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the watchdog loop
func (sm *SelfMonitor) Start() {
	go sm.loop()
	log.Printf("Self-monitor started: interval=%s staleness=%s", sm.interval, sm.maxAge)
}

// Stop terminates the watchdog loop
func (sm *SelfMonitor) Stop() {
	sm.stopOnce.Do(func() { close(sm.stopChan) })
}

func (sm *SelfMonitor) loop() {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sm.stopChan:
			return
		case <-ticker.C:
			sm.checkOnce()
		}
	}
}

// checkOnce inspects metric freshness and alerts on staleness. The alert
// fires once per staleness episode and re-arms when metrics flow again.
func (sm *SelfMonitor) checkOnce() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	latest, err := sm.storage.LatestMetricTime()
	if err != nil {
		log.Printf("System fault: self-monitor cannot read latest metric time: %v", err)
		return
	}
	if latest.IsZero() {
		// Empty store: nothing has ever run, let startup finish
		return
	}

	age := sm.now().Sub(latest)
	if age <= sm.maxAge {
		if sm.alerted {
			log.Println("Self-monitor: metrics flowing again, watchdog re-armed")
		}
		sm.alerted = false
		return
	}

	if sm.alerted {
		return
	}
	sm.alerted = true

	subject := "monitoring scheduler appears dead"
	body := fmt.Sprintf("No metric of any kind has been recorded for %s (threshold %s).\nLast recorded: %s\nThe check scheduler has likely stopped; this alert bypasses deduplication.",
		age.Round(time.Second), sm.maxAge, latest.Format(time.RFC3339))

	log.Printf("Self-monitor: %s (last metric %s ago)", subject, age.Round(time.Second))
	sm.alerts.SelfMonitorAlert(subject, body)
}
