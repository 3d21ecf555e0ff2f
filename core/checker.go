package core

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Check is a named, periodically executed probe of system health
type Check interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) CheckResult
}

// Scheduler drives registered checks, each on its own interval. One
// goroutine per check; a slow notification send in one check's pipeline
// never delays another check's schedule.
type Scheduler struct {
	storage Storage
	alerts  *AlertManager
	checks  []Check

	lastResults map[string]CheckResult
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewScheduler creates a new scheduler
func NewScheduler(storage Storage, alerts *AlertManager) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		storage:     storage,
		alerts:      alerts,
		lastResults: make(map[string]CheckResult),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register adds a check to the schedule. Must be called before Start.
func (s *Scheduler) Register(check Check) {
	s.checks = append(s.checks, check)
}

// Checks returns the registered checks
func (s *Scheduler) Checks() []Check {
	return s.checks
}

// Start launches one loop per registered check
func (s *Scheduler) Start() error {
	if len(s.checks) == 0 {
		return fmt.Errorf("no checks registered")
	}

	for _, check := range s.checks {
		s.wg.Add(1)
		go s.runLoop(check)
	}

	log.Printf("Scheduler started: %d checks", len(s.checks))
	return nil
}

// Stop cancels all check loops and waits for them to finish
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// runLoop executes one check on its interval until cancelled. The first
// execution happens immediately so a fresh start produces signal without
// waiting a full interval.
func (s *Scheduler) runLoop(check Check) {
	defer s.wg.Done()

	ticker := time.NewTicker(check.Interval())
	defer ticker.Stop()

	s.executeOnce(check)

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.executeOnce(check)
		}
	}
}

// executeOnce runs the probe, persists the outcome, then evaluates it.
// Record-then-evaluate is strictly ordered: a storage failure aborts the
// cycle before any alerting decision, logged as a system fault rather
// than a check failure.
func (s *Scheduler) executeOnce(check Check) {
	result := check.Run(s.ctx)
	if result.CheckName == "" {
		result.CheckName = check.Name()
	}
	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now()
	}

	if err := s.storage.SaveMetric(result); err != nil {
		log.Printf("System fault: failed to persist outcome for check %s, skipping evaluation: %v", check.Name(), err)
		return
	}

	s.mu.Lock()
	s.lastResults[check.Name()] = result
	s.mu.Unlock()

	if err := s.alerts.Evaluate(result); err != nil {
		log.Printf("System fault: evaluation failed for check %s: %v", check.Name(), err)
	}
}

// LastResult returns the most recent in-memory outcome for a check
func (s *Scheduler) LastResult(checkName string) (CheckResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.lastResults[checkName]
	return result, ok
}

// NewCheckFromConfig builds a probe from its configuration entry
func NewCheckFromConfig(config CheckConfig) (Check, error) {
	switch config.Type {
	case "http":
		return NewHTTPCheck(config)
	case "system":
		return NewSystemCheck(config)
	case "docker":
		return NewDockerCheck(config)
	default:
		return nil, fmt.Errorf("unknown check type: %s", config.Type)
	}
}
