package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// App wires the engine together: storage, incident tracker, alert
// manager, check scheduler, retention and the self-monitor.
type App struct {
	Config Config

	storage   Storage
	tracker   *IncidentTracker
	alerts    *AlertManager
	scheduler *Scheduler
	selfMon   *SelfMonitor

	cleanupStop chan struct{}
}

// NewApp creates a new application instance
func NewApp(config Config) (*App, error) {
	dataDir := ResolveDataDir(config)
	storage := NewStorage(dataDir, config.Storage)
	tracker := NewIncidentTracker(storage)

	highCost, err := NewNotifier(config.Channels.HighCost.Type, config.Channels.HighCost.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create high-cost channel: %w", err)
	}
	lowCost, err := NewNotifier(config.Channels.LowCost.Type, config.Channels.LowCost.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to create low-cost channel: %w", err)
	}
	if highCost == nil {
		log.Println("Warning: no high-cost channel configured, critical routing degrades to low-cost only")
	}
	if lowCost == nil {
		log.Println("Warning: no low-cost channel configured")
	}

	alerts := NewAlertManager(config.Alerting, storage, tracker, highCost, lowCost)
	scheduler := NewScheduler(storage, alerts)

	for _, checkConfig := range config.Checks {
		check, err := NewCheckFromConfig(checkConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build check %q: %w", checkConfig.Name, err)
		}
		scheduler.Register(check)
	}

	return &App{
		Config:      config,
		storage:     storage,
		tracker:     tracker,
		alerts:      alerts,
		scheduler:   scheduler,
		selfMon:     NewSelfMonitor(config.Alerting, storage, alerts),
		cleanupStop: make(chan struct{}),
	}, nil
}

// Initialize opens storage
func (a *App) Initialize() error {
	return a.storage.Initialize()
}

// Start launches the scheduler, self-monitor and retention loop
func (a *App) Start() error {
	if err := a.scheduler.Start(); err != nil {
		return err
	}
	a.selfMon.Start()

	if a.Config.Storage.AutoCleanup {
		go a.cleanupLoop()
	}

	return nil
}

// Stop shuts everything down in reverse order
func (a *App) Stop() {
	close(a.cleanupStop)
	a.selfMon.Stop()
	a.scheduler.Stop()
	if err := a.storage.Close(); err != nil {
		log.Printf("Warning: failed to close storage: %v", err)
	}
}

// cleanupLoop purges metrics beyond retention once a day
func (a *App) cleanupLoop() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.cleanupStop:
			return
		case <-ticker.C:
			if err := a.storage.CleanOldData(a.Config.Storage.KeepDays); err != nil {
				log.Printf("Warning: retention cleanup failed: %v", err)
			}
		}
	}
}

// ApplyConfig applies a hot-reloaded configuration to the running engine.
// Only the alert policy section takes effect live.
func (a *App) ApplyConfig(config Config) {
	a.Config.Alerting = config.Alerting
	a.alerts.UpdateConfig(config.Alerting)
}

// Tracker returns the incident tracker (read side for API handlers)
func (a *App) Tracker() *IncidentTracker {
	return a.tracker
}

// Storage returns the metrics store
func (a *App) Storage() Storage {
	return a.storage
}

// Scheduler returns the check scheduler
func (a *App) Scheduler() *Scheduler {
	return a.scheduler
}

// Acknowledge marks an incident acknowledged on behalf of an operator.
// It goes through the alert manager so the write is serialized with
// in-flight evaluations.
func (a *App) Acknowledge(incidentID, acknowledgedBy string) (*Incident, error) {
	return a.alerts.Acknowledge(incidentID, acknowledgedBy)
}

// ResolveDataDir resolves the configured data directory, defaulting to
// ~/.healthwatch when unset
func ResolveDataDir(config Config) string {
	dataDir := expandPath(config.DataDir)
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".healthwatch")
	}
	return dataDir
}

// expandPath expands environment variables and ~ in a path
func expandPath(path string) string {
	expanded := os.ExpandEnv(path)
	if strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			expanded = filepath.Join(home, expanded[2:])
		}
	}
	return expanded
}
