package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// DaemonManager handles process lifecycle via a PID file. The engine
// assumes a single active instance; the PID file is what enforces that.
type DaemonManager struct {
	pidFile string
}

// NewDaemonManager creates a new daemon manager
func NewDaemonManager(dataDir string) *DaemonManager {
	return &DaemonManager{
		pidFile: filepath.Join(dataDir, "healthwatch.pid"),
	}
}

// WritePID writes the current process PID to file
func (d *DaemonManager) WritePID() error {
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0644)
}

// ReadPID reads the PID from file
func (d *DaemonManager) ReadPID() (int, error) {
	content, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("PID file not found: engine not running")
		}
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// IsRunning checks if the engine process is still alive
func (d *DaemonManager) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil {
		return false, 0, err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, pid, nil
	}

	// Signal 0 probes for existence without disturbing the process
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, pid, nil
	}
	return true, pid, nil
}

// Stop sends SIGTERM to the running engine
func (d *DaemonManager) Stop() error {
	pid, err := d.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("process %d not found", pid)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop process %d: %w", pid, err)
	}
	return nil
}

// RemovePID removes the PID file
func (d *DaemonManager) RemovePID() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
