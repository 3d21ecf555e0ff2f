//go:build windows
// +build windows

package core

import (
	"syscall"
)

// ReloadSignal returns the manual reload signal. SIGUSR1 does not exist
// on Windows; reloads there rely on the file watcher alone, so a signal
// that never fires from outside is returned to keep the wiring uniform.
func ReloadSignal() syscall.Signal {
	return syscall.Signal(0xa)
}
