//go:build !windows
// +build !windows

package core

import (
	"syscall"
)

// ReloadSignal returns the signal that forces a config reload. SIGUSR1
// complements the file watcher for setups where the config lives on a
// filesystem without inotify support.
func ReloadSignal() syscall.Signal {
	return syscall.SIGUSR1
}
