package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/courtside/courtside-cli/internal/config"
)

// LockPath returns the PID file held by a running `serve`.
func LockPath() string {
	return filepath.Join(config.Dir(), "serve.lock")
}

// AcquireLock writes a PID lock file so only one server runs per config
// directory. Returns a release function.
func AcquireLock() (release func(), err error) {
	lockPath := LockPath()

	if pid, alive := pidFromLockFile(); alive {
		return nil, fmt.Errorf(
			"another courtside server is running (PID %d)\n"+
				"If this is wrong, remove: %s", pid, lockPath)
	}
	// Stale lock from a crashed process.
	_ = os.Remove(lockPath)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getpid())), 0600); err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	return func() { _ = os.Remove(lockPath) }, nil
}

// pidFromLockFile reads the PID from the lock file and checks whether the
// process is still alive.
func pidFromLockFile() (int, bool) {
	data, err := os.ReadFile(LockPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}

// processAlive checks whether a PID is still running.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 tests existence without delivering anything.
	return proc.Signal(syscall.Signal(0)) == nil
}
