//go:build darwin

package daemon

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// New returns a macOS LaunchAgent service manager.
func New() (Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return &launchdManager{
		agentDir: filepath.Join(home, "Library", "LaunchAgents"),
		run:      execRunner,
	}, nil
}

type launchdManager struct {
	agentDir string
	run      runner
}

func (m *launchdManager) plistPath() string {
	return filepath.Join(m.agentDir, label+".plist")
}

func (m *launchdManager) ctl(args ...string) error {
	out, err := m.run("launchctl", args...)
	if err != nil {
		return fmt.Errorf("launchctl %s: %s (%w)", args[0], bytes.TrimSpace(out), err)
	}
	return nil
}

func (m *launchdManager) Install() error {
	spec, err := NewSpec()
	if err != nil {
		return err
	}
	if err := install(m.plistPath(), launchdPlist, spec); err != nil {
		return err
	}
	return m.ctl("load", "-w", m.plistPath())
}

func (m *launchdManager) Uninstall() error {
	if !exists(m.plistPath()) {
		return ErrNotInstalled
	}
	// unload stops and disables.
	_ = m.ctl("unload", m.plistPath())
	if err := os.Remove(m.plistPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove plist: %w", err)
	}
	_ = os.Remove(LogPath())
	return nil
}

func (m *launchdManager) Start() error { return m.ctl("start", label) }
func (m *launchdManager) Stop() error  { return m.ctl("stop", label) }

func (m *launchdManager) Restart() error {
	_ = m.Stop()
	return m.Start()
}

// Status relies on the serve lock, since launchctl list output is not
// stable across macOS releases.
func (m *launchdManager) Status() (*Status, error) {
	s := &Status{Installed: exists(m.plistPath()), LogPath: LogPath()}
	if pid, alive := pidFromLockFile(); alive {
		s.Running, s.PID = true, pid
	}
	return s, nil
}
