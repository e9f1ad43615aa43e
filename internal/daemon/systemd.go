//go:build linux

package daemon

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// New returns a Linux systemd user service manager.
func New() (Manager, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return &systemdManager{
		unitDir: filepath.Join(home, ".config", "systemd", "user"),
		run:     execRunner,
	}, nil
}

type systemdManager struct {
	unitDir string
	run     runner
}

func (m *systemdManager) unitPath() string {
	return filepath.Join(m.unitDir, serviceName+".service")
}

// ctl runs `systemctl --user args...`.
func (m *systemdManager) ctl(args ...string) error {
	out, err := m.run("systemctl", append([]string{"--user"}, args...)...)
	if err != nil {
		return fmt.Errorf("systemctl %s: %s (%w)", args[0], bytes.TrimSpace(out), err)
	}
	return nil
}

func (m *systemdManager) Install() error {
	spec, err := NewSpec()
	if err != nil {
		return err
	}
	if err := install(m.unitPath(), systemdUnit, spec); err != nil {
		return err
	}
	if err := m.ctl("daemon-reload"); err != nil {
		return err
	}
	return m.ctl("enable", "--now", serviceName)
}

func (m *systemdManager) Uninstall() error {
	if !exists(m.unitPath()) {
		return ErrNotInstalled
	}
	_ = m.ctl("disable", "--now", serviceName)
	if err := os.Remove(m.unitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}
	_ = m.ctl("daemon-reload")
	_ = os.Remove(LogPath())
	return nil
}

func (m *systemdManager) Start() error   { return m.ctl("start", serviceName) }
func (m *systemdManager) Stop() error    { return m.ctl("stop", serviceName) }
func (m *systemdManager) Restart() error { return m.ctl("restart", serviceName) }

func (m *systemdManager) Status() (*Status, error) {
	s := &Status{Installed: exists(m.unitPath()), LogPath: LogPath()}

	out, err := m.run("systemctl", "--user", "show", serviceName, "--property=ActiveState,MainPID")
	if err == nil {
		props := parseProperties(out)
		if props["ActiveState"] == "active" {
			s.Running = true
			if pid, err := strconv.Atoi(props["MainPID"]); err == nil && pid > 0 {
				s.PID = pid
			}
		}
	}

	// A foreground `courtside serve` holds the lock without systemd.
	if !s.Running {
		if pid, alive := pidFromLockFile(); alive {
			s.Running, s.PID = true, pid
		}
	}
	return s, nil
}

// parseProperties reads systemctl show's Key=Value lines.
func parseProperties(out []byte) map[string]string {
	props := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if k, v, ok := strings.Cut(sc.Text(), "="); ok {
			props[k] = strings.TrimSpace(v)
		}
	}
	return props
}
