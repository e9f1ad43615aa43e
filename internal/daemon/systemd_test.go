//go:build linux

package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/courtside/courtside-cli/internal/config"
)

type fakeSystemctl struct {
	calls []string
	show  string
	fail  string // subcommand that fails
}

func (f *fakeSystemctl) run(name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if f.fail != "" && len(args) > 1 && args[1] == f.fail {
		return []byte("Failed to connect to bus"), errors.New("exit status 1")
	}
	if len(args) > 1 && args[1] == "show" {
		return []byte(f.show), nil
	}
	return nil, nil
}

func newTestSystemd(t *testing.T) (*systemdManager, *fakeSystemctl) {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())
	fake := &fakeSystemctl{}
	return &systemdManager{unitDir: filepath.Join(t.TempDir(), "user"), run: fake.run}, fake
}

func TestSystemd_InstallUninstall(t *testing.T) {
	m, fake := newTestSystemd(t)

	if err := m.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	unit, err := os.ReadFile(m.unitPath())
	if err != nil {
		t.Fatalf("unit not written: %v", err)
	}
	if !strings.Contains(string(unit), " serve\n") {
		t.Errorf("unit does not run serve:\n%s", unit)
	}
	want := []string{"systemctl --user daemon-reload", "systemctl --user enable --now courtside"}
	if strings.Join(fake.calls, "|") != strings.Join(want, "|") {
		t.Errorf("calls = %v, want %v", fake.calls, want)
	}

	if err := m.Uninstall(); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if exists(m.unitPath()) {
		t.Error("unit file should be removed")
	}
	if err := m.Uninstall(); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("second Uninstall err = %v", err)
	}
}

func TestSystemd_CommandFailure(t *testing.T) {
	m, fake := newTestSystemd(t)
	fake.fail = "start"
	err := m.Start()
	if err == nil || !strings.Contains(err.Error(), "Failed to connect to bus") {
		t.Fatalf("Start err = %v", err)
	}
}

func TestSystemd_Status(t *testing.T) {
	m, fake := newTestSystemd(t)

	fake.show = "ActiveState=active\nMainPID=4242\n"
	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Installed || !st.Running || st.PID != 4242 {
		t.Errorf("status = %+v", st)
	}

	// Inactive unit, but a foreground server holds the lock.
	fake.show = "ActiveState=inactive\nMainPID=0\n"
	release, err := AcquireLock()
	if err != nil {
		t.Fatal(err)
	}
	defer release()
	st, _ = m.Status()
	if !st.Running || st.PID != os.Getpid() {
		t.Errorf("status with lock = %+v", st)
	}
}

func TestParseProperties(t *testing.T) {
	got := parseProperties([]byte("ActiveState=active\nMainPID= 12\ngarbage\n"))
	if got["ActiveState"] != "active" || got["MainPID"] != "12" || len(got) != 2 {
		t.Errorf("got %v", got)
	}
}
