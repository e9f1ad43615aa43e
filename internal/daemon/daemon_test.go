package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"text/template"

	"github.com/courtside/courtside-cli/internal/config"
)

func TestPathsFollowConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(config.EnvHome, dir)

	if got := LogPath(); got != filepath.Join(dir, "serve.log") {
		t.Errorf("LogPath = %q", got)
	}
	if got := LockPath(); got != filepath.Join(dir, "serve.lock") {
		t.Errorf("LockPath = %q", got)
	}
}

func TestAcquireLock(t *testing.T) {
	t.Setenv(config.EnvHome, filepath.Join(t.TempDir(), "nested"))

	release, err := AcquireLock()
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	pid, alive := pidFromLockFile()
	if pid != os.Getpid() || !alive {
		t.Fatalf("lock pid = %d alive=%v, want own pid", pid, alive)
	}

	if _, err := AcquireLock(); err == nil || !strings.Contains(err.Error(), "another courtside server") {
		t.Fatalf("second AcquireLock err = %v", err)
	}

	release()
	if _, err := os.Stat(LockPath()); !os.IsNotExist(err) {
		t.Fatalf("lock file should be removed, stat err = %v", err)
	}
}

func TestAcquireLock_StaleLock(t *testing.T) {
	t.Setenv(config.EnvHome, t.TempDir())

	// Garbage content is treated as stale.
	if err := os.WriteFile(LockPath(), []byte("not-a-pid"), 0600); err != nil {
		t.Fatal(err)
	}
	release, err := AcquireLock()
	if err != nil {
		t.Fatalf("AcquireLock over stale lock: %v", err)
	}
	defer release()

	data, _ := os.ReadFile(LockPath())
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock content = %q", data)
	}
}

func render(t *testing.T, tmpl *template.Template, spec Spec) string {
	t.Helper()
	var b strings.Builder
	if err := tmpl.Execute(&b, spec); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}

func TestServiceTemplates(t *testing.T) {
	spec := Spec{Label: label, Exec: "/usr/local/bin/courtside", Args: []string{"serve"}, LogPath: "/home/u/.courtside/serve.log"}

	unit := render(t, systemdUnit, spec)
	for _, want := range []string{
		"ExecStart=/usr/local/bin/courtside serve\n",
		"StandardOutput=append:/home/u/.courtside/serve.log",
		"WantedBy=default.target",
	} {
		if !strings.Contains(unit, want) {
			t.Errorf("systemd unit missing %q", want)
		}
	}

	plist := render(t, launchdPlist, spec)
	for _, want := range []string{
		"<string>io.courtside.serve</string>",
		"<string>/usr/local/bin/courtside</string>\n        <string>serve</string>\n    </array>",
		"<key>StandardErrorPath</key>\n    <string>/home/u/.courtside/serve.log</string>",
	} {
		if !strings.Contains(plist, want) {
			t.Errorf("launchd plist missing %q\n%s", want, plist)
		}
	}
}
