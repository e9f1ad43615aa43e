// Package daemon runs `courtside serve` as a background service using
// platform-native service managers (launchd on macOS, systemd on Linux).
package daemon

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/courtside/courtside-cli/internal/config"
)

const (
	label       = "io.courtside.serve"
	serviceName = "courtside"
)

// ErrNotInstalled is returned when removing a service that was never installed.
var ErrNotInstalled = errors.New("service not installed")

// Manager defines platform-specific service management operations.
type Manager interface {
	Install() error
	Uninstall() error
	Start() error
	Stop() error
	Restart() error
	Status() (*Status, error)
}

// Status describes the current state of the background service.
type Status struct {
	Installed bool
	Running   bool
	PID       int
	LogPath   string
}

// Spec is what the service runs.
type Spec struct {
	Label   string
	Exec    string
	Args    []string
	LogPath string
}

// NewSpec describes `<this binary> serve` logging to [LogPath].
func NewSpec() (Spec, error) {
	exe, err := ExecPath()
	if err != nil {
		return Spec{}, err
	}
	return Spec{Label: label, Exec: exe, Args: []string{"serve"}, LogPath: LogPath()}, nil
}

// LogPath returns the file the service's stdout and stderr are appended to.
func LogPath() string {
	return filepath.Join(config.Dir(), "serve.log")
}

// ExecPath returns the resolved absolute path of the running binary.
func ExecPath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate binary: %w", err)
	}
	p, err = filepath.EvalSymlinks(p)
	if err != nil {
		return "", fmt.Errorf("cannot resolve binary path: %w", err)
	}
	return p, nil
}

// runner executes a service-manager CLI and returns its combined output.
type runner func(name string, args ...string) ([]byte, error)

func execRunner(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// install writes a rendered service file, creating its directory and the
// log directory.
func install(path string, tmpl *template.Template, spec Spec) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, spec); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var systemdUnit = template.Must(template.New("unit").Parse(`[Unit]
Description=Courtside NBA predictor and assistant tools
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
ExecStart={{.Exec}}{{range .Args}} {{.}}{{end}}
Restart=on-failure
RestartSec=30
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}

[Install]
WantedBy=default.target
`))

var launchdPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN"
  "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`))
