package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultShellTimeout = 30 * time.Second
	maxShellTimeout     = 120
	maxShellOutput      = 16 * 1024
)

// ShellExecTool runs a command on the user's machine with sh -c (cmd /c on
// Windows). Only registered when desktop tools are enabled.
type ShellExecTool struct {
	dir string
}

func NewShellExecTool(dir string) *ShellExecTool { return &ShellExecTool{dir: dir} }

func (t *ShellExecTool) Def() ToolDef {
	return ToolDef{
		Name:        "shell_exec",
		Description: "Run a shell command on the user's machine. stderr is merged into the output, which is capped at 16KB. Returns JSON with exit_code and output.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"command": {
					Type:        "string",
					Description: "Shell command to execute",
				},
				"workdir": {
					Type:        "string",
					Description: "Working directory (defaults to the configured tools workdir)",
				},
				"timeout_seconds": {
					Type:        "integer",
					Description: "Kill the command after this many seconds",
					Default:     int(defaultShellTimeout / time.Second),
					Minimum:     intPtr(1),
					Maximum:     intPtr(maxShellTimeout),
				},
			},
			Required: []string{"command"},
		},
	}
}

type shellExecArgs struct {
	Command        string `json:"command"`
	WorkDir        string `json:"workdir"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type shellResult struct {
	ExitCode  int    `json:"exit_code"`
	Output    string `json:"output"`
	Truncated bool   `json:"truncated,omitempty"`
	TimedOut  bool   `json:"timed_out,omitempty"`
	Dir       string `json:"dir,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func (t *ShellExecTool) Call(ctx context.Context, argsJSON string) string {
	var args shellExecArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("error: invalid arguments: %v", err)
	}
	if strings.TrimSpace(args.Command) == "" {
		return "error: command is required"
	}

	timeout := defaultShellTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(min(args.TimeoutSeconds, maxShellTimeout)) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, flag := "sh", "-c"
	if runtime.GOOS == "windows" {
		name, flag = "cmd", "/c"
	}
	cmd := exec.CommandContext(ctx, name, flag, args.Command)
	// Children of the shell may keep the output pipe open after it is killed.
	cmd.WaitDelay = time.Second
	cmd.Dir = t.dir
	if args.WorkDir != "" {
		cmd.Dir = args.WorkDir
	}

	out := &cappedBuffer{limit: maxShellOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()
	res := shellResult{
		Output:    strings.TrimRight(out.String(), "\n"),
		Truncated: out.truncated,
		Dir:       cmd.Dir,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	slog.Info("shell_exec", "command", truncate(args.Command, 120), "dir", cmd.Dir, "elapsed_ms", res.ElapsedMS)

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			res.TimedOut = true
			res.ExitCode = -1
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
		default:
			// The command never started (bad workdir, missing shell).
			return fmt.Sprintf("error: %v", err)
		}
	}

	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf("error: encode result: %v", err)
	}
	return string(b)
}

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest, so a chatty command cannot grow memory without bound. Write always
// reports the full length so the command never sees a short write.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	switch {
	case len(p) <= room:
		c.buf.Write(p)
	case room > 0:
		c.buf.Write(p[:room])
		c.truncated = true
	default:
		c.truncated = len(p) > 0 || c.truncated
	}
	return len(p), nil
}

// String returns the kept bytes. When the limit split a multi-byte rune, the
// partial rune is dropped.
func (c *cappedBuffer) String() string {
	b := c.buf.Bytes()
	if c.truncated {
		b = trimPartialRune(b)
	}
	return string(b)
}

// trimPartialRune drops an incomplete UTF-8 sequence from the end of b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return string(trimPartialRune([]byte(s[:n]))) + "..."
}
