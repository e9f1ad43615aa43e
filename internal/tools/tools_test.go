package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/courtside/courtside-cli/internal/fx"
	"github.com/courtside/courtside-cli/internal/nba"
)

type stubPredictor struct {
	got nba.Request
	res *nba.Result
}

func (s *stubPredictor) Predict(_ context.Context, req nba.Request) *nba.Result {
	s.got = req
	return s.res
}

type stubConverter struct {
	rate float64
	err  error
}

func (s stubConverter) Convert(_ context.Context, amount float64, dir fx.Direction) (*fx.Conversion, error) {
	if s.err != nil {
		return nil, s.err
	}
	if dir == fx.USDToDOP {
		v := amount * s.rate
		return &fx.Conversion{DOP: &v, Rate: s.rate}, nil
	}
	v := amount / s.rate
	return &fx.Conversion{USD: &v, Rate: s.rate}, nil
}

// ── registry ──

func TestDefaults(t *testing.T) {
	deps := Deps{Predictor: &stubPredictor{}, Exchange: stubConverter{rate: 60}}
	names := func(ts []Tool) []string {
		var out []string
		for _, tool := range ts {
			out = append(out, tool.Def().Name)
		}
		return out
	}
	if got := strings.Join(names(Defaults(deps)), ","); got != "nba_predict_prob,exchangerate" {
		t.Errorf("default tools = %s", got)
	}
	deps.Desktop = true
	if got := strings.Join(names(Defaults(deps)), ","); got != "nba_predict_prob,exchangerate,shell_exec,filesystem" {
		t.Errorf("desktop tools = %s", got)
	}
}

func TestDefSchemas(t *testing.T) {
	deps := Deps{Predictor: &stubPredictor{}, Exchange: stubConverter{}, Desktop: true}
	for _, tool := range Defaults(deps) {
		d := tool.Def()
		b, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("[%s] marshal: %v", d.Name, err)
		}
		if d.Parameters.Type != "object" || d.Description == "" {
			t.Errorf("[%s] incomplete def: %s", d.Name, b)
		}
		for _, r := range d.Parameters.Required {
			if _, ok := d.Parameters.Properties[r]; !ok {
				t.Errorf("[%s] required %q has no property", d.Name, r)
			}
		}
		t.Logf("[%s] def size: %d chars", d.Name, len(b))
	}
}

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry(NewExchangeRateTool(stubConverter{rate: 60}), NewExchangeRateTool(stubConverter{rate: 1}))
	if len(r.Tools()) != 1 {
		t.Fatalf("duplicate names should collapse, got %d tools", len(r.Tools()))
	}
	out, err := r.Call(context.Background(), "exchangerate", "")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != `{"dop":60,"rate":60}` {
		t.Errorf("out = %s", out)
	}
	if _, err := r.Call(context.Background(), "nope", "{}"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("err = %v, want ErrUnknownTool", err)
	}
}

// ── nba_predict_prob ──

func TestNBAPredict_PassesArguments(t *testing.T) {
	stub := &stubPredictor{res: &nba.Result{Error: &nba.Failure{Kind: nba.InvalidRange, Message: "team ids must be between 1 and 30"}}}
	tool := NewNBAPredictTool(stub)
	out := tool.Call(context.Background(), `{"home_team_id":0,"away_team_id":13,"get_prediction":false}`)

	if stub.got.HomeTeamID == nil || *stub.got.HomeTeamID != 0 || *stub.got.AwayTeamID != 13 {
		t.Errorf("request = %+v", stub.got)
	}
	if stub.got.TeamName != nil || stub.got.LastNGames != nil || *stub.got.GetPrediction {
		t.Errorf("request = %+v", stub.got)
	}
	var decoded struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil || decoded.Error.Kind != "invalid_range" {
		t.Errorf("out = %s", out)
	}
	if IsErrorResult(out) {
		t.Error("domain failures are results, not tool errors")
	}
}

func TestNBAPredict_BadArguments(t *testing.T) {
	tool := NewNBAPredictTool(&stubPredictor{})
	out := tool.Call(context.Background(), `{"home_team_id":"fourteen"}`)
	if !strings.HasPrefix(out, "error: invalid arguments") {
		t.Errorf("out = %q", out)
	}
}

// ── exchangerate ──

func TestExchangeRate(t *testing.T) {
	tool := NewExchangeRateTool(stubConverter{rate: 50})
	tests := []struct {
		args string
		want string
	}{
		{`{}`, `{"dop":50,"rate":50}`},
		{`{"amount":"2","direction":" USD_TO_DOP "}`, `{"dop":100,"rate":50}`},
		{`{"amount":100,"direction":"dop_to_usd"}`, `{"usd":2,"rate":50}`},
		{`{"amount":"lots"}`, "Error: amount must be a number"},
		{`{"direction":"eur_to_usd"}`, "Error: direction must be 'usd_to_dop' or 'dop_to_usd'"},
		{`{"direction":""}`, "Error: direction must be 'usd_to_dop' or 'dop_to_usd'"},
	}
	for _, tt := range tests {
		if got := tool.Call(context.Background(), tt.args); got != tt.want {
			t.Errorf("Call(%s) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestExchangeRate_NoRate(t *testing.T) {
	tool := NewExchangeRateTool(stubConverter{err: fx.ErrNoRate})
	if got := tool.Call(context.Background(), `{"amount":5}`); got != "Error: Could not fetch live rate" {
		t.Errorf("got %q", got)
	}
}

// ── shell_exec ──

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("sh not available")
	}
}

func runShell(t *testing.T, tool *ShellExecTool, args string) shellResult {
	t.Helper()
	out := tool.Call(context.Background(), args)
	var res shellResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("shell_exec returned non-JSON %q: %v", out, err)
	}
	return res
}

func TestShellExec(t *testing.T) {
	skipOnWindows(t)
	tests := []struct {
		name     string
		args     string
		output   string
		exitCode int
	}{
		{"echo", `{"command":"echo hello_courtside"}`, "hello_courtside", 0},
		{"pipeline", `{"command":"printf 'a\\nb\\nc\\n' | wc -l | tr -d ' '"}`, "3", 0},
		{"stderr merged", `{"command":"echo oops >&2; exit 2"}`, "oops", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runShell(t, NewShellExecTool(""), tt.args)
			if res.Output != tt.output || res.ExitCode != tt.exitCode {
				t.Fatalf("got output=%q exit=%d, want %q exit=%d", res.Output, res.ExitCode, tt.output, tt.exitCode)
			}
		})
	}
}

func TestShellExec_Workdir(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), nil, 0644); err != nil {
		t.Fatal(err)
	}
	tool := NewShellExecTool(dir)
	if res := runShell(t, tool, `{"command":"ls"}`); !strings.Contains(res.Output, "marker.txt") {
		t.Fatalf("default workdir not used: %+v", res)
	}
	if res := runShell(t, tool, `{"command":"pwd","workdir":"/"}`); res.Output != "/" {
		t.Fatalf("workdir override not used: %+v", res)
	}
}

func TestShellExec_Timeout(t *testing.T) {
	skipOnWindows(t)
	res := runShell(t, NewShellExecTool(""), `{"command":"sleep 5","timeout_seconds":1}`)
	if !res.TimedOut || res.ExitCode != -1 {
		t.Fatalf("expected timeout, got %+v", res)
	}
}

func TestShellExec_OutputCapKeepsRunes(t *testing.T) {
	skipOnWindows(t)
	// One ASCII byte then two-byte runes, so the byte cap falls inside a rune.
	res := runShell(t, NewShellExecTool(""), `{"command":"printf a; i=0; while [ $i -lt 9000 ]; do printf '\\303\\251'; i=$((i+1)); done"}`)
	if !res.Truncated {
		t.Fatalf("expected truncated output, got %d bytes", len(res.Output))
	}
	if !utf8.ValidString(res.Output) || strings.ContainsRune(res.Output, utf8.RuneError) {
		t.Fatal("truncated output is not clean UTF-8")
	}
	if len(res.Output) != maxShellOutput-1 {
		t.Errorf("len(output) = %d, want %d", len(res.Output), maxShellOutput-1)
	}
	if !strings.HasSuffix(res.Output, "é") {
		t.Errorf("output should end on a whole rune: %q", res.Output[len(res.Output)-4:])
	}
}

func TestCappedBuffer(t *testing.T) {
	tests := []struct {
		name      string
		limit     int
		writes    []string
		want      string
		truncated bool
	}{
		{"under limit", 8, []string{"abc", "de"}, "abcde", false},
		{"exact limit", 4, []string{"ab", "cd"}, "abcd", false},
		{"cut inside write", 4, []string{"abcdef"}, "abcd", true},
		{"writes after full", 2, []string{"ab", "cd"}, "ab", true},
		{"split two-byte rune", 2, []string{"aé"}, "a", true},
		{"split four-byte rune", 3, []string{"🏀"}, "", true},
		{"whole rune at cut", 3, []string{"aé", "x"}, "aé", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &cappedBuffer{limit: tt.limit}
			for _, w := range tt.writes {
				n, err := c.Write([]byte(w))
				if err != nil || n != len(w) {
					t.Fatalf("Write(%q) = %d, %v; want full length", w, n, err)
				}
			}
			if got := c.String(); got != tt.want || c.truncated != tt.truncated {
				t.Errorf("got %q truncated=%v, want %q truncated=%v", got, c.truncated, tt.want, tt.truncated)
			}
		})
	}
}

func TestShellExec_Errors(t *testing.T) {
	tool := NewShellExecTool("")
	if out := tool.Call(context.Background(), `{"command":"  "}`); out != "error: command is required" {
		t.Errorf("blank command: %q", out)
	}
	if out := tool.Call(context.Background(), `{"command":"true","workdir":"/does/not/exist"}`); !IsErrorResult(out) {
		t.Errorf("missing workdir: %q", out)
	}
}

// ── filesystem ──

func callFS(t *testing.T, tool *FilesystemTool, args string) map[string]any {
	t.Helper()
	out := tool.Call(context.Background(), args)
	if IsErrorResult(out) {
		t.Fatalf("%s: %s", args, out)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("non-JSON result %q: %v", out, err)
	}
	return res
}

func TestFilesystem_WriteReadMoveDelete(t *testing.T) {
	tool := NewFilesystemTool(t.TempDir())

	res := callFS(t, tool, `{"operation":"write","path":"notes/verify.txt","content":"hello courtside\n"}`)
	if res["bytes"] != float64(16) {
		t.Fatalf("write = %v", res)
	}
	res = callFS(t, tool, `{"operation":"read","path":"notes/verify.txt"}`)
	if res["content"] != "hello courtside\n" || res["truncated"] != false {
		t.Fatalf("read = %v", res)
	}
	res = callFS(t, tool, `{"operation":"info","path":"notes/verify.txt"}`)
	if res["dir"] != false || res["size"] != float64(16) {
		t.Fatalf("info = %v", res)
	}
	callFS(t, tool, `{"operation":"move","path":"notes/verify.txt","dest":"archive/verify.txt"}`)
	callFS(t, tool, `{"operation":"delete","path":"archive/verify.txt"}`)

	if out := tool.Call(context.Background(), `{"operation":"read","path":"archive/verify.txt"}`); !IsErrorResult(out) {
		t.Fatalf("expected error reading deleted file, got: %q", out)
	}
}

func TestFilesystem_ListAndMkdir(t *testing.T) {
	root := t.TempDir()
	tool := NewFilesystemTool(root)

	callFS(t, tool, `{"operation":"mkdir","path":"a/b"}`)
	_ = os.WriteFile(filepath.Join(root, "a", "c.txt"), []byte("xyz"), 0644)

	res := callFS(t, tool, `{"operation":"list","path":"a"}`)
	entries, _ := res["entries"].([]any)
	if len(entries) != 2 {
		t.Fatalf("list = %v", res)
	}
	first := entries[0].(map[string]any)
	second := entries[1].(map[string]any)
	if first["name"] != "b" || first["dir"] != true || second["name"] != "c.txt" || second["size"] != float64(3) {
		t.Fatalf("entries = %v", entries)
	}

	// An empty path lists the workspace root.
	res = callFS(t, tool, `{"operation":"list"}`)
	if got, _ := res["entries"].([]any); len(got) != 1 {
		t.Fatalf("root list = %v", res)
	}

	if out := tool.Call(context.Background(), `{"operation":"read","path":"a"}`); !strings.Contains(out, "is a directory") {
		t.Fatalf("expected error reading a directory, got: %q", out)
	}
}

func TestFilesystem_StaysInsideWorkspace(t *testing.T) {
	root := t.TempDir()
	tool := NewFilesystemTool(root)

	for _, args := range []string{
		`{"operation":"write","path":"/etc/courtside_test","content":"blocked"}`,
		`{"operation":"read","path":"../outside.txt"}`,
		`{"operation":"move","path":"x","dest":"/tmp/elsewhere"}`,
	} {
		if out := tool.Call(context.Background(), args); !IsErrorResult(out) {
			t.Errorf("%s: expected error, got %q", args, out)
		}
	}

	// Absolute paths inside the workspace are accepted.
	abs := filepath.Join(root, "inside.txt")
	res := callFS(t, tool, fmt.Sprintf(`{"operation":"write","path":%q,"content":"ok"}`, abs))
	if res["bytes"] != float64(2) {
		t.Fatalf("write = %v", res)
	}
}

func TestFilesystem_BadInput(t *testing.T) {
	tool := NewFilesystemTool(t.TempDir())
	tests := []struct{ args, want string }{
		{`{"operation":"chmod","path":"x"}`, "unknown operation"},
		{`{"operation":"read"}`, "path is required"},
		{`{"operation":"move","path":"x"}`, "dest is required"},
		{`not json`, "invalid arguments"},
	}
	for _, tt := range tests {
		if out := tool.Call(context.Background(), tt.args); !strings.Contains(out, tt.want) {
			t.Errorf("%s: got %q, want %q", tt.args, out, tt.want)
		}
	}
}
