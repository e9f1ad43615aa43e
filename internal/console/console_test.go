package console

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/courtside/courtside-cli/internal/fx"
	"github.com/courtside/courtside-cli/internal/nba"
)

func init() { color.NoColor = true }

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLogger_File(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "courtside.log")
	closer := SetupLogger("debug", path)
	slog.Debug("hello", "k", "v")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=hello k=v") {
		t.Errorf("log = %q", data)
	}
}

func TestDisplayResult_Prediction(t *testing.T) {
	var buf bytes.Buffer
	DisplayResult(&buf, &nba.Result{Prediction: &nba.Prediction{
		HomeTeam: "Los Angeles Lakers", AwayTeam: "LA Clippers",
		ProbableWinner: "Los Angeles Lakers", Probability: 0.55,
		HomeWinRate: 0.5, AwayWinRate: 0.5, GamesAnalyzed: 10,
	}})
	out := buf.String()
	for _, want := range []string{"Los Angeles Lakers (home) vs LA Clippers (away)", "last 10", "Probable winner: Los Angeles Lakers (55%)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDisplayResult_EmptySchedule(t *testing.T) {
	var buf bytes.Buffer
	DisplayResult(&buf, &nba.Result{Schedule: &nba.Schedule{Date: "2026-10-18"}, Message: "No games scheduled for today."})
	if !strings.Contains(buf.String(), "No games scheduled for today.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDisplayFailure_TeamNotFound(t *testing.T) {
	var buf bytes.Buffer
	DisplayFailure(&buf, &nba.Failure{
		Kind:           nba.TeamNotFound,
		Message:        `team "lakerz" not found. Available teams: A, B`,
		AvailableTeams: []string{"A", "B"},
		DidYouMean:     "Los Angeles Lakers",
	})
	out := buf.String()
	if !strings.Contains(out, `Error (team_not_found): team "lakerz" not found`) ||
		!strings.Contains(out, "Did you mean Los Angeles Lakers?") ||
		strings.Contains(out, "Available teams: A") {
		t.Errorf("output = %q", out)
	}
}

func TestDisplayConversion(t *testing.T) {
	var buf bytes.Buffer
	dop := 605.0
	DisplayConversion(&buf, 10, &fx.Conversion{DOP: &dop, Rate: 60.5})
	if !strings.Contains(buf.String(), "10.00 USD = 605.00 DOP") {
		t.Errorf("output = %q", buf.String())
	}
}
