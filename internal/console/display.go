package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/courtside/courtside-cli/internal/fx"
	"github.com/courtside/courtside-cli/internal/nba"
)

var (
	bold  = color.New(color.Bold)
	green = color.New(color.FgGreen, color.Bold)
	red   = color.New(color.FgRed, color.Bold)
	dim   = color.New(color.Faint)
)

// DisplayResult prints a human-readable predictor result.
func DisplayResult(w io.Writer, res *nba.Result) {
	if res.Error != nil {
		DisplayFailure(w, res.Error)
		return
	}
	if res.Schedule != nil {
		displaySchedule(w, res.Schedule, res.Message)
		return
	}
	if res.NextGame != nil {
		g := res.NextGame
		bold.Fprintf(w, "Next game for %s\n", res.Team)
		fmt.Fprintf(w, "  %s  %s vs %s  (%s)\n", g.Date, g.HomeTeam, g.AwayTeam, g.Status)
		dim.Fprintf(w, "  tip-off: %s\n", g.TimeUTC)
	}
	if res.Prediction != nil {
		if res.NextGame != nil {
			fmt.Fprintln(w)
		}
		displayPrediction(w, res.Prediction)
	}
}

func displaySchedule(w io.Writer, s *nba.Schedule, msg string) {
	bold.Fprintf(w, "Games on %s\n", s.Date)
	if len(s.Games) == 0 {
		dim.Fprintf(w, "  %s\n", msg)
		return
	}
	for _, g := range s.Games {
		fmt.Fprintf(w, "  %-24s vs %-24s %-12s %s\n", g.HomeTeam, g.AwayTeam, g.Time, g.Score)
	}
}

func displayPrediction(w io.Writer, p *nba.Prediction) {
	bold.Fprintf(w, "%s (home) vs %s (away)\n", p.HomeTeam, p.AwayTeam)
	fmt.Fprintf(w, "  Win rate, last %d: home %.2f | away %.2f\n", p.GamesAnalyzed, p.HomeWinRate, p.AwayWinRate)
	fmt.Fprint(w, "  Probable winner: ")
	green.Fprintf(w, "%s (%.0f%%)\n", p.ProbableWinner, p.Probability*100)
	dim.Fprintf(w, "  %s\n", p.Note)
}

// DisplayFailure prints a predictor failure.
func DisplayFailure(w io.Writer, f *nba.Failure) {
	red.Fprintf(w, "Error (%s): ", f.Kind)
	if f.Kind == nba.TeamNotFound {
		// The message embeds the full team list; print it as a column instead.
		msg, _, _ := strings.Cut(f.Message, ". Available teams:")
		fmt.Fprintln(w, msg)
		if f.DidYouMean != "" {
			fmt.Fprintf(w, "  Did you mean %s?\n", f.DidYouMean)
		}
		dim.Fprintln(w, "  Available teams:")
		for _, n := range f.AvailableTeams {
			dim.Fprintf(w, "    %s\n", n)
		}
		return
	}
	fmt.Fprintln(w, f.Message)
}

// DisplayTeams prints the team directory.
func DisplayTeams(w io.Writer, teams []nba.Team) {
	for _, t := range teams {
		fmt.Fprintf(w, "%3d  %-24s ", t.ID, t.Name)
		dim.Fprintln(w, strings.Join(t.Aliases, ", "))
	}
}

// DisplayConversion prints a currency conversion.
func DisplayConversion(w io.Writer, amount float64, c *fx.Conversion) {
	switch {
	case c.DOP != nil:
		fmt.Fprintf(w, "%.2f USD = ", amount)
		green.Fprintf(w, "%.2f DOP\n", *c.DOP)
	case c.USD != nil:
		fmt.Fprintf(w, "%.2f DOP = ", amount)
		green.Fprintf(w, "%.2f USD\n", *c.USD)
	}
	dim.Fprintf(w, "rate: 1 USD = %v DOP\n", c.Rate)
}

// DisplayError prints an error message.
func DisplayError(w io.Writer, msg string) {
	red.Fprint(w, "Error: ")
	fmt.Fprintln(w, msg)
}
