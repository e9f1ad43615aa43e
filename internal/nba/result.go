package nba

import (
	"fmt"
	"strings"
)

// FailureKind classifies a predictor failure.
type FailureKind string

const (
	InvalidRange      FailureKind = "invalid_range"
	TeamNotFound      FailureKind = "team_not_found"
	NoUpcomingGame    FailureKind = "no_upcoming_game"
	InsufficientInput FailureKind = "insufficient_input"
	UpstreamFailure   FailureKind = "upstream_failure"
)

// Failure is a domain error returned inside a [Result].
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`

	// Set for TeamNotFound only.
	AvailableTeams []string `json:"available_teams,omitempty"`
	DidYouMean     string   `json:"did_you_mean,omitempty"`
}

func (f *Failure) Error() string { return string(f.Kind) + ": " + f.Message }

// ScheduledGame is one entry of a day's schedule.
type ScheduledGame struct {
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Time     string `json:"time"`  // upstream status string
	Score    string `json:"score"` // "home-away" once final, else PendingScore
}

// PendingScore is the score placeholder for games that are not final.
const PendingScore = "Por jugar"

// Schedule lists the games on one date.
type Schedule struct {
	Date  string          `json:"date"`
	Games []ScheduledGame `json:"games"`
}

// NextGame describes a team's next scheduled game.
type NextGame struct {
	Date     string `json:"date"`
	TimeUTC  string `json:"time_utc"` // raw upstream date value
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Status   string `json:"status"`
}

// Prediction is the combined win-probability block.
type Prediction struct {
	HomeTeam       string  `json:"home_team"`
	AwayTeam       string  `json:"away_team"`
	ProbableWinner string  `json:"probable_winner"`
	Probability    float64 `json:"probability"`
	HomeWinRate    float64 `json:"home_winrate"`
	AwayWinRate    float64 `json:"away_winrate"`
	GamesAnalyzed  int     `json:"games_analyzed"`
	Note           string  `json:"note"`
}

const predictionNote = "Probability is based on recent win rates and a simple home-court advantage heuristic."

// Result is the outcome of one [Predictor.Predict] call. Exactly one of
// Error, Schedule, NextGame or Prediction describes the outcome; a team
// lookup with prediction sets both NextGame and Prediction.
type Result struct {
	Team       string      `json:"team,omitempty"`
	Schedule   *Schedule   `json:"schedule,omitempty"`
	NextGame   *NextGame   `json:"next_game,omitempty"`
	Prediction *Prediction `json:"prediction,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      *Failure    `json:"error,omitempty"`
}

// Kind returns a short label for the outcome, used for metrics and display.
func (r *Result) Kind() string {
	switch {
	case r.Error != nil:
		return string(r.Error.Kind)
	case r.Prediction != nil:
		return "prediction"
	case r.NextGame != nil:
		return "next_game"
	default:
		return "schedule"
	}
}

// OK reports whether the result carries no failure.
func (r *Result) OK() bool { return r.Error == nil }

func failure(kind FailureKind, format string, args ...any) *Result {
	return &Result{Error: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

func teamNotFound(input string) *Result {
	names := SortedTeamNames()
	return &Result{Error: &Failure{
		Kind:           TeamNotFound,
		Message:        fmt.Sprintf("team %q not found. Available teams: %s", input, strings.Join(names, ", ")),
		AvailableTeams: names,
		DidYouMean:     Suggest(input),
	}}
}
