package nba

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courtside/courtside-cli/internal/api"
	"github.com/courtside/courtside-cli/internal/observe"
)

const (
	// DefaultLastNGames is the win-rate sample size when none is given.
	DefaultLastNGames = 10

	// MaxLastNGames is the largest page the upstream API serves.
	MaxLastNGames = 100

	// DefaultLookaheadDays bounds the next-game search window.
	DefaultLookaheadDays = 14

	nextGamePageSize = 50
)

// GameLister fetches game records. *api.Client implements it.
type GameLister interface {
	ListGames(ctx context.Context, q api.GamesQuery) ([]api.Game, error)
}

// Config holds construction-time predictor settings.
type Config struct {
	// Season is the season filter for win-rate samples. Zero derives it
	// from the current date, see [CurrentSeason].
	Season int

	LastNGames    int
	LookaheadDays int

	// FinishedOnly drops non-final games from win-rate samples.
	FinishedOnly bool

	// Location is used to compute "today". Nil means time.Local.
	Location *time.Location

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Request is the input of one prediction call. Nil fields are absent.
type Request struct {
	HomeTeamID    *int    `json:"home_team_id,omitempty"`
	AwayTeamID    *int    `json:"away_team_id,omitempty"`
	TeamName      *string `json:"team_name,omitempty"`
	LastNGames    *int    `json:"last_n_games,omitempty"`
	GetPrediction *bool   `json:"get_prediction,omitempty"`
}

// Ptr returns a pointer to v, for building a [Request].
func Ptr[T any](v T) *T { return &v }

// Predictor answers schedule, next-game and win-probability queries.
// It holds no mutable state and is safe for concurrent use.
type Predictor struct {
	games GameLister
	cfg   Config
}

// NewPredictor creates a Predictor reading games from lister.
func NewPredictor(lister GameLister, cfg Config) *Predictor {
	if cfg.LastNGames <= 0 {
		cfg.LastNGames = DefaultLastNGames
	}
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = DefaultLookaheadDays
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Predictor{games: lister, cfg: cfg}
}

// CurrentSeason returns the season in progress at t. Seasons are named by
// the year they start in; a new one is assumed from October on.
func CurrentSeason(t time.Time) int {
	if t.Month() >= time.October {
		return t.Year()
	}
	return t.Year() - 1
}

// Predict runs one request. Every failure, including a panic, is reported
// in the returned Result; the result is never nil.
func (p *Predictor) Predict(ctx context.Context, req Request) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("predictor panic", "panic", r)
			res = failure(UpstreamFailure, "internal error: %v", r)
		}
		observe.DefaultMetrics().RecordPrediction(ctx, res.Kind())
	}()

	lastN := p.cfg.LastNGames
	if req.LastNGames != nil && *req.LastNGames > 0 {
		lastN = min(*req.LastNGames, MaxLastNGames)
	}
	getPrediction := req.GetPrediction == nil || *req.GetPrediction

	var name string
	if req.TeamName != nil {
		name = strings.TrimSpace(*req.TeamName)
	}

	switch {
	case name != "":
		return p.nextGame(ctx, name, lastN, getPrediction)
	case req.HomeTeamID == nil && req.AwayTeamID == nil:
		return p.schedule(ctx)
	case outOfRange(req.HomeTeamID) || outOfRange(req.AwayTeamID):
		return failure(InvalidRange, "team ids must be between %d and %d", MinTeamID, MaxTeamID)
	case req.HomeTeamID != nil && req.AwayTeamID != nil:
		pred, err := p.predict(ctx, *req.HomeTeamID, *req.AwayTeamID, lastN)
		if err != nil {
			return upstream(err)
		}
		return &Result{Prediction: pred}
	default:
		return failure(InsufficientInput,
			"either team_name (next game and its prediction) or both home_team_id and away_team_id (direct prediction) are required")
	}
}

func outOfRange(id *int) bool { return id != nil && !ValidTeamID(*id) }

func upstream(err error) *Result {
	slog.Warn("balldontlie request failed", "error", err)
	return failure(UpstreamFailure, "sports data request failed: %v", err)
}

func (p *Predictor) today() time.Time { return p.cfg.Now().In(p.cfg.Location) }

func (p *Predictor) season() int {
	if p.cfg.Season > 0 {
		return p.cfg.Season
	}
	return CurrentSeason(p.today())
}

// ── schedule ──

func (p *Predictor) schedule(ctx context.Context) *Result {
	day := p.today().Format(time.DateOnly)
	games, err := p.games.ListGames(ctx, api.GamesQuery{StartDate: day, EndDate: day})
	if err != nil {
		return upstream(err)
	}

	sched := &Schedule{Date: day, Games: make([]ScheduledGame, 0, len(games))}
	for i := range games {
		g := &games[i]
		score := PendingScore
		if g.IsFinal() {
			score = strconv.Itoa(g.HomeTeamScore) + "-" + strconv.Itoa(g.VisitorTeamScore)
		}
		sched.Games = append(sched.Games, ScheduledGame{
			HomeTeam: TeamName(g.HomeTeam.ID),
			AwayTeam: TeamName(g.VisitorTeam.ID),
			Time:     g.Status,
			Score:    score,
		})
	}

	res := &Result{Schedule: sched}
	if len(sched.Games) == 0 {
		res.Message = "No games scheduled for today."
	}
	return res
}

// ── next game ──

func (p *Predictor) nextGame(ctx context.Context, name string, lastN int, withPrediction bool) *Result {
	teamID, ok := ResolveAlias(name)
	if !ok {
		return teamNotFound(name)
	}
	team := TeamName(teamID)

	start := p.today()
	end := start.AddDate(0, 0, p.cfg.LookaheadDays)
	games, err := p.games.ListGames(ctx, api.GamesQuery{
		StartDate: start.Format(time.DateOnly),
		EndDate:   end.Format(time.DateOnly),
		TeamIDs:   []int{teamID},
		PerPage:   nextGamePageSize,
	})
	if err != nil {
		return upstream(err)
	}
	if len(games) == 0 {
		res := failure(NoUpcomingGame, "no games scheduled for %s in the next %d days", team, p.cfg.LookaheadDays)
		res.Team = team
		return res
	}

	// The API returns games in date order; a stable sort keeps that order
	// for ties and guards against pages that are not.
	sort.SliceStable(games, func(i, j int) bool {
		return games[i].StartsAt().Before(games[j].StartsAt())
	})
	g := games[0]

	res := &Result{
		Team: team,
		NextGame: &NextGame{
			Date:     g.Day(),
			TimeUTC:  g.Date,
			HomeTeam: TeamName(g.HomeTeam.ID),
			AwayTeam: TeamName(g.VisitorTeam.ID),
			Status:   g.Status,
		},
	}
	if !withPrediction {
		return res
	}

	pred, err := p.predict(ctx, g.HomeTeam.ID, g.VisitorTeam.ID, lastN)
	if err != nil {
		return upstream(err)
	}
	res.Prediction = pred
	return res
}

// ── prediction ──

func (p *Predictor) predict(ctx context.Context, homeID, awayID, lastN int) (*Prediction, error) {
	var home, away sample

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		home, err = p.winRate(gctx, homeID, lastN)
		return err
	})
	g.Go(func() (err error) {
		away, err = p.winRate(gctx, awayID, lastN)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// With no games for either side there is nothing to compare, so the
	// neutral rates are reported but the zero-sum home prior decides.
	odds := Combine(home.rate, away.rate)
	if home.size == 0 && away.size == 0 {
		odds = Combine(0, 0)
	}
	winner := awayID
	if odds.HomeWins {
		winner = homeID
	}
	slog.Debug("prediction", "home", homeID, "away", awayID,
		"home_rate", home.rate, "home_sample", home.size,
		"away_rate", away.rate, "away_sample", away.size,
		"p_home", odds.HomeProbability)

	return &Prediction{
		HomeTeam:       TeamName(homeID),
		AwayTeam:       TeamName(awayID),
		ProbableWinner: TeamName(winner),
		Probability:    odds.WinnerProbability,
		HomeWinRate:    Round2(home.rate),
		AwayWinRate:    Round2(away.rate),
		GamesAnalyzed:  lastN,
		Note:           predictionNote,
	}, nil
}

type sample struct {
	rate float64
	size int
}

// winRate runs on an errgroup goroutine, outside the recover in Predict, so
// it converts its own panics into errors.
func (p *Predictor) winRate(ctx context.Context, teamID, lastN int) (s sample, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("predictor panic", "panic", r, "team", teamID)
			s, err = sample{}, fmt.Errorf("win rate for team %d: panic: %v", teamID, r)
		}
	}()

	games, err := p.games.ListGames(ctx, api.GamesQuery{
		TeamIDs: []int{teamID},
		Seasons: []int{p.season()},
		PerPage: lastN,
	})
	if err != nil {
		return sample{}, fmt.Errorf("win rate for team %d: %w", teamID, err)
	}
	rate, n := winRate(teamID, games, p.cfg.FinishedOnly)
	return sample{rate: rate, size: n}, nil
}
