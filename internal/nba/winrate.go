package nba

import (
	"strconv"

	"github.com/courtside/courtside-cli/internal/api"
)

// NeutralWinRate is the prior used when a team has no games in the sample.
const NeutralWinRate = 0.5

// Heuristic constants. homeWeight and homeBonus encode a fixed home-court
// advantage; the clamp keeps reported probabilities away from 0 and 1.
const (
	homeWeight      = 0.9
	homeBonus       = 0.05
	zeroSumFallback = 0.55
	minProbability  = 0.05
	maxProbability  = 0.95
)

// WinRate returns the fraction of games won by teamID. A game counts as a win
// when the team is home with a strictly higher home score or visitor with a
// strictly higher visitor score; anything else, including unplayed games,
// counts as a non-win. With finishedOnly, non-final games are dropped from the
// sample first. An empty sample yields [NeutralWinRate].
func WinRate(teamID int, games []api.Game, finishedOnly bool) float64 {
	rate, _ := winRate(teamID, games, finishedOnly)
	return rate
}

// winRate is WinRate that also reports the sample size.
func winRate(teamID int, games []api.Game, finishedOnly bool) (float64, int) {
	played, wins := 0, 0
	for i := range games {
		g := &games[i]
		if finishedOnly && !g.IsFinal() {
			continue
		}
		played++
		switch {
		case g.HomeTeam.ID == teamID && g.HomeTeamScore > g.VisitorTeamScore:
			wins++
		case g.VisitorTeam.ID == teamID && g.VisitorTeamScore > g.HomeTeamScore:
			wins++
		}
	}
	if played == 0 {
		return NeutralWinRate, 0
	}
	return float64(wins) / float64(played), played
}

// Odds is the outcome of combining two win rates.
type Odds struct {
	// HomeProbability is the clamped, unrounded probability of a home win.
	HomeProbability float64

	// HomeWins is true when the home side is the probable winner.
	HomeWins bool

	// WinnerProbability is the probable winner's probability, rounded to
	// two decimals.
	WinnerProbability float64
}

// Combine turns home and away win rates into [Odds]:
//
//	p = (home*0.9 + 0.05) / (home + away), or 0.55 when both rates are zero
//	p = clamp(p, 0.05, 0.95)
//
// The home side wins only when p > 0.5; an exact 0.5 goes to the away side.
func Combine(home, away float64) Odds {
	var p float64
	if home+away > 0 {
		p = (home*homeWeight + homeBonus) / (home + away)
	} else {
		p = zeroSumFallback
	}
	p = min(max(p, minProbability), maxProbability)

	if p > 0.5 {
		return Odds{HomeProbability: p, HomeWins: true, WinnerProbability: Round2(p)}
	}
	return Odds{HomeProbability: p, HomeWins: false, WinnerProbability: Round2(1 - p)}
}

// Round2 rounds x to two decimals, resolving exact binary halves to even
// (0.125 -> 0.12, 0.375 -> 0.38).
func Round2(x float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return r
}
