// Package api provides the HTTP client for the balldontlie sports-data API.
package api

import "time"

// Team is the team object embedded in every game record.
type Team struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation,omitempty"`
	City         string `json:"city,omitempty"`
	Conference   string `json:"conference,omitempty"`
	Division     string `json:"division,omitempty"`
	FullName     string `json:"full_name,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Game is one finished, live or scheduled game as returned by GET /games.
// Records are passed through verbatim and never mutated.
type Game struct {
	ID               int    `json:"id"`
	Date             string `json:"date"`
	DateTime         string `json:"datetime,omitempty"`
	Season           int    `json:"season"`
	Status           string `json:"status"` // "Final", a tip-off time, or a period marker
	Period           int    `json:"period,omitempty"`
	Time             string `json:"time,omitempty"`
	Postseason       bool   `json:"postseason,omitempty"`
	HomeTeamScore    int    `json:"home_team_score"`
	VisitorTeamScore int    `json:"visitor_team_score"`
	HomeTeam         Team   `json:"home_team"`
	VisitorTeam      Team   `json:"visitor_team"`
}

// IsFinal reports whether the game has been played to completion.
func (g *Game) IsFinal() bool { return g.Status == "Final" }

// Day returns the calendar date part of the game date ("2024-01-05").
func (g *Game) Day() string {
	for i := 0; i < len(g.Date); i++ {
		if g.Date[i] == 'T' {
			return g.Date[:i]
		}
	}
	return g.Date
}

// StartsAt returns the best known start instant, used for ordering.
// Games without a parseable timestamp sort by calendar date.
func (g *Game) StartsAt() time.Time {
	for _, s := range []string{g.DateTime, g.Date} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GamesQuery holds the filters of GET /games. Zero values are omitted.
type GamesQuery struct {
	StartDate string // YYYY-MM-DD
	EndDate   string // YYYY-MM-DD
	TeamIDs   []int
	Seasons   []int
	PerPage   int
}

// GamesResponse is the envelope returned by GET /games.
type GamesResponse struct {
	Data []Game `json:"data"`
	Meta Meta   `json:"meta"`
}

// Meta is the cursor pagination block.
type Meta struct {
	NextCursor int `json:"next_cursor,omitempty"`
	PerPage    int `json:"per_page,omitempty"`
}
