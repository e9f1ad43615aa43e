// Package nba implements the match predictor: team directory, alias
// resolution, win rates and the home-biased win-probability heuristic.
package nba

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// MinTeamID and MaxTeamID bound the fixed franchise id range.
const (
	MinTeamID = 1
	MaxTeamID = 30
)

var teamNames = [MaxTeamID + 1]string{
	1: "Atlanta Hawks", 2: "Boston Celtics", 3: "Brooklyn Nets",
	4: "Charlotte Hornets", 5: "Chicago Bulls", 6: "Cleveland Cavaliers",
	7: "Dallas Mavericks", 8: "Denver Nuggets", 9: "Detroit Pistons",
	10: "Golden State Warriors", 11: "Houston Rockets", 12: "Indiana Pacers",
	13: "LA Clippers", 14: "Los Angeles Lakers", 15: "Memphis Grizzlies",
	16: "Miami Heat", 17: "Milwaukee Bucks", 18: "Minnesota Timberwolves",
	19: "New Orleans Pelicans", 20: "New York Knicks", 21: "Oklahoma City Thunder",
	22: "Orlando Magic", 23: "Philadelphia 76ers", 24: "Phoenix Suns",
	25: "Portland Trail Blazers", 26: "Sacramento Kings", 27: "San Antonio Spurs",
	28: "Toronto Raptors", 29: "Utah Jazz", 30: "Washington Wizards",
}

// Alias maps one lowercase nickname, city or abbreviation to a team id.
type Alias struct {
	Name   string
	TeamID int
}

// aliases is scanned front to back by ResolveAlias and the first match wins,
// so the order here is part of the resolution contract: short inputs such as
// "la" resolve to whichever entry matches first.
var aliases = []Alias{
	{"hawks", 1}, {"atlanta", 1},
	{"celtics", 2}, {"boston", 2},
	{"nets", 3}, {"brooklyn", 3},
	{"hornets", 4}, {"charlotte", 4},
	{"bulls", 5}, {"chicago", 5},
	{"cavaliers", 6}, {"cavs", 6}, {"cleveland", 6},
	{"mavericks", 7}, {"mavs", 7}, {"dallas", 7},
	{"nuggets", 8}, {"denver", 8},
	{"pistons", 9}, {"detroit", 9},
	{"warriors", 10}, {"golden state", 10}, {"gsw", 10},
	{"rockets", 11}, {"houston", 11}, {"hou", 11},
	{"pacers", 12}, {"indiana", 12}, {"ind", 12},
	{"clippers", 13}, {"la clippers", 13}, {"lac", 13},
	{"lakers", 14}, {"la lakers", 14}, {"lal", 14},
	{"grizzlies", 15}, {"memphis", 15}, {"mem", 15},
	{"heat", 16}, {"miami", 16}, {"mia", 16},
	{"bucks", 17}, {"milwaukee", 17}, {"mil", 17},
	{"timberwolves", 18}, {"wolves", 18}, {"minnesota", 18}, {"min", 18},
	{"pelicans", 19}, {"new orleans", 19}, {"nop", 19},
	{"knicks", 20}, {"new york", 20}, {"nyk", 20},
	{"thunder", 21}, {"okc", 21}, {"oklahoma", 21}, {"oklahoma city", 21},
	{"magic", 22}, {"orlando", 22}, {"orl", 22},
	{"76ers", 23}, {"sixers", 23}, {"philadelphia", 23}, {"phi", 23},
	{"suns", 24}, {"phoenix", 24}, {"phx", 24},
	{"blazers", 25}, {"trail blazers", 25}, {"portland", 25}, {"por", 25},
	{"kings", 26}, {"sacramento", 26}, {"sac", 26},
	{"spurs", 27}, {"san antonio", 27}, {"sas", 27},
	{"raptors", 28}, {"toronto", 28}, {"tor", 28},
	{"jazz", 29}, {"utah", 29}, {"uta", 29},
	{"wizards", 30}, {"washington", 30}, {"was", 30},
}

// ValidTeamID reports whether id is inside the franchise range.
func ValidTeamID(id int) bool { return id >= MinTeamID && id <= MaxTeamID }

// TeamName returns the canonical name for id, or "ID {n}" when unmapped.
func TeamName(id int) string {
	if ValidTeamID(id) {
		return teamNames[id]
	}
	return fmt.Sprintf("ID %d", id)
}

// Team is one directory entry.
type Team struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Teams lists the directory in id order with each team's aliases.
func Teams() []Team {
	out := make([]Team, 0, MaxTeamID)
	for id := MinTeamID; id <= MaxTeamID; id++ {
		out = append(out, Team{ID: id, Name: teamNames[id]})
	}
	for _, a := range aliases {
		out[a.TeamID-1].Aliases = append(out[a.TeamID-1].Aliases, a.Name)
	}
	return out
}

// SortedTeamNames returns all canonical names in lexical order.
func SortedTeamNames() []string {
	names := make([]string, 0, MaxTeamID)
	for id := MinTeamID; id <= MaxTeamID; id++ {
		names = append(names, teamNames[id])
	}
	sort.Strings(names)
	return names
}

// ResolveAlias maps free text to a team id. Matching is case-insensitive and
// the first alias, in table order, satisfying any of these wins:
//
//  1. the input is a substring of the alias;
//  2. the input without spaces is a substring of the alias without spaces;
//  3. the input is a substring of the team's canonical name.
func ResolveAlias(input string) (int, bool) {
	q := strings.ToLower(strings.TrimSpace(input))
	compact := strings.ReplaceAll(q, " ", "")
	for _, a := range aliases {
		if strings.Contains(a.Name, q) ||
			strings.Contains(strings.ReplaceAll(a.Name, " ", ""), compact) ||
			strings.Contains(strings.ToLower(teamNames[a.TeamID]), q) {
			return a.TeamID, true
		}
	}
	return 0, false
}

// minSuggestScore is the Jaro-Winkler floor below which no suggestion is made.
const minSuggestScore = 0.8

// Suggest returns the canonical name closest to input by Jaro-Winkler
// similarity over aliases and canonical names, or "" when nothing is close.
func Suggest(input string) string {
	q := strings.ToLower(strings.TrimSpace(input))
	if q == "" {
		return ""
	}
	bestID, bestScore := 0, 0.0
	consider := func(candidate string, id int) {
		if s := matchr.JaroWinkler(q, candidate, false); s > bestScore {
			bestID, bestScore = id, s
		}
	}
	for _, a := range aliases {
		consider(a.Name, a.TeamID)
	}
	for id := MinTeamID; id <= MaxTeamID; id++ {
		consider(strings.ToLower(teamNames[id]), id)
	}
	if bestScore < minSuggestScore {
		return ""
	}
	return teamNames[bestID]
}
