package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/courtside/courtside-cli/internal/nba"
)

// Predictor is implemented by *nba.Predictor.
type Predictor interface {
	Predict(ctx context.Context, req nba.Request) *nba.Result
}

// NBAPredictTool exposes the match predictor. Domain failures are returned
// inside the JSON result, not as tool errors.
type NBAPredictTool struct {
	predictor Predictor
}

func NewNBAPredictTool(p Predictor) *NBAPredictTool { return &NBAPredictTool{predictor: p} }

func (t *NBAPredictTool) Def() ToolDef {
	return ToolDef{
		Name: "nba_predict_prob",
		Description: "NBA schedule and win probability. No arguments: today's games. team_name: that team's next game " +
			"(plus a prediction unless get_prediction=false). home_team_id + away_team_id (1-30): direct prediction " +
			"from recent win rates with a home-court heuristic.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"home_team_id": {
					Type:        "integer",
					Description: "Home team id",
					Minimum:     intPtr(nba.MinTeamID),
					Maximum:     intPtr(nba.MaxTeamID),
				},
				"away_team_id": {
					Type:        "integer",
					Description: "Away team id",
					Minimum:     intPtr(nba.MinTeamID),
					Maximum:     intPtr(nba.MaxTeamID),
				},
				"team_name": {
					Type:        "string",
					Description: "Team name, city, nickname or abbreviation (e.g. lakers, gsw, boston)",
				},
				"last_n_games": {
					Type:        "integer",
					Description: "Recent games used for win rates",
					Default:     nba.DefaultLastNGames,
					Minimum:     intPtr(1),
					Maximum:     intPtr(nba.MaxLastNGames),
				},
				"get_prediction": {
					Type:        "boolean",
					Description: "With team_name, include the prediction for the next game",
					Default:     true,
				},
			},
		},
	}
}

func (t *NBAPredictTool) Call(ctx context.Context, argsJSON string) string {
	var req nba.Request
	if err := json.Unmarshal([]byte(argsJSON), &req); err != nil {
		return fmt.Sprintf("error: invalid arguments: %v", err)
	}
	out, err := json.Marshal(t.predictor.Predict(ctx, req))
	if err != nil {
		return fmt.Sprintf("error: encode result: %v", err)
	}
	return string(out)
}
