package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/courtside/courtside-cli/internal/fx"
)

// Converter is implemented by *fx.Converter.
type Converter interface {
	Convert(ctx context.Context, amount float64, dir fx.Direction) (*fx.Conversion, error)
}

// ExchangeRateTool converts between USD and DOP at the live rate.
type ExchangeRateTool struct {
	fx Converter
}

func NewExchangeRateTool(c Converter) *ExchangeRateTool { return &ExchangeRateTool{fx: c} }

func (t *ExchangeRateTool) Def() ToolDef {
	return ToolDef{
		Name:        "exchangerate",
		Description: "Convert between US dollars (USD) and Dominican pesos (DOP) using the live exchange rate.",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]ToolProperty{
				"amount": {
					Type:        "number",
					Description: "Amount to convert",
					Default:     1.0,
				},
				"direction": {
					Type:        "string",
					Description: "Conversion direction",
					Enum:        []string{string(fx.USDToDOP), string(fx.DOPToUSD)},
					Default:     string(fx.USDToDOP),
				},
			},
		},
	}
}

type exchangeArgs struct {
	Amount    any `json:"amount"`
	Direction any `json:"direction"`
}

func (t *ExchangeRateTool) Call(ctx context.Context, argsJSON string) string {
	var args exchangeArgs
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Sprintf("error: invalid arguments: %v", err)
	}

	amount, err := fx.ParseAmount(args.Amount)
	if err != nil {
		return fx.Message(err)
	}
	dir := fx.USDToDOP
	if args.Direction != nil {
		if dir, err = fx.ParseDirection(fmt.Sprint(args.Direction)); err != nil {
			return fx.Message(err)
		}
	}

	conv, err := t.fx.Convert(ctx, amount, dir)
	if err != nil {
		return fx.Message(err)
	}
	out, err := json.Marshal(conv)
	if err != nil {
		return fmt.Sprintf("error: encode result: %v", err)
	}
	return string(out)
}
