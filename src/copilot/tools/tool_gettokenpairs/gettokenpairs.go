package tool_gettokenpairs

import (
	"context"
	"errors"
	"fmt"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/copilot/dexscreener"
)

const Name = "getTokenPairs"

const description = "Get comprehensive market information about a token from DexScreener: its trading pairs, price, liquidity, market cap and social links (Telegram, Twitter, Website). Use this for due diligence or when users ask about token details, social presence or market metrics."

const DefaultLimit = 5

type Input struct {
	Mint  string `json:"mint" required:"true" description:"The token's mint/contract address"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of pairs to return (default 5)" validate:"omitempty,min=1,max=25"`
}

type Output struct {
	Mint  string             `json:"mint"`
	Top   dexscreener.Pair   `json:"top"`
	Pairs []dexscreener.Pair `json:"pairs"`
	// SuppressFollowUp tells the model the result speaks for itself.
	SuppressFollowUp bool `json:"suppressFollowUp"`
}

func Tool(client *dexscreener.Client) (agent.Tool, error) {
	return agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (Output, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = DefaultLimit
		}
		pairs, err := client.TokenPairs(ctx, input.Mint)
		if errors.Is(err, dexscreener.ErrNoPairs) {
			return Output{}, fmt.Errorf("no trading pairs found for %s", input.Mint)
		}
		if err != nil {
			return Output{}, fmt.Errorf("failed to fetch token pairs: %w", err)
		}
		if len(pairs) > limit {
			pairs = pairs[:limit]
		}
		return Output{Mint: input.Mint, Top: pairs[0], Pairs: pairs, SuppressFollowUp: true}, nil
	})
}
