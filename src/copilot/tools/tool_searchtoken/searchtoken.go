package tool_searchtoken

import (
	"context"
	"fmt"
	"strings"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/copilot/dexscreener"
	"github.com/elee1766/dextra/src/copilot/toolsutil"
)

const Name = "searchToken"

const description = `Search for a Solana token by symbol, name or mint address and return the best matches with their mint address, price and liquidity.
Always use this tool first to resolve the correct token mint before any other token tool, and ask the user to confirm the token when more than one match is plausible.`

// MaxResults caps how many tokens are returned.
const MaxResults = 5

const solanaChain = "solana"

type Input struct {
	Query string `json:"query" required:"true" description:"Token symbol, name or mint address, e.g. SOL, Bonk or a base58 mint"`
}

type Match struct {
	Mint         string  `json:"mint"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	PriceUSD     string  `json:"priceUsd,omitempty"`
	LiquidityUSD float64 `json:"liquidityUsd"`
	MarketCap    float64 `json:"marketCap,omitempty"`
	URL          string  `json:"url,omitempty"`
}

type Output struct {
	Query  string  `json:"query"`
	Tokens []Match `json:"tokens"`
}

// Tool returns the searchToken tool backed by client.
func Tool(client *dexscreener.Client) (agent.Tool, error) {
	return agent.NewGenericTool(Name, description, func(ctx context.Context, caller *agent.Caller, input Input) (Output, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return Output{}, fmt.Errorf("%w: query is empty", toolsutil.ErrInvalidParams)
		}
		pairs, err := client.Search(ctx, query)
		if err != nil {
			return Output{}, fmt.Errorf("token search failed: %w", err)
		}
		tokens := Matches(pairs, MaxResults)
		if len(tokens) == 0 {
			return Output{}, fmt.Errorf("no Solana token found matching %q", query)
		}
		toolsutil.GetLogger().DebugContext(ctx, "token search", "query", query, "pairs", len(pairs), "tokens", len(tokens))
		return Output{Query: query, Tokens: tokens}, nil
	})
}

// Matches folds Solana pairs into one entry per base token, keeping the
// most liquid pair, ordered by liquidity.
func Matches(pairs []dexscreener.Pair, limit int) []Match {
	pairs = dexscreener.SortByLiquidity(pairs)
	seen := make(map[string]bool)
	var out []Match
	for _, p := range pairs {
		if p.ChainID != solanaChain || p.BaseToken.Address == "" || seen[p.BaseToken.Address] {
			continue
		}
		seen[p.BaseToken.Address] = true
		out = append(out, Match{
			Mint:         p.BaseToken.Address,
			Symbol:       p.BaseToken.Symbol,
			Name:         p.BaseToken.Name,
			PriceUSD:     p.PriceUSD,
			LiquidityUSD: p.LiquidityUSD(),
			MarketCap:    p.MarketCap,
			URL:          p.URL,
		})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
