// Package dexscreener is a small client for the public DexScreener API.
package dexscreener

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/elee1766/dextra/src/copilot/toolsutil"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultBaseURL = "https://api.dexscreener.com"

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 30 * time.Second
)

var ErrNoPairs = errors.New("no pair data found")

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

type Link struct {
	Label string `json:"label,omitempty"`
	Type  string `json:"type,omitempty"`
	URL   string `json:"url"`
}

type PairInfo struct {
	ImageURL string `json:"imageUrl,omitempty"`
	Websites []Link `json:"websites,omitempty"`
	Socials  []Link `json:"socials,omitempty"`
}

type Pair struct {
	ChainID       string     `json:"chainId"`
	DexID         string     `json:"dexId"`
	URL           string     `json:"url"`
	PairAddress   string     `json:"pairAddress"`
	BaseToken     Token      `json:"baseToken"`
	QuoteToken    Token      `json:"quoteToken"`
	PriceNative   string     `json:"priceNative"`
	PriceUSD      string     `json:"priceUsd"`
	Liquidity     *Liquidity `json:"liquidity,omitempty"`
	FDV           float64    `json:"fdv"`
	MarketCap     float64    `json:"marketCap"`
	PairCreatedAt int64      `json:"pairCreatedAt"`
	Info          *PairInfo  `json:"info,omitempty"`
}

// LiquidityUSD returns the pair's USD liquidity, zero when unknown.
func (p Pair) LiquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

type pairsResponse struct {
	SchemaVersion string `json:"schemaVersion"`
	Pairs         []Pair `json:"pairs"`
}

type cacheEntry struct {
	pairs    []Pair
	storedAt time.Time
}

// Client queries DexScreener and keeps recent answers in an LRU cache.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *lru.Cache[string, cacheEntry]
	ttl     time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithCache sets the cache size and entry lifetime. A zero ttl disables
// caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size > 0 {
			c.cache, _ = lru.New[string, cacheEntry](size)
		}
		c.ttl = ttl
	}
}

func New(opts ...Option) *Client {
	c := &Client{baseURL: DefaultBaseURL, http: toolsutil.DefaultHTTPClient, ttl: defaultCacheTTL}
	c.cache, _ = lru.New[string, cacheEntry](defaultCacheSize)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns pairs matching a symbol, name or address.
func (c *Client) Search(ctx context.Context, query string) ([]Pair, error) {
	return c.pairs(ctx, "/latest/dex/search?q="+url.QueryEscape(query))
}

// TokenPairs returns every pair that trades the given token address,
// highest liquidity first.
func (c *Client) TokenPairs(ctx context.Context, address string) ([]Pair, error) {
	pairs, err := c.pairs(ctx, "/latest/dex/tokens/"+url.PathEscape(address))
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, ErrNoPairs
	}
	return SortByLiquidity(pairs), nil
}

func (c *Client) pairs(ctx context.Context, path string) ([]Pair, error) {
	if entry, ok := c.cache.Get(path); ok && c.ttl > 0 {
		if time.Since(entry.storedAt) < c.ttl {
			return slices.Clone(entry.pairs), nil
		}
		c.cache.Remove(path)
	}

	var resp pairsResponse
	if err := toolsutil.GetJSON(ctx, c.http, c.baseURL+path, &resp); err != nil {
		return nil, err
	}
	if c.ttl > 0 {
		c.cache.Add(path, cacheEntry{pairs: resp.Pairs, storedAt: time.Now()})
	}
	return slices.Clone(resp.Pairs), nil
}

// SortByLiquidity orders pairs by USD liquidity, highest first.
func SortByLiquidity(pairs []Pair) []Pair {
	slices.SortStableFunc(pairs, func(a, b Pair) int {
		switch {
		case a.LiquidityUSD() > b.LiquidityUSD():
			return -1
		case a.LiquidityUSD() < b.LiquidityUSD():
			return 1
		}
		return 0
	})
	return pairs
}
