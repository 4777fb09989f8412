// Package price looks up USD prices of native assets.
package price

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/walletscope/pkg/apperr"
)

type Lookup interface {
	USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// reference is the wrapped token whose DEX pairs price a native asset.
type reference struct {
	dexChain string
	token    string
}

var references = map[string]reference{
	"ETH":   {"ethereum", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}, // WETH
	"POL":   {"polygon", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"},  // WPOL
	"MATIC": {"polygon", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270"},
	"SOL":   {"solana", "So11111111111111111111111111111111111111112"}, // wSOL
}

// Client prices a symbol from DexScreener's token pairs, taking the pair with
// the deepest USD liquidity on the reference chain. One request per call.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type tokenPairs struct {
	Pairs []struct {
		ChainID   string `json:"chainId"`
		PriceUSD  string `json:"priceUsd"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
	} `json:"pairs"`
}

func (c *Client) USDPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	ref, ok := references[sym]
	if !ok {
		return decimal.Zero, apperr.PriceUnavailable(nil, "no price reference for %q", symbol)
	}

	body, err := c.getJSON(ctx, fmt.Sprintf("%s/latest/dex/tokens/%s", c.BaseURL, ref.token))
	if err != nil {
		return decimal.Zero, apperr.PriceUnavailable(err, "price oracle request for %s failed", sym)
	}

	var result tokenPairs
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, apperr.PriceUnavailable(err, "price oracle response for %s is malformed", sym)
	}

	best, bestLiq := decimal.Zero, -1.0
	for _, p := range result.Pairs {
		if p.ChainID != "" && p.ChainID != ref.dexChain {
			continue
		}
		px, err := decimal.NewFromString(p.PriceUSD)
		if err != nil || !px.IsPositive() {
			continue
		}
		if p.Liquidity.USD > bestLiq {
			best, bestLiq = px, p.Liquidity.USD
		}
	}
	if !best.IsPositive() {
		return decimal.Zero, apperr.PriceUnavailable(nil, "price oracle has no usable %s pair", sym)
	}
	return best, nil
}

func (c *Client) getJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}
