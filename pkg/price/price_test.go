package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletscope/pkg/apperr"
)

func newOracle(t *testing.T, status int, body string) (*Client, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var hits atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second), &hits, &path
}

func TestUSDPrice_PicksDeepestPairOnReferenceChain(t *testing.T) {
	c, hits, path := newOracle(t, http.StatusOK, `{"pairs":[
		{"chainId":"ethereum","priceUsd":"2501.10","liquidity":{"usd":1000}},
		{"chainId":"ethereum","priceUsd":"2500.55","liquidity":{"usd":90000000}},
		{"chainId":"base","priceUsd":"9999","liquidity":{"usd":999999999}},
		{"chainId":"ethereum","priceUsd":"not-a-number","liquidity":{"usd":999999999}}
	]}`)

	px, err := c.USDPrice(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "2500.55", px.String())
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, "/latest/dex/tokens/0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", path.Load())
}

func TestUSDPrice_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		symbol string
	}{
		{"non-200", http.StatusTooManyRequests, `{}`, "SOL"},
		{"malformed", http.StatusOK, `<html>`, "SOL"},
		{"no pairs", http.StatusOK, `{"pairs":[]}`, "POL"},
		{"zero price", http.StatusOK, `{"pairs":[{"chainId":"polygon","priceUsd":"0","liquidity":{"usd":5}}]}`, "POL"},
		{"unknown symbol", http.StatusOK, `{"pairs":[]}`, "DOGE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newOracle(t, tt.status, tt.body)
			_, err := c.USDPrice(context.Background(), tt.symbol)
			assert.ErrorIs(t, err, apperr.ErrPriceUnavailable)
		})
	}
}

func TestUSDPrice_UnknownSymbolSkipsNetwork(t *testing.T) {
	c, hits, _ := newOracle(t, http.StatusOK, `{}`)
	_, err := c.USDPrice(context.Background(), "BTC")
	assert.Error(t, err)
	assert.EqualValues(t, 0, hits.Load())
}
