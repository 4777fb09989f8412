package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/config"
	"github.com/walletscope/pkg/risk"
)

const (
	evmAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	solAddr = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

// ── fakes ───────────────────────────────────────────────────

type fakeBalances struct {
	mu     sync.Mutex
	raw    map[chain.ID]*big.Int
	errs   map[chain.ID]error
	calls  int
	chains []chain.ID
}

func (f *fakeBalances) NativeBalance(_ context.Context, cfg chain.Config, _ string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.chains = append(f.chains, cfg.ID)
	if err := f.errs[cfg.ID]; err != nil {
		return nil, err
	}
	if v, ok := f.raw[cfg.ID]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

type fakePrices struct {
	mu    sync.Mutex
	usd   map[string]string
	calls int
}

func (f *fakePrices) USDPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if v, ok := f.usd[symbol]; ok {
		return decimal.RequireFromString(v), nil
	}
	return decimal.Zero, apperr.PriceUnavailable(errors.New("429 too many requests"), "no price for %s", symbol)
}

type fakeClassifier struct {
	preds   []risk.Prediction
	err     error
	calls   int
	onCalls func()
}

func (f *fakeClassifier) Classify(context.Context, string) ([]risk.Prediction, json.RawMessage, error) {
	f.calls++
	if f.onCalls != nil {
		f.onCalls()
	}
	return f.preds, json.RawMessage(`{}`), f.err
}

func allChains() *chain.Registry {
	return chain.NewRegistry(&config.Config{
		EthereumRPC: "http://eth.invalid",
		PolygonRPC:  "http://pol.invalid",
		ArbitrumRPC: "http://arb.invalid",
		SolanaRPC:   "http://sol.invalid",
	})
}

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

// ── GetWalletBalance ────────────────────────────────────────

func TestGetWalletBalance_ExactAmountPerChain(t *testing.T) {
	tests := []struct {
		chain  string
		raw    *big.Int
		want   string
		symbol string
	}{
		{"ethereum", wei("1234567890123456789012"), "1234.567890123456789012", "ETH"},
		{"polygon", wei("1"), "0.000000000000000001", "POL"},
		{"arbitrum", wei("0"), "0", "ETH"},
		{"solana", wei("1500000001"), "1.500000001", "SOL"},
	}
	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			id := chain.ID(tt.chain)
			bal := &fakeBalances{raw: map[chain.ID]*big.Int{id: tt.raw}}
			addr := evmAddr
			if id == chain.Solana {
				addr = solAddr
			}

			res, err := NewService(allChains(), bal, &fakePrices{}, nil).GetWalletBalance(context.Background(), addr, tt.chain)
			require.NoError(t, err)
			assert.Equal(t, id, res.Chain)
			assert.Equal(t, tt.symbol, res.NativeSymbol)
			assert.Equal(t, tt.want, res.NativeAmount.String())
			assert.Equal(t, 0, tt.raw.Cmp(res.RawAmount))
		})
	}
}

func TestGetWalletBalance_AppliesPrice(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Ethereum: wei("2500000000000000000")}}
	px := &fakePrices{usd: map[string]string{"ETH": "3000.10"}}

	res, err := NewService(allChains(), bal, px, nil).GetWalletBalance(context.Background(), evmAddr, "eth")
	require.NoError(t, err)
	require.NotNil(t, res.USDValue)
	assert.Equal(t, "7500.25", res.USDValue.String())
	assert.Equal(t, 1, px.calls)
}

func TestGetWalletBalance_PriceFailureIsNotFatal(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Polygon: wei("5000000000000000000")}}
	px := &fakePrices{}

	res, err := NewService(allChains(), bal, px, nil).GetWalletBalance(context.Background(), evmAddr, "polygon")
	require.NoError(t, err)
	assert.Nil(t, res.USDValue)
	assert.Equal(t, "5", res.NativeAmount.String())
	assert.Equal(t, 1, px.calls)
}

func TestGetWalletBalance_DefaultsToEthereum(t *testing.T) {
	bal := &fakeBalances{}
	res, err := NewService(allChains(), bal, nil, nil).GetWalletBalance(context.Background(), evmAddr, "")
	require.NoError(t, err)
	assert.Equal(t, chain.Ethereum, res.Chain)
	assert.Equal(t, []chain.ID{chain.Ethereum}, bal.chains)
}

func TestGetWalletBalance_RejectsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name    string
		address string
		chain   string
		want    error
	}{
		{"solana address on ethereum", solAddr, "ethereum", apperr.ErrInvalidAddress},
		{"evm address on solana", evmAddr, "solana", apperr.ErrInvalidAddress},
		{"bad checksum", "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", "ethereum", apperr.ErrInvalidAddress},
		{"empty address", "", "arbitrum", apperr.ErrInvalidAddress},
		{"unknown chain", evmAddr, "dogecoin", apperr.ErrUnsupportedChain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal := &fakeBalances{}
			px := &fakePrices{}
			_, err := NewService(allChains(), bal, px, nil).GetWalletBalance(context.Background(), tt.address, tt.chain)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, bal.calls)
			assert.Zero(t, px.calls)
		})
	}
}

func TestGetWalletBalance_UnconfiguredChain(t *testing.T) {
	reg := chain.NewRegistry(&config.Config{EthereumRPC: "http://eth.invalid"})
	bal := &fakeBalances{}

	_, err := NewService(reg, bal, nil, nil).GetWalletBalance(context.Background(), evmAddr, "arbitrum")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedChain)
	assert.Contains(t, err.Error(), "ARB_RPC")
	assert.Zero(t, bal.calls)
}

func TestGetWalletBalance_ProviderErrorsAreFatal(t *testing.T) {
	for _, want := range []error{
		apperr.ProviderUnavailable(errors.New("dial tcp: i/o timeout"), "ethereum node request failed"),
		apperr.ProviderResponse(errors.New("invalid character"), "ethereum node returned an unparsable balance"),
	} {
		bal := &fakeBalances{errs: map[chain.ID]error{chain.Ethereum: want}}
		px := &fakePrices{usd: map[string]string{"ETH": "1"}}

		res, err := NewService(allChains(), bal, px, nil).GetWalletBalance(context.Background(), evmAddr, "ethereum")
		assert.Nil(t, res)
		assert.Equal(t, apperr.KindOf(want), apperr.KindOf(err))
		assert.Equal(t, 1, bal.calls)
		assert.Zero(t, px.calls)
	}
}

// ── AnalyzeWalletRisk ───────────────────────────────────────

func TestAnalyzeWalletRisk(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Solana: wei("2500000000000")}}
	px := &fakePrices{usd: map[string]string{"SOL": "150"}}
	cl := &fakeClassifier{preds: []risk.Prediction{{Label: "negative", Score: 0.82}, {Label: "neutral", Score: 0.1}}}

	rep, err := NewService(allChains(), bal, px, risk.NewScorer(cl)).AnalyzeWalletRisk(context.Background(), solAddr, "sol")
	require.NoError(t, err)
	assert.Equal(t, chain.Solana, rep.Chain)
	assert.Equal(t, "2500", rep.NativeAmount.String())
	require.NotNil(t, rep.USDValue)
	assert.Equal(t, "375000", rep.USDValue.String())
	assert.Equal(t, risk.LabelHigh, rep.Risk.Label)
	assert.InDelta(t, 0.82, rep.Risk.Confidence, 1e-9)
	assert.Equal(t, 1, bal.calls)
	assert.Equal(t, 1, px.calls)
	assert.Equal(t, 1, cl.calls)
}

func TestAnalyzeWalletRisk_PricesBeforeScoring(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Ethereum: wei("2000000000000000000")}}
	px := &fakePrices{usd: map[string]string{"ETH": "3000"}}
	pricedFirst := false
	cl := &fakeClassifier{preds: []risk.Prediction{{Label: "neutral", Score: 0.6}}}
	cl.onCalls = func() {
		px.mu.Lock()
		defer px.mu.Unlock()
		pricedFirst = px.calls == 1
	}

	rep, err := NewService(allChains(), bal, px, risk.NewScorer(cl)).AnalyzeWalletRisk(context.Background(), evmAddr, "ethereum")
	require.NoError(t, err)
	assert.True(t, pricedFirst)
	require.NotNil(t, rep.USDValue)
	assert.Equal(t, "6000", rep.USDValue.String())
	assert.Equal(t, risk.LabelMedium, rep.Risk.Label)
}

func TestAnalyzeWalletRisk_OracleDown(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Ethereum: wei("100000000000000000")}}
	cl := &fakeClassifier{err: errors.New("connection refused")}

	rep, err := NewService(allChains(), bal, &fakePrices{}, risk.NewScorer(cl)).AnalyzeWalletRisk(context.Background(), evmAddr, "")
	require.NoError(t, err)
	assert.Equal(t, risk.LabelUnknown, rep.Risk.Label)
	assert.Zero(t, rep.Risk.Confidence)
	assert.Nil(t, rep.Risk.RawModelOutput)
	assert.Nil(t, rep.USDValue)
	assert.Equal(t, "0.1", rep.NativeAmount.String())
}

func TestAnalyzeWalletRisk_LabelAlwaysInTaxonomy(t *testing.T) {
	valid := map[risk.Label]bool{risk.LabelLow: true, risk.LabelMedium: true, risk.LabelHigh: true, risk.LabelUnknown: true}
	scorers := []*risk.Scorer{
		nil,
		risk.NewScorer(nil),
		risk.NewScorer(&fakeClassifier{}),
		risk.NewScorer(&fakeClassifier{preds: []risk.Prediction{{Label: "moon", Score: 1}}}),
		risk.NewScorer(&fakeClassifier{preds: []risk.Prediction{{Label: "positive", Score: 0.4}}}),
	}
	for _, sc := range scorers {
		rep, err := NewService(allChains(), &fakeBalances{}, nil, sc).AnalyzeWalletRisk(context.Background(), evmAddr, "ethereum")
		require.NoError(t, err)
		assert.True(t, valid[rep.Risk.Label], rep.Risk.Label)
	}
}

func TestAnalyzeWalletRisk_FailsFastLikeBalance(t *testing.T) {
	bal := &fakeBalances{}
	cl := &fakeClassifier{}

	_, err := NewService(allChains(), bal, nil, risk.NewScorer(cl)).AnalyzeWalletRisk(context.Background(), evmAddr, "dogecoin")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedChain)
	assert.Zero(t, bal.calls)
	assert.Zero(t, cl.calls)
}

// ── GetMultichainBalance ────────────────────────────────────

func TestGetMultichainBalance_EVM(t *testing.T) {
	bal := &fakeBalances{
		raw: map[chain.ID]*big.Int{
			chain.Ethereum: wei("1000000000000000000"),
			chain.Polygon:  wei("20000000000000000000"),
		},
		errs: map[chain.ID]error{
			chain.Arbitrum: apperr.ProviderUnavailable(errors.New("503"), "arbitrum node request failed"),
		},
	}
	px := &fakePrices{usd: map[string]string{"ETH": "2000", "POL": "0.5"}}

	p, err := NewService(allChains(), bal, px, nil).GetMultichainBalance(context.Background(), evmAddr)
	require.NoError(t, err)
	assert.Equal(t, chain.FamilyEVM, p.Family)
	require.Len(t, p.Balances, 3)

	assert.Equal(t, chain.Ethereum, p.Balances[0].Chain)
	require.NotNil(t, p.Balances[0].Balance)
	assert.Equal(t, "1", p.Balances[0].Balance.NativeAmount.String())

	assert.Equal(t, chain.Polygon, p.Balances[1].Chain)
	require.NotNil(t, p.Balances[1].Balance)
	assert.Equal(t, "10", p.Balances[1].Balance.USDValue.String())

	assert.Equal(t, chain.Arbitrum, p.Balances[2].Chain)
	assert.Nil(t, p.Balances[2].Balance)
	require.NotNil(t, p.Balances[2].Error)
	assert.Equal(t, apperr.KindProviderUnavailable, p.Balances[2].Error.Kind)
	assert.Nil(t, p.Balances[2].Error.Err)

	assert.Equal(t, "2010", p.TotalUSD.String())
	assert.ElementsMatch(t, []chain.ID{chain.Ethereum, chain.Polygon, chain.Arbitrum}, bal.chains)
}

func TestGetMultichainBalance_SolanaOnly(t *testing.T) {
	bal := &fakeBalances{raw: map[chain.ID]*big.Int{chain.Solana: wei("42")}}

	p, err := NewService(allChains(), bal, nil, nil).GetMultichainBalance(context.Background(), solAddr)
	require.NoError(t, err)
	require.Len(t, p.Balances, 1)
	assert.Equal(t, "0.000000042", p.Balances[0].Balance.NativeAmount.String())
	assert.True(t, p.TotalUSD.IsZero())
}

func TestGetMultichainBalance_Errors(t *testing.T) {
	bal := &fakeBalances{}
	_, err := NewService(allChains(), bal, nil, nil).GetMultichainBalance(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, apperr.ErrInvalidAddress)

	evmOnly := chain.NewRegistry(&config.Config{EthereumRPC: "http://eth.invalid"})
	_, err = NewService(evmOnly, bal, nil, nil).GetMultichainBalance(context.Background(), solAddr)
	assert.ErrorIs(t, err, apperr.ErrUnsupportedChain)
	assert.Zero(t, bal.calls)
}

// ── views ───────────────────────────────────────────────────

func TestViews_JSONShape(t *testing.T) {
	usd := decimal.RequireFromString("3750.5")
	rep := &RiskReport{
		BalanceResult: BalanceResult{
			Chain:        chain.Ethereum,
			Address:      evmAddr,
			RawAmount:    wei("1500000000000000000"),
			NativeAmount: NativeAmount(wei("1500000000000000000"), 18),
			USDValue:     &usd,
			NativeSymbol: "ETH",
		},
		Features: risk.Features{Bucket: risk.BucketMedium},
		Risk:     risk.Assessment{Label: risk.LabelLow, Confidence: 0.9},
	}

	out, err := json.Marshal(rep.View())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"chain":"ethereum","address":"`+evmAddr+`","native_symbol":"ETH",
		"native_amount":"1.5","raw_amount":"1500000000000000000","usd_value":"3750.5",
		"balance_bucket":"medium","risk_label":"low","risk_confidence":0.9
	}`, string(out))

	rep.USDValue = nil
	out, err = json.Marshal(rep.BalanceResult.View())
	require.NoError(t, err)
	assert.Contains(t, string(out), `"usd_value":null`)
}

func TestPortfolioView_CarriesEntryErrors(t *testing.T) {
	p := &Portfolio{
		Address:  evmAddr,
		Family:   chain.FamilyEVM,
		Balances: []Entry{{Chain: chain.Arbitrum, Error: apperr.Public(apperr.ProviderUnavailable(errors.New("secret-host:8545 refused"), "arbitrum node request failed"))}},
		TotalUSD: decimal.Zero,
	}
	out, err := json.Marshal(p.View())
	require.NoError(t, err)
	assert.JSONEq(t, `{"address":"`+evmAddr+`","family":"evm","total_usd":"0",
		"balances":[{"chain":"arbitrum","error":{"kind":"provider_unavailable","message":"arbitrum node request failed"}}]}`, string(out))
	assert.NotContains(t, string(out), "secret-host")
}

// ── probe ───────────────────────────────────────────────────

type probingBalances struct {
	fakeBalances
	down map[chain.ID]bool
}

func (p *probingBalances) Ping(_ context.Context, cfg chain.Config) (string, error) {
	if p.down[cfg.ID] {
		return "", apperr.ProviderUnavailable(errors.New("dial tcp https://key@node"), "%s node request failed", cfg.ID)
	}
	return "fake/" + string(cfg.ID), nil
}

func TestProbe(t *testing.T) {
	reg := chain.NewRegistry(&config.Config{EthereumRPC: "http://eth.invalid", SolanaRPC: "http://sol.invalid"})
	bal := &probingBalances{down: map[chain.ID]bool{chain.Solana: true}}

	got := NewService(reg, bal, nil, nil).Probe(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, chain.Ethereum, got[0].Chain)
	assert.Equal(t, "fake/ethereum", got[0].Client)
	assert.Empty(t, got[0].Err)
	assert.Equal(t, chain.Solana, got[1].Chain)
	assert.Equal(t, "solana node request failed", got[1].Err)
	assert.Zero(t, bal.calls)
}

func TestProbe_NoProber(t *testing.T) {
	assert.Nil(t, NewService(allChains(), &fakeBalances{}, nil, nil).Probe(context.Background()))
}
