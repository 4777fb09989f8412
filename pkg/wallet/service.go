// Package wallet composes chain resolution, balance lookup, pricing and risk
// scoring into the public wallet operations.
package wallet

import (
	"context"
	"math/big"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/balance"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/price"
	"github.com/walletscope/pkg/risk"
)

// BalanceResult is one resolved native balance. USDValue is nil when the
// price oracle could not answer.
type BalanceResult struct {
	Chain        chain.ID
	Address      string
	RawAmount    *big.Int
	NativeAmount decimal.Decimal
	USDValue     *decimal.Decimal
	NativeSymbol string
}

// RiskReport pairs a balance with its advisory risk assessment.
type RiskReport struct {
	BalanceResult
	Features risk.Features
	Risk     risk.Assessment
}

// Entry is one chain's line in a Portfolio. Exactly one of Balance and Error
// is set.
type Entry struct {
	Chain   chain.ID
	Balance *BalanceResult
	Error   *apperr.Error
}

type Portfolio struct {
	Address  string
	Family   chain.Family
	Balances []Entry
	TotalUSD decimal.Decimal
}

type Service struct {
	registry *chain.Registry
	balances balance.Provider
	prices   price.Lookup
	scorer   *risk.Scorer
}

func NewService(reg *chain.Registry, bal balance.Provider, px price.Lookup, scorer *risk.Scorer) *Service {
	if scorer == nil {
		scorer = risk.NewScorer(nil)
	}
	return &Service{registry: reg, balances: bal, prices: px, scorer: scorer}
}

// NativeAmount converts a smallest-unit integer into native units. The result
// is exact.
func NativeAmount(raw *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -decimals)
}

// GetWalletBalance resolves the chain, validates the address and fetches the
// native balance. A price failure leaves USDValue nil and is not an error.
func (s *Service) GetWalletBalance(ctx context.Context, address, chainName string) (*BalanceResult, error) {
	res, err := s.fetch(ctx, address, chainName)
	if err != nil {
		return nil, err
	}
	res.USDValue = s.usdValue(ctx, res)
	return res, nil
}

// AnalyzeWalletRisk runs the balance path, prices it and then scores the
// wallet. Scoring never fails the call.
func (s *Service) AnalyzeWalletRisk(ctx context.Context, address, chainName string) (*RiskReport, error) {
	res, err := s.fetch(ctx, address, chainName)
	if err != nil {
		return nil, err
	}

	features := risk.Extract(res.Chain, res.NativeSymbol, res.NativeAmount)
	report := &RiskReport{BalanceResult: *res, Features: features}

	report.USDValue = s.usdValue(ctx, res)
	report.Risk = s.scorer.Score(ctx, features)

	log.Info().
		Str("chain", string(res.Chain)).
		Str("addr", short(res.Address)).
		Str("bucket", string(features.Bucket)).
		Str("label", string(report.Risk.Label)).
		Float64("confidence", report.Risk.Confidence).
		Msg("🔍 wallet risk analyzed")
	return report, nil
}

// GetMultichainBalance queries every configured chain that shares the
// address's format. Per-chain failures land in the entry, not the error.
func (s *Service) GetMultichainBalance(ctx context.Context, address string) (*Portfolio, error) {
	family, ok := balance.DetectFamily(address)
	if !ok {
		return nil, apperr.InvalidAddress("%q is not a valid EVM or Solana address", address)
	}

	var targets []chain.Config
	for _, c := range s.registry.Configured() {
		if c.Family == family {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil, apperr.UnsupportedChain("no %s chain is configured", family)
	}

	p := &Portfolio{Address: address, Family: family, Balances: make([]Entry, len(targets))}

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range targets {
		g.Go(func() error {
			e := Entry{Chain: c.ID}
			res, err := s.fetch(gctx, address, string(c.ID))
			if err != nil {
				e.Error = apperr.Public(err)
			} else {
				res.USDValue = s.usdValue(gctx, res)
				e.Balance = res
			}
			p.Balances[i] = e
			return nil
		})
	}
	_ = g.Wait()

	for _, e := range p.Balances {
		if e.Balance != nil && e.Balance.USDValue != nil {
			p.TotalUSD = p.TotalUSD.Add(*e.Balance.USDValue)
		}
	}
	return p, nil
}

// fetch is the fail-fast part of every operation: resolve, validate, query.
func (s *Service) fetch(ctx context.Context, address, chainName string) (*BalanceResult, error) {
	cfg, err := s.registry.Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if err := balance.ValidateAddress(cfg.Family, address); err != nil {
		return nil, err
	}

	raw, err := s.balances.NativeBalance(ctx, cfg, address)
	if err != nil {
		log.Warn().Err(err).Str("chain", string(cfg.ID)).Str("addr", short(address)).Msg("balance lookup failed")
		return nil, err
	}

	return &BalanceResult{
		Chain:        cfg.ID,
		Address:      address,
		RawAmount:    raw,
		NativeAmount: NativeAmount(raw, cfg.Decimals),
		NativeSymbol: cfg.NativeSymbol,
	}, nil
}

func (s *Service) usdValue(ctx context.Context, res *BalanceResult) *decimal.Decimal {
	if s.prices == nil {
		return nil
	}
	px, err := s.prices.USDPrice(ctx, res.NativeSymbol)
	if err != nil {
		log.Warn().Err(err).Str("symbol", res.NativeSymbol).Msg("⚠️ price unavailable, usd value omitted")
		return nil
	}
	v := res.NativeAmount.Mul(px)
	return &v
}

func short(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
