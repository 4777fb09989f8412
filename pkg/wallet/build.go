package wallet

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/balance"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/config"
	"github.com/walletscope/pkg/price"
	"github.com/walletscope/pkg/risk"
)

// NewFromConfig wires the production providers: go-ethereum and solana-go
// balance clients, DexScreener prices and the configured risk oracle.
func NewFromConfig(cfg *config.Config) *Service {
	return NewService(
		chain.NewRegistry(cfg),
		balance.NewRouter(cfg.RPCTimeout),
		price.NewClient(cfg.DexScreenerAPI, cfg.PriceTimeout),
		risk.NewScorer(risk.NewClassifier(cfg)),
	)
}

// ChainStatus is the outcome of probing one configured chain.
type ChainStatus struct {
	Chain     chain.ID `json:"chain" yaml:"chain"`
	Client    string   `json:"client,omitempty" yaml:"client,omitempty"`
	LatencyMS int64    `json:"latency_ms" yaml:"latency_ms"`
	Err       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Probe asks every configured node for its client version. It reports
// problems but never fails; an unreachable node only matters once a caller
// asks for that chain.
func (s *Service) Probe(ctx context.Context) []ChainStatus {
	p, ok := s.balances.(balance.Prober)
	if !ok {
		return nil
	}

	chains := s.registry.Configured()
	out := make([]ChainStatus, len(chains))

	var g errgroup.Group
	for i, c := range chains {
		g.Go(func() error {
			start := time.Now()
			version, err := p.Ping(ctx, c)
			st := ChainStatus{Chain: c.ID, Client: version, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				st.Err = apperr.Public(err).Message
				log.Debug().Err(err).Str("chain", string(c.ID)).Msg("ping failed")
				log.Warn().Str("chain", string(c.ID)).Str("reason", st.Err).Msg("🔴 node unreachable")
			} else {
				log.Info().Str("chain", string(c.ID)).Str("client", version).Int64("latency_ms", st.LatencyMS).Msg("✅ connected")
			}
			out[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return out
}
