package balance

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
)

// EVMProvider reads native balances over JSON-RPC (eth_getBalance at the
// latest block). It holds no per-chain state; the endpoint comes from the
// chain config on every call.
type EVMProvider struct {
	HTTPClient *http.Client
}

func (p *EVMProvider) dial(ctx context.Context, cfg chain.Config) (*ethclient.Client, error) {
	hc := p.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	rc, err := rpc.DialOptions(ctx, cfg.Endpoint, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, apperr.ProviderUnavailable(err, "%s node endpoint is not usable", cfg.ID)
	}
	return ethclient.NewClient(rc), nil
}

func (p *EVMProvider) NativeBalance(ctx context.Context, cfg chain.Config, address string) (*big.Int, error) {
	if cfg.Family != chain.FamilyEVM {
		return nil, fmt.Errorf("evm provider: chain %s is %s", cfg.ID, cfg.Family)
	}
	if err := ValidateAddress(chain.FamilyEVM, address); err != nil {
		return nil, err
	}

	client, err := p.dial(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		log.Debug().Err(err).Str("chain", string(cfg.ID)).Str("addr", abbrev(address)).Msg("eth_getBalance failed")
		return nil, classify(cfg, err)
	}
	return wei, nil
}

// Ping returns the node's web3_clientVersion.
func (p *EVMProvider) Ping(ctx context.Context, cfg chain.Config) (string, error) {
	client, err := p.dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer client.Close()

	var version string
	if err := client.Client().CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return "", classify(cfg, err)
	}
	return version, nil
}
