package balance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
)

// SolanaProvider reads lamport balances with getBalance at finalized
// commitment.
type SolanaProvider struct {
	HTTPClient *http.Client
}

func (p *SolanaProvider) client(cfg chain.Config) *rpc.Client {
	hc := p.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(cfg.Endpoint, &jsonrpc.RPCClientOpts{HTTPClient: hc}))
}

// getBalance result; value is decoded by hand so that an unparsable amount
// is told apart from a transport failure.
type solBalanceResult struct {
	Value *json.Number `json:"value"`
}

func (p *SolanaProvider) NativeBalance(ctx context.Context, cfg chain.Config, address string) (*big.Int, error) {
	if cfg.Family != chain.FamilySolana {
		return nil, fmt.Errorf("solana provider: chain %s is %s", cfg.ID, cfg.Family)
	}
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, apperr.InvalidAddress("%q is not a valid Solana address", address)
	}

	var raw json.RawMessage
	err = p.client(cfg).RPCCallForInto(ctx, &raw, "getBalance", []interface{}{
		pubkey.String(),
		map[string]interface{}{"commitment": string(rpc.CommitmentFinalized)},
	})
	if err != nil {
		log.Debug().Err(err).Str("chain", string(cfg.ID)).Str("addr", abbrev(address)).Msg("getBalance failed")
		return nil, classifySolana(cfg, err)
	}

	var res solBalanceResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperr.ProviderResponse(err, "%s node returned an unparsable balance", cfg.ID)
	}
	if res.Value == nil {
		return nil, apperr.ProviderResponse(nil, "%s node returned no balance value", cfg.ID)
	}
	lamports, ok := new(big.Int).SetString(res.Value.String(), 10)
	if !ok || lamports.Sign() < 0 {
		return nil, apperr.ProviderResponse(nil, "%s node returned a non-integer balance %q", cfg.ID, res.Value.String())
	}
	return lamports, nil
}

// Ping returns the node's solana-core version.
func (p *SolanaProvider) Ping(ctx context.Context, cfg chain.Config) (string, error) {
	v, err := p.client(cfg).GetVersion(ctx)
	if err != nil {
		return "", classifySolana(cfg, err)
	}
	return v.SolanaCore, nil
}

// classifySolana splits solana-go failures. The jsonrpc client flattens a
// 2xx body decode error into a plain string, so an answered request that
// could not be decoded is recognised by its message.
func classifySolana(cfg chain.Config, err error) error {
	var (
		rpcErr  *jsonrpc.RPCError
		httpErr *jsonrpc.HTTPError
		urlErr  *url.Error
		netErr  net.Error
	)
	switch {
	case errors.As(err, &rpcErr), errors.As(err, &httpErr), errors.As(err, &urlErr), errors.As(err, &netErr),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.ProviderUnavailable(err, "%s node request failed", cfg.ID)
	case strings.Contains(err.Error(), "could not decode body"), strings.Contains(err.Error(), "rpc response missing"):
		return apperr.ProviderResponse(err, "%s node returned an unparsable response", cfg.ID)
	}
	return classify(cfg, err)
}
