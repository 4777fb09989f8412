package balance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
)

// Provider answers native balance queries in the chain's smallest unit
// (wei, lamports). Implementations issue exactly one balance request per call.
type Provider interface {
	NativeBalance(ctx context.Context, cfg chain.Config, address string) (*big.Int, error)
}

// Prober reports a node's client version. Only used for startup diagnostics.
type Prober interface {
	Ping(ctx context.Context, cfg chain.Config) (string, error)
}

// Router selects the per-family provider for a chain.
type Router struct {
	EVM    *EVMProvider
	Solana *SolanaProvider
}

func NewRouter(timeout time.Duration) *Router {
	hc := &http.Client{Timeout: timeout}
	return &Router{
		EVM:    &EVMProvider{HTTPClient: hc},
		Solana: &SolanaProvider{HTTPClient: hc},
	}
}

func (r *Router) NativeBalance(ctx context.Context, cfg chain.Config, address string) (*big.Int, error) {
	switch cfg.Family {
	case chain.FamilyEVM:
		return r.EVM.NativeBalance(ctx, cfg, address)
	case chain.FamilySolana:
		return r.Solana.NativeBalance(ctx, cfg, address)
	default:
		return nil, apperr.UnsupportedChain("chain %q has no balance provider", cfg.ID)
	}
}

func (r *Router) Ping(ctx context.Context, cfg chain.Config) (string, error) {
	switch cfg.Family {
	case chain.FamilyEVM:
		return r.EVM.Ping(ctx, cfg)
	case chain.FamilySolana:
		return r.Solana.Ping(ctx, cfg)
	default:
		return "", apperr.UnsupportedChain("chain %q has no balance provider", cfg.ID)
	}
}

// ── Address validation ──────────────────────────────────────

// ValidateAddress checks address syntax for the family without touching the
// network. EVM addresses are 0x + 40 hex digits; mixed-case input must carry
// a valid EIP-55 checksum. Solana addresses are base58 32-byte public keys.
func ValidateAddress(family chain.Family, address string) error {
	switch family {
	case chain.FamilyEVM:
		if !isEVMAddress(address) {
			return apperr.InvalidAddress("%q is not a valid EVM address", address)
		}
	case chain.FamilySolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return apperr.InvalidAddress("%q is not a valid Solana address", address)
		}
	default:
		return apperr.InvalidAddress("no address format for family %q", family)
	}
	return nil
}

// DetectFamily returns the family whose address format matches address.
func DetectFamily(address string) (chain.Family, bool) {
	for _, f := range []chain.Family{chain.FamilyEVM, chain.FamilySolana} {
		if ValidateAddress(f, address) == nil {
			return f, true
		}
	}
	return "", false
}

func isEVMAddress(a string) bool {
	if !strings.HasPrefix(a, "0x") || !common.IsHexAddress(a) {
		return false
	}
	digits := a[2:]
	if digits == strings.ToLower(digits) || digits == strings.ToUpper(digits) {
		return true
	}
	return common.HexToAddress(a).Hex() == a
}

// ── Error mapping ───────────────────────────────────────────

// classify maps a transport-level failure onto the provider error kinds:
// anything that got a body back but could not be decoded is a response
// error, everything else (dial, timeout, non-2xx, JSON-RPC error object) is
// an availability error.
func classify(cfg chain.Config, err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, rpc.ErrNoResult) {
		return apperr.ProviderResponse(err, "%s node returned an unparsable balance", cfg.ID)
	}
	return apperr.ProviderUnavailable(err, "%s node request failed", cfg.ID)
}

func abbrev(addr string) string {
	if len(addr) > 12 {
		return addr[:6] + "..." + addr[len(addr)-4:]
	}
	return addr
}
