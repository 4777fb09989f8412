package chain

import (
	"strings"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/config"
)

type ID string

const (
	Ethereum ID = "ethereum"
	Polygon  ID = "polygon"
	Arbitrum ID = "arbitrum"
	Solana   ID = "solana"
)

// Default is used when a caller does not name a chain.
const Default = Ethereum

// Family groups chains that share an address format and RPC call shape.
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// Config is the immutable connection profile of one chain.
type Config struct {
	ID           ID
	Family       Family
	Endpoint     string
	NativeSymbol string
	Decimals     int32
}

type profile struct {
	family   Family
	symbol   string
	decimals int32
	envKey   string
}

var profiles = map[ID]profile{
	Ethereum: {FamilyEVM, "ETH", 18, "ETH_RPC"},
	Polygon:  {FamilyEVM, "POL", 18, "POL_RPC"},
	Arbitrum: {FamilyEVM, "ETH", 18, "ARB_RPC"},
	Solana:   {FamilySolana, "SOL", 9, "SOL_RPC"},
}

var aliases = map[string]ID{
	"eth":   Ethereum,
	"matic": Polygon,
	"pol":   Polygon,
	"arb":   Arbitrum,
	"sol":   Solana,
}

// Supported returns every chain the registry knows, in a fixed order.
func Supported() []ID {
	return []ID{Ethereum, Polygon, Arbitrum, Solana}
}

// Registry resolves chain names to connection profiles. It is read-only
// after NewRegistry and safe for concurrent use.
type Registry struct {
	chains map[ID]Config
}

func NewRegistry(cfg *config.Config) *Registry {
	endpoints := map[ID]string{
		Ethereum: cfg.EthereumRPC,
		Polygon:  cfg.PolygonRPC,
		Arbitrum: cfg.ArbitrumRPC,
		Solana:   cfg.SolanaRPC,
	}
	r := &Registry{chains: make(map[ID]Config, len(profiles))}
	for id, s := range profiles {
		r.chains[id] = Config{
			ID:           id,
			Family:       s.family,
			Endpoint:     strings.TrimSpace(endpoints[id]),
			NativeSymbol: s.symbol,
			Decimals:     s.decimals,
		}
	}
	return r
}

// Normalize maps a caller-supplied chain name onto an ID. The empty name is
// the default chain. ok is false for names outside the supported set.
func Normalize(name string) (ID, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return Default, true
	}
	if id, ok := aliases[n]; ok {
		return id, true
	}
	if _, ok := profiles[ID(n)]; ok {
		return ID(n), true
	}
	return "", false
}

// Resolve returns the profile for name, failing with an unsupported_chain
// error when the chain is unknown or has no endpoint configured.
func (r *Registry) Resolve(name string) (Config, error) {
	id, ok := Normalize(name)
	if !ok {
		return Config{}, apperr.UnsupportedChain("chain %q is not supported (supported: ethereum, polygon, arbitrum, solana)", name)
	}
	c := r.chains[id]
	if c.Endpoint == "" {
		return Config{}, apperr.UnsupportedChain("chain %q is not configured (set %s)", id, profiles[id].envKey)
	}
	return c, nil
}

// Configured returns the chains that have an endpoint, in Supported order.
func (r *Registry) Configured() []Config {
	var out []Config
	for _, id := range Supported() {
		if c := r.chains[id]; c.Endpoint != "" {
			out = append(out, c)
		}
	}
	return out
}
