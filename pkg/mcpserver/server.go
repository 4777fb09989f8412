// Package mcpserver exposes the wallet operations as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/wallet"
)

const (
	ServerName = "walletscope"

	ToolGetWalletBalance     = "get_wallet_balance"
	ToolAnalyzeWalletRisk    = "analyze_wallet_risk"
	ToolGetMultichainBalance = "get_multichain_balance"
)

// Wallet is the slice of wallet.Service the tools need.
type Wallet interface {
	GetWalletBalance(ctx context.Context, address, chain string) (*wallet.BalanceResult, error)
	AnalyzeWalletRisk(ctx context.Context, address, chain string) (*wallet.RiskReport, error)
	GetMultichainBalance(ctx context.Context, address string) (*wallet.Portfolio, error)
}

type Handlers struct {
	svc Wallet
}

func NewHandlers(svc Wallet) *Handlers {
	return &Handlers{svc: svc}
}

// New builds the MCP server with every wallet tool registered.
func New(svc Wallet, version string) *server.MCPServer {
	s := server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	h := NewHandlers(svc)

	s.AddTool(mcp.NewTool(ToolGetWalletBalance,
		mcp.WithDescription("Get the native token balance of a wallet on ethereum, polygon, arbitrum or solana, with its USD value when a price is available."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address (0x-prefixed EVM address or base58 Solana address)")),
		mcp.WithString("chain", mcp.DefaultString(string(chain.Default)), mcp.Description("Chain name: ethereum, polygon, arbitrum or solana")),
	), h.GetWalletBalance)

	s.AddTool(mcp.NewTool(ToolAnalyzeWalletRisk,
		mcp.WithDescription("Heuristic risk assessment of a wallet from its native balance, scored by an external classification model. Advisory only."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address (0x-prefixed EVM address or base58 Solana address)")),
		mcp.WithString("chain", mcp.DefaultString(string(chain.Default)), mcp.Description("Chain name: ethereum, polygon, arbitrum or solana")),
	), h.AnalyzeWalletRisk)

	s.AddTool(mcp.NewTool(ToolGetMultichainBalance,
		mcp.WithDescription("Get a wallet's native balance on every configured chain that uses its address format, with a USD total."),
		mcp.WithString("address", mcp.Required(), mcp.Description("Wallet address (0x-prefixed EVM address or base58 Solana address)")),
	), h.GetMultichainBalance)

	return s
}

func (h *Handlers) GetWalletBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, chainName := args(req)
	res, err := h.svc.GetWalletBalance(ctx, address, chainName)
	if err != nil {
		return toolError(ToolGetWalletBalance, err), nil
	}
	return toolJSON(res.View())
}

func (h *Handlers) AnalyzeWalletRisk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, chainName := args(req)
	rep, err := h.svc.AnalyzeWalletRisk(ctx, address, chainName)
	if err != nil {
		return toolError(ToolAnalyzeWalletRisk, err), nil
	}
	return toolJSON(rep.View())
}

func (h *Handlers) GetMultichainBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	address, _ := args(req)
	p, err := h.svc.GetMultichainBalance(ctx, address)
	if err != nil {
		return toolError(ToolGetMultichainBalance, err), nil
	}
	return toolJSON(p.View())
}

// ── helpers ─────────────────────────────────────────────────

func args(req mcp.CallToolRequest) (address, chainName string) {
	return req.GetString("address", ""), req.GetString("chain", string(chain.Default))
}

type errorBody struct {
	Error *apperr.Error `json:"error"`
}

// toolError reports err as a tool-level failure. Only the kind and message
// reach the caller.
func toolError(tool string, err error) *mcp.CallToolResult {
	pub := apperr.Public(err)
	ev := log.Warn()
	if pub.Kind == apperr.KindInternal {
		ev = log.Error()
	}
	ev.Err(err).Str("tool", tool).Str("kind", string(pub.Kind)).Msg("tool call failed")

	body, _ := json.Marshal(errorBody{Error: pub})
	return mcp.NewToolResultError(string(body))
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(body)), nil
}
