package wallet

import (
	"github.com/walletscope/pkg/apperr"
)

// Wire shapes shared by the MCP tools, the HTTP API and the CLI. Amounts are
// exact decimal strings.

type BalanceView struct {
	Chain        string  `json:"chain" yaml:"chain"`
	Address      string  `json:"address" yaml:"address"`
	NativeSymbol string  `json:"native_symbol" yaml:"native_symbol"`
	NativeAmount string  `json:"native_amount" yaml:"native_amount"`
	RawAmount    string  `json:"raw_amount" yaml:"raw_amount"`
	USDValue     *string `json:"usd_value" yaml:"usd_value"`
}

type RiskView struct {
	BalanceView    `yaml:",inline"`
	BalanceBucket  string  `json:"balance_bucket" yaml:"balance_bucket"`
	RiskLabel      string  `json:"risk_label" yaml:"risk_label"`
	RiskConfidence float64 `json:"risk_confidence" yaml:"risk_confidence"`
}

type EntryView struct {
	Chain   string        `json:"chain" yaml:"chain"`
	Balance *BalanceView  `json:"balance,omitempty" yaml:"balance,omitempty"`
	Error   *apperr.Error `json:"error,omitempty" yaml:"error,omitempty"`
}

type PortfolioView struct {
	Address  string      `json:"address" yaml:"address"`
	Family   string      `json:"family" yaml:"family"`
	Balances []EntryView `json:"balances" yaml:"balances"`
	TotalUSD string      `json:"total_usd" yaml:"total_usd"`
}

func (r *BalanceResult) View() BalanceView {
	v := BalanceView{
		Chain:        string(r.Chain),
		Address:      r.Address,
		NativeSymbol: r.NativeSymbol,
		NativeAmount: r.NativeAmount.String(),
	}
	if r.RawAmount != nil {
		v.RawAmount = r.RawAmount.String()
	}
	if r.USDValue != nil {
		s := r.USDValue.String()
		v.USDValue = &s
	}
	return v
}

func (r *RiskReport) View() RiskView {
	return RiskView{
		BalanceView:    r.BalanceResult.View(),
		BalanceBucket:  string(r.Features.Bucket),
		RiskLabel:      string(r.Risk.Label),
		RiskConfidence: r.Risk.Confidence,
	}
}

func (p *Portfolio) View() PortfolioView {
	v := PortfolioView{
		Address:  p.Address,
		Family:   string(p.Family),
		Balances: make([]EntryView, 0, len(p.Balances)),
		TotalUSD: p.TotalUSD.String(),
	}
	for _, e := range p.Balances {
		ev := EntryView{Chain: string(e.Chain), Error: e.Error}
		if e.Balance != nil {
			bv := e.Balance.View()
			ev.Balance = &bv
		}
		v.Balances = append(v.Balances, ev)
	}
	return v
}
