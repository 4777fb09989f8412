// Package report renders a one-page wallet risk report as PDF.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/walletscope/pkg/risk"
	"github.com/walletscope/pkg/wallet"
)

const fontFamily = "Helvetica"

// Write renders rep, and p when it is non-nil, to w.
func Write(w io.Writer, rep *wallet.RiskReport, p *wallet.Portfolio, generatedAt time.Time) error {
	if rep == nil {
		return fmt.Errorf("report: nil risk report")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("walletscope - Wallet Risk Report", false)
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 9, "walletscope - Wallet Risk Report", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+generatedAt.UTC().Format("2006-01-02 15:04:05 MST"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	v := rep.View()
	sectionTitle(pdf, "1. Wallet")
	kv(pdf, "Address", v.Address)
	kv(pdf, "Chain", v.Chain)
	kv(pdf, "Balance", v.NativeAmount+" "+v.NativeSymbol)
	kv(pdf, "Raw amount", v.RawAmount)
	kv(pdf, "USD value", deref(v.USDValue, "unavailable"))
	pdf.Ln(2)

	sectionTitle(pdf, "2. Risk Assessment")
	kv(pdf, "Balance tier", v.BalanceBucket)
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, "Risk label:", "", 0, "L", false, 0, "")
	r, g, b := labelColor(rep.Risk.Label)
	pdf.SetTextColor(r, g, b)
	pdf.CellFormat(0, 5.2, strings.ToUpper(v.RiskLabel), "", 1, "L", false, 0, "")
	kv(pdf, "Confidence", fmt.Sprintf("%.2f", v.RiskConfidence))
	kv(pdf, "Model input", rep.Features.DerivedText)
	pdf.Ln(2)

	if p != nil {
		pv := p.View()
		sectionTitle(pdf, "3. Portfolio ("+pv.Family+" chains)")
		for _, e := range pv.Balances {
			if e.Balance != nil {
				kv(pdf, e.Chain, fmt.Sprintf("%s %s  (USD %s)", e.Balance.NativeAmount, e.Balance.NativeSymbol, deref(e.Balance.USDValue, "n/a")))
				continue
			}
			kv(pdf, e.Chain, fmt.Sprintf("error: %s (%s)", e.Error.Message, e.Error.Kind))
		}
		kv(pdf, "Total USD", pv.TotalUSD)
		pdf.Ln(2)
	}

	pdf.SetFont(fontFamily, "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.MultiCell(0, 4, "Risk labels are heuristic and derived only from the native balance tier. They are advisory and must not be used as the sole basis for compliance decisions.", "", "L", false)

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return pdf.Output(w)
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, title, "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, key, value string) {
	if strings.TrimSpace(value) == "" {
		value = "-"
	}
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(36, 5.2, key+":", "", 0, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, asciiOnly(value), "", "L", false)
}

func labelColor(l risk.Label) (int, int, int) {
	switch l {
	case risk.LabelLow:
		return 20, 140, 60
	case risk.LabelMedium:
		return 200, 140, 0
	case risk.LabelHigh:
		return 190, 30, 30
	default:
		return 120, 120, 120
	}
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// Core PDF fonts only cover Latin-1; anything else becomes '?'.
func asciiOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		if r > 126 {
			return '?'
		}
		return r
	}, s)
}
