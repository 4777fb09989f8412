// Package cli implements walletcheck, the operator command line for the
// wallet tools.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/config"
	"github.com/walletscope/pkg/report"
	"github.com/walletscope/pkg/risk"
	"github.com/walletscope/pkg/wallet"
)

// Service is what the commands need from wallet.Service.
type Service interface {
	GetWalletBalance(ctx context.Context, address, chain string) (*wallet.BalanceResult, error)
	AnalyzeWalletRisk(ctx context.Context, address, chain string) (*wallet.RiskReport, error)
	GetMultichainBalance(ctx context.Context, address string) (*wallet.Portfolio, error)
	Probe(ctx context.Context) []wallet.ChainStatus
}

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	// newService is called once per invocation, after flags are parsed.
	newService func() (Service, error)
}

func NewRunner() *Runner {
	return NewRunnerWithService(os.Stdout, os.Stderr, func() (Service, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		return wallet.NewFromConfig(cfg), nil
	})
}

func NewRunnerWithService(stdout, stderr io.Writer, newService func() (Service, error)) *Runner {
	return &Runner{stdout: stdout, stderr: stderr, now: time.Now, newService: newService}
}

type flags struct {
	output  string
	json    bool
	verbose bool
	timeout time.Duration
}

type state struct {
	runner *Runner
	flags  flags
	svc    Service
}

// Run executes args and returns the process exit code.
func (r *Runner) Run(args []string) int {
	s := &state{runner: r}
	root := s.newRootCommand()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		pub := apperr.Public(err)
		if pub.Kind == apperr.KindInternal {
			// cobra usage and config errors carry no kind; show them as-is.
			fmt.Fprintf(r.stderr, "error: %v\n", err)
		} else {
			fmt.Fprintf(r.stderr, "%s: %s\n", pub.Kind, pub.Message)
		}
		return 1
	}
	return 0
}

func (s *state) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walletcheck",
		Short: "Native balances and risk labels for ethereum, polygon, arbitrum and solana wallets",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl := zerolog.WarnLevel
			if s.flags.verbose {
				lvl = zerolog.DebugLevel
			}
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: s.runner.stderr, TimeFormat: "15:04:05"}).Level(lvl).With().Timestamp().Logger()

			if s.flags.json {
				s.flags.output = "json"
			}
			switch s.flags.output {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("--output must be table, json or yaml, got %q", s.flags.output)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&s.flags.output, "output", "o", "table", "Output format: table, json or yaml")
	cmd.PersistentFlags().BoolVar(&s.flags.json, "json", false, "Shorthand for --output json")
	cmd.PersistentFlags().BoolVarP(&s.flags.verbose, "verbose", "v", false, "Debug logging on stderr")
	cmd.PersistentFlags().DurationVar(&s.flags.timeout, "timeout", 60*time.Second, "Overall deadline for the command")

	cmd.AddCommand(s.newBalanceCommand())
	cmd.AddCommand(s.newRiskCommand())
	cmd.AddCommand(s.newPortfolioCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newReportCommand())
	return cmd
}

// service builds the wallet service on first use, so commands that never
// touch a chain (help, completion) do not need a valid configuration.
func (s *state) service() (Service, error) {
	if s.svc == nil {
		svc, err := s.runner.newService()
		if err != nil {
			return nil, err
		}
		s.svc = svc
	}
	return s.svc, nil
}

func (s *state) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), s.flags.timeout)
}

func chainFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "chain", "c", string(chain.Default), "Chain: ethereum, polygon, arbitrum or solana")
}

func (s *state) newBalanceCommand() *cobra.Command {
	var chainName string
	cmd := &cobra.Command{
		Use:   "balance <address>",
		Short: "Native token balance and USD value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.service()
			if err != nil {
				return err
			}
			ctx, cancel := s.ctx(cmd)
			defer cancel()
			res, err := svc.GetWalletBalance(ctx, args[0], chainName)
			if err != nil {
				return err
			}
			v := res.View()
			return s.render(v, func(t *tablewriter.Table) {
				t.SetHeader([]string{"Chain", "Address", "Balance", "USD"})
				t.Append([]string{v.Chain, v.Address, v.NativeAmount + " " + v.NativeSymbol, usd(v.USDValue)})
			})
		},
	}
	chainFlag(cmd, &chainName)
	return cmd
}

func (s *state) newRiskCommand() *cobra.Command {
	var chainName string
	cmd := &cobra.Command{
		Use:   "risk <address>",
		Short: "Balance plus an advisory risk label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.service()
			if err != nil {
				return err
			}
			ctx, cancel := s.ctx(cmd)
			defer cancel()
			rep, err := svc.AnalyzeWalletRisk(ctx, args[0], chainName)
			if err != nil {
				return err
			}
			v := rep.View()
			return s.render(v, func(t *tablewriter.Table) {
				t.SetHeader([]string{"Chain", "Address", "Balance", "USD", "Tier", "Risk", "Confidence"})
				t.Append([]string{
					v.Chain, v.Address, v.NativeAmount + " " + v.NativeSymbol, usd(v.USDValue),
					v.BalanceBucket, paintLabel(rep.Risk.Label), fmt.Sprintf("%.2f", v.RiskConfidence),
				})
			})
		},
	}
	chainFlag(cmd, &chainName)
	return cmd
}

func (s *state) newPortfolioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio <address>",
		Short: "Balances on every configured chain that shares the address format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.service()
			if err != nil {
				return err
			}
			ctx, cancel := s.ctx(cmd)
			defer cancel()
			p, err := svc.GetMultichainBalance(ctx, args[0])
			if err != nil {
				return err
			}
			v := p.View()
			return s.render(v, func(t *tablewriter.Table) {
				t.SetHeader([]string{"Chain", "Balance", "USD", "Error"})
				for _, e := range v.Balances {
					if e.Balance != nil {
						t.Append([]string{e.Chain, e.Balance.NativeAmount + " " + e.Balance.NativeSymbol, usd(e.Balance.USDValue), ""})
						continue
					}
					t.Append([]string{e.Chain, "-", "-", color.RedString("%s: %s", e.Error.Kind, e.Error.Message)})
				}
				t.SetFooter([]string{"", "Total", usd(&v.TotalUSD), ""})
			})
		},
	}
}

func (s *state) newChainsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "Probe every configured chain node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.service()
			if err != nil {
				return err
			}
			ctx, cancel := s.ctx(cmd)
			defer cancel()
			statuses := svc.Probe(ctx)
			return s.render(statuses, func(t *tablewriter.Table) {
				t.SetHeader([]string{"Chain", "Status", "Client", "Latency"})
				for _, st := range statuses {
					status := color.GreenString("up")
					if st.Err != "" {
						status = color.RedString("down: %s", st.Err)
					}
					t.Append([]string{string(st.Chain), status, st.Client, fmt.Sprintf("%dms", st.LatencyMS)})
				}
			})
		},
	}
}

func (s *state) newReportCommand() *cobra.Command {
	var chainName, outPath string
	cmd := &cobra.Command{
		Use:   "report <address>",
		Short: "Write a PDF risk report for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := s.service()
			if err != nil {
				return err
			}
			ctx, cancel := s.ctx(cmd)
			defer cancel()
			rep, err := svc.AnalyzeWalletRisk(ctx, args[0], chainName)
			if err != nil {
				return err
			}
			// The portfolio section is best effort.
			p, err := svc.GetMultichainBalance(ctx, args[0])
			if err != nil {
				log.Warn().Err(err).Msg("portfolio unavailable, report will omit it")
				p = nil
			}

			if outPath == "" {
				outPath = fmt.Sprintf("walletscope-%s-%s.pdf", rep.Chain, shortAddr(rep.Address))
			}
			f, err := os.Create(outPath)
			if err != nil {
				return err
			}
			if err := report.Write(f, rep, p, s.runner.now()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(s.runner.stdout, "📄 report written to %s\n", outPath)
			return nil
		},
	}
	chainFlag(cmd, &chainName)
	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Output path (default walletscope-<chain>-<addr>.pdf)")
	return cmd
}

// ── rendering ───────────────────────────────────────────────

func (s *state) render(v any, fill func(t *tablewriter.Table)) error {
	w := s.runner.stdout
	switch s.flags.output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		t := tablewriter.NewWriter(w)
		t.SetAutoWrapText(false)
		t.SetAutoFormatHeaders(false)
		fill(t)
		t.Render()
		return nil
	}
}

func usd(v *string) string {
	if v == nil {
		return "n/a"
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return *v
	}
	return "$" + d.StringFixed(2)
}

func paintLabel(l risk.Label) string {
	switch l {
	case risk.LabelLow:
		return color.New(color.FgGreen).Sprint(l)
	case risk.LabelMedium:
		return color.New(color.FgYellow).Sprint(l)
	case risk.LabelHigh:
		return color.New(color.FgRed).Sprint(l)
	default:
		return color.New(color.Faint).Sprint(l)
	}
}

func shortAddr(a string) string {
	if len(a) > 10 {
		return a[:6] + a[len(a)-4:]
	}
	return a
}
