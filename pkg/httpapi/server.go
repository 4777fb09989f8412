// Package httpapi serves the wallet operations as a small JSON API, for hosts
// that cannot speak MCP over stdio.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/apperr"
	"github.com/walletscope/pkg/chain"
	"github.com/walletscope/pkg/wallet"
)

// Wallet is the slice of wallet.Service the API serves.
type Wallet interface {
	GetWalletBalance(ctx context.Context, address, chain string) (*wallet.BalanceResult, error)
	AnalyzeWalletRisk(ctx context.Context, address, chain string) (*wallet.RiskReport, error)
	GetMultichainBalance(ctx context.Context, address string) (*wallet.Portfolio, error)
}

type Server struct {
	svc  Wallet
	port int
}

func New(svc Wallet, port int) *Server {
	return &Server{svc: svc, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/balance", cors(s.handleBalance))
	mux.HandleFunc("/api/risk", cors(s.handleRisk))
	mux.HandleFunc("/api/portfolio", cors(s.handlePortfolio))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🌐 http api started")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func cors(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, &apperr.Error{Kind: apperr.KindInternal, Message: "method not allowed"})
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, e *apperr.Error) {
	writeJSON(w, status, map[string]*apperr.Error{"error": e})
}

// fail maps an operation error onto a status and a public error body.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	pub := apperr.Public(err)
	status := statusFor(pub.Kind)
	log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("api request failed")
	writeError(w, status, pub)
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindInvalidAddress, apperr.KindUnsupportedChain:
		return http.StatusBadRequest
	case apperr.KindProviderUnavailable, apperr.KindProviderResponse, apperr.KindPriceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func query(r *http.Request) (address, chainName string) {
	q := r.URL.Query()
	chainName = q.Get("chain")
	if chainName == "" {
		chainName = string(chain.Default)
	}
	return q.Get("address"), chainName
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	address, chainName := query(r)
	res, err := s.svc.GetWalletBalance(r.Context(), address, chainName)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.View())
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	address, chainName := query(r)
	rep, err := s.svc.AnalyzeWalletRisk(r.Context(), address, chainName)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep.View())
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	address, _ := query(r)
	p, err := s.svc.GetMultichainBalance(r.Context(), address)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
