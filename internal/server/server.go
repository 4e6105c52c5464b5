// Package server exposes the lookup service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"chain-addresses/internal/chains"
	"chain-addresses/internal/domain"
	"chain-addresses/internal/lookup"
	"chain-addresses/internal/observability"
)

const defaultSearchLimit = 10

// Lookup is the read API served over HTTP. Satisfied by *lookup.Service.
type Lookup interface {
	Wallet(ctx context.Context, chain, address string) (*domain.Wallet, error)
	Token(ctx context.Context, chain, address string) (*domain.Token, error)
	TokenAddress(ctx context.Context, chain, symbol string) (string, error)
	TokenDecimals(ctx context.Context, chain, address string) (int, error)
	IsValidAddress(chain, address string) bool
	GuessChain(address string) (*chains.Descriptor, bool)
	Search(ctx context.Context, query string, limit int) ([]lookup.Match, error)
}

// Server serves wallet and token lookups, health and metrics.
type Server struct {
	lookup Lookup
	reg    *chains.Registry
	logger *zap.Logger
}

// New creates a server.
func New(l Lookup, reg *chains.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{lookup: l, reg: reg, logger: logger}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", observability.Handler())

	s.route(mux, "GET /v1/wallets/{chain}/{address}", s.handleWallet)
	s.route(mux, "GET /v1/tokens/{chain}/{address}", s.handleToken)
	s.route(mux, "GET /v1/symbols/{chain}/{symbol}", s.handleSymbol)
	s.route(mux, "GET /v1/guess/{address}", s.handleGuess)
	s.route(mux, "GET /v1/validate/{chain}/{address}", s.handleValidate)
	s.route(mux, "GET /v1/search", s.handleSearch)

	return mux
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// route wraps h with request metrics and logging labelled by pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)
		observability.RecordHTTPRequest(pattern, rec.code, elapsed.Seconds())
		s.logger.Debug("handled request",
			zap.String("route", pattern),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.code),
			zap.Duration("elapsed", elapsed),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// WalletResponse is the JSON form of a wallet.
type WalletResponse struct {
	Chain        string  `json:"chain"`
	Address      string  `json:"address"`
	Label        string  `json:"label"`
	Category     string  `json:"category"`
	Organization *string `json:"organization,omitempty"`
	DataSource   string  `json:"data_source,omitempty"`
	ScannerURL   string  `json:"scanner_url,omitempty"`
}

// TokenResponse is the JSON form of a token.
type TokenResponse struct {
	Chain       string         `json:"chain"`
	Address     string         `json:"address"`
	Symbol      *string        `json:"symbol,omitempty"`
	Name        *string        `json:"name,omitempty"`
	Decimals    int            `json:"decimals"`
	TokenType   *string        `json:"token_type,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
	IsScam      *bool          `json:"is_scam,omitempty"`
	URLExplorer *string        `json:"url_explorer,omitempty"`
	LaunchedAt  *time.Time     `json:"launched_at,omitempty"`
	ExtraFields map[string]any `json:"extra_fields,omitempty"`
	DataSource  string         `json:"data_source,omitempty"`
}

// SearchResult is one search hit.
type SearchResult struct {
	WalletResponse
	Score int `json:"score"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	chain, address := r.PathValue("chain"), r.PathValue("address")
	wallet, err := s.lookup.Wallet(r.Context(), chain, address)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if wallet == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "wallet not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.walletResponse(wallet))
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	chain, address := r.PathValue("chain"), r.PathValue("address")
	tok, err := s.lookup.Token(r.Context(), chain, address)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if tok == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "token not found"})
		return
	}
	decimals, err := s.lookup.TokenDecimals(r.Context(), chain, address)
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{
		Chain:       tok.Chain,
		Address:     tok.Address.Address,
		Symbol:      tok.Symbol,
		Name:        tok.Name,
		Decimals:    decimals,
		TokenType:   tok.TokenType,
		IsActive:    tok.IsActive,
		IsScam:      tok.IsScam,
		URLExplorer: tok.URLExplorer,
		LaunchedAt:  tok.LaunchedAt,
		ExtraFields: tok.ExtraFields,
		DataSource:  tok.DataSource,
	})
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	chain, symbol := r.PathValue("chain"), r.PathValue("symbol")
	address, err := s.lookup.TokenAddress(r.Context(), chain, symbol)
	if errors.Is(err, lookup.ErrTokenNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"chain": chain, "symbol": symbol, "address": address})
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	d, ok := s.lookup.GuessChain(r.PathValue("address"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no matching chain"})
		return
	}
	resp := map[string]string{"chain": d.ChainString(), "name": d.Name}
	if d.ID == chains.Solana {
		if kind, err := chains.SolanaAccountKind(strings.TrimSpace(r.PathValue("address"))); err == nil {
			resp["account_kind"] = string(kind)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	chain, address := r.PathValue("chain"), r.PathValue("address")
	writeJSON(w, http.StatusOK, map[string]any{
		"chain":   chain,
		"address": address,
		"valid":   s.lookup.IsValidAddress(chain, address),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing q parameter"})
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	matches, err := s.lookup.Search(r.Context(), q, limit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	out := make([]SearchResult, len(matches))
	for i, m := range matches {
		out[i] = SearchResult{WalletResponse: s.walletResponse(m.Wallet), Score: m.Score}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) walletResponse(w *domain.Wallet) WalletResponse {
	resp := WalletResponse{
		Chain:        w.Chain,
		Address:      w.Address.Address,
		Label:        w.LabelOrUnknown(),
		Category:     w.CategoryOrUnknown(),
		Organization: w.Organization,
		DataSource:   w.DataSource,
	}
	if s.reg != nil {
		if d, ok := s.reg.Get(w.Chain); ok {
			resp.ScannerURL = d.ScannerAddressURL(w.Address.Address)
		}
	}
	return resp
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("lookup failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
