// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/imprintworks/imprintd/internal/currency"
	"github.com/imprintworks/imprintd/internal/engine"
	klog "github.com/imprintworks/imprintd/internal/log"
	"github.com/imprintworks/imprintd/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// SettlementAsset is the currency surface exposed over RPC for standalone
// runs, where the daemon hosts the settlement asset itself. A nil asset
// disables the currency_* methods and admin_rescue.
type SettlementAsset interface {
	currency.Asset
	Credit(owner types.Address, amount uint64) error
	Approve(owner, spender types.Address, amount uint64) error
}

// Server is the JSON-RPC 2.0 HTTP server. The RPC endpoint lives at /rpc
// (and at / for convenience); /metrics and /healthz ride on the same
// listener.
type Server struct {
	addr        string
	engine      *engine.Engine
	asset       SettlementAsset
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	corsOrigins []string // Empty = no CORS headers.
}

// New creates an RPC server over an engine. gatherer serves /metrics; nil
// disables the endpoint.
func New(addr string, eng *engine.Engine, asset SettlementAsset, gatherer prometheus.Gatherer, corsOrigins []string) *Server {
	s := &Server{
		addr:        addr,
		engine:      eng,
		asset:       asset,
		logger:      klog.RPC,
		corsOrigins: corsOrigins,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Post("/", s.handleRequest)
	r.Post("/rpc", s.handleRequest)
	r.Options("/", s.handlePreflight)
	r.Options("/rpc", s.handlePreflight)
	r.Get("/healthz", s.handleHealth)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	s.server = &http.Server{
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", s.Addr()).Msg("RPC server listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	s.setCORSHeaders(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	reqID := uuid.NewString()
	start := time.Now()
	result, rpcErr := s.dispatch(&req)

	lg := s.logger.Debug().
		Str("request_id", reqID).
		Str("method", req.Method).
		Dur("elapsed", time.Since(start))
	if rpcErr != nil {
		lg.Int("code", rpcErr.Code).Str("error", rpcErr.Message).Msg("rpc call failed")
		writeJSON(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	lg.Msg("rpc call")
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id interface{}, code int, msg string) {
	writeJSON(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: msg}, ID: id})
}
