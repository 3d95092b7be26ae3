// Package rpc provides a JSON-RPC 2.0 server for the klingsol daemon.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Klingon-tech/klingsol/internal/backend"
	"github.com/Klingon-tech/klingsol/internal/storage"
	"github.com/Klingon-tech/klingsol/internal/wallet"
	"github.com/Klingon-tech/klingsol/pkg/logging"
)

// Server is a JSON-RPC 2.0 server.
type Server struct {
	wallet *wallet.Service
	log    *logging.Logger
	wsHub  *WSHub

	server    *http.Server
	listener  net.Listener
	startedAt time.Time

	handlers       map[string]Handler
	allowedOrigins map[string]bool
	upgrader       websocket.Upgrader
	mu             sync.RWMutex
}

// Handler is a JSON-RPC method handler.
type Handler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error represents a JSON-RPC 2.0 error. Handlers may return it directly to
// choose the code.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes.
const (
	NotFound          = -32000
	InsufficientFunds = -32001
	WalletLocked      = -32002
	Unavailable       = -32003
)

// maxBodySize bounds a request body. Signed transactions are the largest
// payload and stay well under this.
const maxBodySize = 1 << 20

// NewServer creates a new JSON-RPC server for w. The WebSocket hub exists
// from construction so the wallet can publish to it before Start.
func NewServer(w *wallet.Service) *Server {
	s := &Server{
		wallet:   w,
		log:      logging.GetDefault().Component("rpc"),
		wsHub:    NewWSHub(),
		handlers: make(map[string]Handler),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}

	s.registerHandlers()

	return s
}

// registerHandlers registers all JSON-RPC method handlers.
func (s *Server) registerHandlers() {
	// Node methods
	s.handlers["node_info"] = s.nodeInfo
	s.handlers["node_status"] = s.nodeStatus

	// Wallet lifecycle
	s.handlers["wallet_status"] = s.walletStatus
	s.handlers["wallet_generate"] = s.walletGenerate
	s.handlers["wallet_validateMnemonic"] = s.walletValidateMnemonic
	s.handlers["wallet_create"] = s.walletCreate
	s.handlers["wallet_import"] = s.walletImport
	s.handlers["wallet_derive"] = s.walletDerive
	s.handlers["wallet_unlock"] = s.walletUnlock
	s.handlers["wallet_lock"] = s.walletLock
	s.handlers["wallet_accounts"] = s.walletAccounts
	s.handlers["wallet_account"] = s.walletAccount
	s.handlers["wallet_export"] = s.walletExport
	s.handlers["wallet_importRecords"] = s.walletImportRecords

	// Balances
	s.handlers["wallet_balance"] = s.walletBalance
	s.handlers["wallet_balances"] = s.walletBalances
	s.handlers["wallet_tokens"] = s.walletTokens

	// Transfers
	s.handlers["wallet_send"] = s.walletSend
	s.handlers["wallet_withdraw"] = s.walletWithdraw
	s.handlers["wallet_deposit"] = s.walletDeposit
	s.handlers["wallet_submitSigned"] = s.walletSubmitSigned
	s.handlers["wallet_airdrop"] = s.walletAirdrop

	// Tokens and swaps
	s.handlers["wallet_mint"] = s.walletMint
	s.handlers["wallet_minted"] = s.walletMinted
	s.handlers["wallet_swap"] = s.walletSwap

	// Activity
	s.handlers["wallet_history"] = s.walletHistory
}

// Handler returns the HTTP handler serving JSON-RPC and WebSocket requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", s.handleRPC)
	mux.HandleFunc("POST /{$}", s.handleRPC)
	mux.HandleFunc("OPTIONS /", s.handleCORS)
	mux.HandleFunc("OPTIONS /{$}", s.handleCORS)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /ws/", s.handleWS)
	return s.corsMiddleware(mux)
}

// SetAllowedOrigins sets the browser origins accepted besides loopback ones,
// e.g. "https://wallet.example.com".
func (s *Server) SetAllowedOrigins(origins []string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowedOrigins = allowed
}

// originAllowed accepts requests without an Origin header (the CLI and other
// non-browser clients), origins on a loopback host and the allow-list.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if isLoopbackHost(u.Hostname()) {
		return true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowedOrigins[normalizeOrigin(origin)]
}

func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Start starts the RPC server.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.startedAt = time.Now()

	go s.wsHub.Run()

	s.server = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Mint waits for a confirmation between its two transactions
		WriteTimeout: 3 * time.Minute,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("RPC server error", "error", err)
		}
	}()

	s.log.Info("RPC server started", "addr", listener.Addr().String(), "ws", "ws://"+listener.Addr().String()+"/ws")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the RPC server.
func (s *Server) Stop() error {
	s.wsHub.Stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleRPC handles incoming JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		s.writeError(w, nil, ParseError, "Parse error", nil)
		return
	}

	if req.JSONRPC != "2.0" {
		s.writeError(w, req.ID, InvalidRequest, "Invalid Request", nil)
		return
	}

	s.mu.RLock()
	handler, ok := s.handlers[req.Method]
	s.mu.RUnlock()

	if !ok {
		s.writeError(w, req.ID, MethodNotFound, "Method not found", req.Method)
		return
	}

	result, err := handler(r.Context(), req.Params)
	if err != nil {
		s.log.Debug("RPC call failed", "method", req.Method, "error", err)
		s.writeError(w, req.ID, errorCode(err), err.Error(), nil)
		return
	}

	s.writeResult(w, req.ID, result)
}

// errorCode maps handler errors onto JSON-RPC codes.
func errorCode(err error) int {
	var rpcErr *Error
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr.Code
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return InsufficientFunds
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInvalidRecipient),
		errors.Is(err, wallet.ErrInvalidMint),
		errors.Is(err, wallet.ErrInvalidMintRequest),
		errors.Is(err, wallet.ErrForeignTransaction),
		errors.Is(err, wallet.ErrAlreadySubmitted):
		return InvalidParams
	case errors.Is(err, wallet.ErrWalletLocked),
		errors.Is(err, wallet.ErrNoWallet):
		return WalletLocked
	case errors.Is(err, wallet.ErrAccountNotFound),
		errors.Is(err, storage.ErrNotFound):
		return NotFound
	case errors.Is(err, wallet.ErrMainnetOnly),
		errors.Is(err, wallet.ErrNoSwapProvider),
		errors.Is(err, wallet.ErrNoExternalWallet),
		errors.Is(err, backend.ErrAirdropDisabled),
		errors.Is(err, backend.ErrNotConnected):
		return Unavailable
	default:
		return InternalError
	}
}

// writeResult writes a successful response.
func (s *Server) writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	resp := Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// handleCORS handles CORS preflight requests.
func (s *Server) handleCORS(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// corsMiddleware rejects requests from origins that may not drive the
// wallet and adds CORS headers for the ones that may.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if !s.originAllowed(origin) {
			s.log.Warn("Rejected request from foreign origin", "origin", origin, "path", r.URL.Path)
			http.Error(w, "Origin not allowed", http.StatusForbidden)
			return
		}

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// parseParams decodes params into target. Empty params leave target unchanged.
func parseParams(params json.RawMessage, target interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, target); err != nil {
		return &Error{Code: InvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
