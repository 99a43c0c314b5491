// Package api exposes the transfer service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fund-transfer/pkg/ledger"
	"fund-transfer/pkg/logging"
	"fund-transfer/pkg/metrics"
	"fund-transfer/pkg/resilience"
	"fund-transfer/pkg/transfer"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxBodyBytes bounds a transfer request body.
const maxBodyBytes = 1 << 20

// TransferService is the part of transfer.Service the handlers use.
type TransferService interface {
	Transfer(ctx context.Context, req transfer.Request) (*ledger.Transaction, error)
	GetTransaction(ctx context.Context, referenceNumber string) (*ledger.Transaction, error)
	GetAccountTransactions(ctx context.Context, accountNumber string, limit int) ([]*ledger.Transaction, error)
	ListActiveAccounts(ctx context.Context) ([]*ledger.Account, error)
}

// AccountReader serves account reads, usually through the cache.
type AccountReader interface {
	GetAccount(ctx context.Context, accountNumber string) (*ledger.Account, error)
	GetBalance(ctx context.Context, accountNumber string) (decimal.Decimal, error)
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// HealthTimeout bounds each dependency check on /health.
	HealthTimeout time.Duration
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:       ":8080",
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		HealthTimeout: 2 * time.Second,
	}
}

// Deps are the collaborators behind the routes. Transfers and Accounts are
// required; the rest are optional.
type Deps struct {
	Transfers TransferService
	Accounts  AccountReader
	Checks    []HealthCheck
	Breakers  *resilience.Breakers
	Metrics   metrics.MetricsCollector
	// Gatherer backs /metrics. The route is absent when nil.
	Gatherer prometheus.Gatherer
	Logger   *logging.Logger
}

// Server is the HTTP front end of the service.
type Server struct {
	deps     Deps
	router   *mux.Router
	server   *http.Server
	config   ServerConfig
	validate *validator.Validate
	logger   *logging.Logger
}

// NewServer builds the router. Call Start to listen.
func NewServer(deps Deps, config ServerConfig) *Server {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOpCollector{}
	}
	root := deps.Logger
	if root == nil {
		root = logging.Global()
	}
	if config.HealthTimeout <= 0 {
		config.HealthTimeout = DefaultServerConfig().HealthTimeout
	}

	s := &Server{
		deps:     deps,
		config:   config,
		validate: newValidator(),
		logger:   root.Named("api"),
	}

	r := mux.NewRouter()
	r.Use(correlationMiddleware(root), recoverMiddleware(s.logger), metricsMiddleware(deps.Metrics))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/transfers", s.handleCreateTransfer).Methods(http.MethodPost)
	v1.HandleFunc("/transfers/account/{accountNumber}", s.handleAccountTransfers).Methods(http.MethodGet)
	v1.HandleFunc("/transfers/{referenceNumber}", s.handleGetTransfer).Methods(http.MethodGet)
	v1.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountNumber}", s.handleGetAccount).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{accountNumber}/balance", s.handleGetBalance).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Resource not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in a goroutine. The returned channel receives the error if
// the listener fails; it is closed after a clean shutdown.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		s.logger.Info("server listening", zap.String("addr", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	return errc
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) log(r *http.Request) *logging.Logger {
	return logging.FromContext(r.Context(), s.logger)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", nil)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "Validation failed", nil)
			return
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		writeError(w, http.StatusBadRequest, "Validation failed", details)
		return
	}

	amount, err := req.Amount.Decimal()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", map[string]string{"amount": "Amount is not a number"})
		return
	}

	t, err := s.deps.Transfers.Transfer(r.Context(), transfer.Request{
		SourceAccount:      req.SourceAccountNumber,
		DestinationAccount: req.DestinationAccountNumber,
		Amount:             amount,
		Description:        req.Description,
	})
	if err != nil {
		s.fail(w, r, "transfer request failed", err)
		return
	}
	writeData(w, http.StatusCreated, newTransferResponse(t))
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["referenceNumber"]
	t, err := s.deps.Transfers.GetTransaction(r.Context(), ref)
	if err != nil {
		s.fail(w, r, "get transfer failed", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	writeData(w, http.StatusOK, newTransferResponse(t))
}

func (s *Server) handleAccountTransfers(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["accountNumber"]

	// Missing or non-numeric limits fall back to the service default.
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	list, err := s.deps.Transfers.GetAccountTransactions(r.Context(), number, limit)
	if err != nil {
		s.fail(w, r, "list account transfers failed", err)
		return
	}
	out := make([]TransferResponse, 0, len(list))
	for _, t := range list {
		out = append(out, newTransferResponse(t))
	}
	writeList(w, out, len(out))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Transfers.ListActiveAccounts(r.Context())
	if err != nil {
		s.fail(w, r, "list accounts failed", err)
		return
	}
	out := make([]AccountResponse, 0, len(list))
	for _, a := range list {
		out = append(out, newAccountResponse(a))
	}
	writeList(w, out, len(out))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Accounts.GetAccount(r.Context(), mux.Vars(r)["accountNumber"])
	if err != nil {
		s.fail(w, r, "get account failed", err)
		return
	}
	writeData(w, http.StatusOK, newAccountResponse(a))
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	number := mux.Vars(r)["accountNumber"]
	balance, err := s.deps.Accounts.GetBalance(r.Context(), number)
	if err != nil {
		s.fail(w, r, "get balance failed", err)
		return
	}
	writeData(w, http.StatusOK, BalanceResponse{AccountNumber: number, Balance: ledger.FormatAmount(balance)})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, message := statusFor(err)
	l := s.log(r)
	if status >= http.StatusInternalServerError {
		l.Error(msg, zap.Int("status", status), zap.Error(err))
	} else {
		l.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, message, nil)
}
