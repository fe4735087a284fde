package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"cryptoJournal/internal/app"
	"cryptoJournal/internal/metrics"
	"cryptoJournal/internal/ports"
)

const maxBodyBytes = 1 << 20

// Server handles the REST API.
type Server struct {
	svc     Journal
	router  *mux.Router
	metrics *metrics.Metrics
	origins []string
	logger  ports.Logger
}

// Config holds the server's dependencies.
type Config struct {
	Journal        Journal
	Metrics        *metrics.Metrics // Optional; /metrics is served from it
	AllowedOrigins []string         // CORS; empty allows any origin
	Logger         ports.Logger
}

// NewServer creates a new API server with all routes registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Journal == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("journal and logger are required for API server: %w", ports.ErrConfigurationError)
	}
	s := &Server{
		svc:     cfg.Journal,
		router:  mux.NewRouter(),
		metrics: cfg.Metrics,
		origins: cfg.AllowedOrigins,
		logger:  cfg.Logger,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1/accounts/{accountID}").Subrouter()

	// Trades
	api.HandleFunc("/trades", s.handleRecordTrade).Methods(http.MethodPost)
	api.HandleFunc("/trades", s.handleListTrades).Methods(http.MethodGet)
	api.HandleFunc("/trades/{tradeID}", s.handleDeleteTrade).Methods(http.MethodDelete)

	// Positions
	api.HandleFunc("/portfolio", s.handlePortfolio).Methods(http.MethodGet)
	api.HandleFunc("/assets/{symbol}", s.handleAssetDetail).Methods(http.MethodGet)
	api.HandleFunc("/assets/{symbol}/ledger", s.handleAssetLedger).Methods(http.MethodGet)
	api.HandleFunc("/assets/{symbol}/holding", s.handleHolding).Methods(http.MethodGet)

	// Exit strategies; simulate is registered before {symbol} routes.
	api.HandleFunc("/exit-strategies", s.handleListExitStrategies).Methods(http.MethodGet)
	api.HandleFunc("/exit-strategies/simulate", s.handleSimulate).Methods(http.MethodPost)
	api.HandleFunc("/exit-strategies/{symbol}", s.handleSaveExitStrategy).Methods(http.MethodPut)
	api.HandleFunc("/exit-strategies/{symbol}", s.handleDeleteExitStrategy).Methods(http.MethodDelete)
	api.HandleFunc("/exit-strategies/{symbol}/plan", s.handlePlan).Methods(http.MethodGet)
	api.HandleFunc("/exit-strategies/{symbol}/executions", s.handleRecordExecution).Methods(http.MethodPost)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	opts := cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}
	if len(s.origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.New(opts).Handler(s.router)
}

// Run serves on addr until ctx is canceled, then drains in-flight requests
// for at most shutdownTimeout.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "API server starting", map[string]interface{}{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info(context.Background(), "API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// ==============================
// Middleware
// ==============================

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		s.metrics.ObserveRequest(r.Method, route, rec.status, time.Since(start))
	})
}

// ==============================
// Trades
// ==============================

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var in app.TradeInput
	if !s.decode(w, r, &in) {
		return
	}
	trade, err := s.svc.RecordTrade(r.Context(), mux.Vars(r)["accountID"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.svc.ListTrades(r.Context(), mux.Vars(r)["accountID"], r.URL.Query().Get("symbol"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, TradesResponse{Trades: trades, Count: len(trades)})
}

func (s *Server) handleDeleteTrade(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.DeleteTrade(r.Context(), vars["accountID"], vars["tradeID"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==============================
// Positions
// ==============================

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.PortfolioSummary(r.Context(), mux.Vars(r)["accountID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAssetDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	detail, err := s.svc.AssetDetail(r.Context(), vars["accountID"], vars["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAssetLedger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.svc.AssetLedger(r.Context(), vars["accountID"], vars["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleHolding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	holding, err := s.svc.OpenSpotHolding(r.Context(), vars["accountID"], vars["symbol"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, holding)
}

// ==============================
// Exit strategies
// ==============================

func (s *Server) handleListExitStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListExitStrategies(r.Context(), mux.Vars(r)["accountID"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ExitStrategiesResponse{ExitStrategies: list})
}

func (s *Server) handleSaveExitStrategy(w http.ResponseWriter, r *http.Request) {
	var in app.ExitStrategyInput
	if !s.decode(w, r, &in) {
		return
	}
	vars := mux.Vars(r)
	strategy, err := s.svc.SaveExitStrategy(r.Context(), vars["accountID"], vars["symbol"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, strategy)
}

func (s *Server) handleDeleteExitStrategy(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.DeleteExitStrategy(r.Context(), vars["accountID"], vars["symbol"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	maxSteps := 0
	if raw := r.URL.Query().Get("maxSteps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			v := ports.NewValidationError()
			v.Add("maxSteps", "must be an integer")
			s.fail(w, r, v)
			return
		}
		maxSteps = n
	}
	vars := mux.Vars(r)
	plan, err := s.svc.ExitStrategyPlan(r.Context(), vars["accountID"], vars["symbol"], maxSteps)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var in app.SimulationInput
	if !s.decode(w, r, &in) {
		return
	}
	plan, err := s.svc.SimulateExitStrategy(r.Context(), mux.Vars(r)["accountID"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRecordExecution(w http.ResponseWriter, r *http.Request) {
	var in app.ExecutionInput
	if !s.decode(w, r, &in) {
		return
	}
	vars := mux.Vars(r)
	result, err := s.svc.RecordExecution(r.Context(), vars["accountID"], vars["symbol"], in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC().Format(time.RFC3339)})
}

// ==============================
// Helper Functions
// ==============================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return false
	}
	return true
}

// statusFor maps application errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrDuplicateEntry):
		return http.StatusConflict
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := ErrorResponse{Error: strings.ToLower(http.StatusText(status)), Message: err.Error()}

	var verr *ports.ValidationError
	if errors.As(err, &verr) {
		body.Error = "validation failed"
		body.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", map[string]interface{}{"method": r.Method, "path": r.URL.Path})
		body.Message = "internal error"
	}
	respondError(w, status, body)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, body ErrorResponse) {
	respondJSON(w, status, body)
}
