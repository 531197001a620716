package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/corleone113/waypoint/internal/journal"
	"github.com/corleone113/waypoint/internal/location"
	"github.com/corleone113/waypoint/internal/route"
	"github.com/corleone113/waypoint/internal/router"
	"github.com/corleone113/waypoint/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string
	Mode     string
	Base     string
	Database string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve <routes>",
		Short: "Drive a router over HTTP",
		Long: `Start one router over a route table and expose it over HTTP.

Endpoints:
  GET  /healthz             liveness
  GET  /route               current route
  GET  /resolve?to=<loc>    resolve without navigating
  POST /navigate            {"to": "/users/1", "replace": false}
  POST /go                  {"n": -1}
  GET  /history             history length and position
  GET  /metrics             Prometheus metrics

With --db every finished navigation is journaled.

Example:
  waypoint serve ./routes.cue --addr :8080
  waypoint serve ./routes.cue --mode history --base /app --db ./runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&opts.Mode, "mode", "abstract", "history mode (abstract|hash|history)")
	cmd.Flags().StringVar(&opts.Base, "base", "", "base path for URL modes")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal navigations to this SQLite database")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	mode, err := parseMode(opts.Mode)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	}

	loaded, err := LoadRoutes(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load routes", err)
	}
	logger.Info("routes loaded", "path", path, "routes", len(loaded.Configs))

	cfg := ServerConfig{Mode: mode, Base: opts.Base, Logger: logger}
	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		cfg.Journal = j
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	srv, err := NewServer(ctx, loaded.Configs, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start router", err)
	}
	defer srv.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	httpSrv := &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()

	logger.Info("serving", "addr", opts.Addr, "mode", mode, "session", srv.Session())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", opts.Addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "shutdown failed", err)
		}
	}

	logger.Info("server stopped gracefully")
	return nil
}

// ServerConfig configures NewServer.
type ServerConfig struct {
	Mode    router.Mode
	Base    string
	Logger  *slog.Logger
	Journal *journal.Journal // optional
	Session string           // journal session; a UUIDv7 when empty
}

// Server exposes one router over HTTP. Navigations are serialized.
type Server struct {
	mu       sync.Mutex
	router   *router.Router
	registry *prometheus.Registry
	recorder *journal.Recorder
	logger   *slog.Logger
}

// NewServer builds the router, runs its initial navigation and wires
// metrics, tracing and the optional journal as observers.
func NewServer(ctx context.Context, configs []route.Config, cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = router.ModeAbstract
	}

	s := &Server{
		registry: prometheus.NewRegistry(),
		logger:   cfg.Logger,
	}
	extra := []router.Option{
		router.WithObserver(telemetry.NewMetrics(telemetry.WithRegistry(s.registry))),
		router.WithObserver(telemetry.NewTracer()),
	}
	if cfg.Journal != nil {
		ropts := []journal.RecorderOption{journal.WithLogger(cfg.Logger)}
		if cfg.Session != "" {
			last, err := cfg.Journal.LastSeq(ctx, cfg.Session)
			if err != nil {
				return nil, err
			}
			ropts = append(ropts, journal.WithSession(cfg.Session), journal.WithStartSeq(last))
		}
		s.recorder = journal.NewRecorder(cfg.Journal, ropts...)
		extra = append(extra, router.WithObserver(s.recorder))
	}

	r, err := buildRouter(configs, cfg.Mode, cfg.Base, cfg.Logger, extra...)
	if err != nil {
		return nil, err
	}
	for _, cfgErr := range r.ConfigErrors() {
		cfg.Logger.Warn("route configuration error", "error", cfgErr)
	}
	if _, err := r.Start(ctx); err != nil {
		cfg.Logger.Warn("initial navigation failed", "error", err)
	}
	s.router = r
	return s, nil
}

// Session is the journal session, or "" without a journal.
func (s *Server) Session() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.Session()
}

// Router returns the served router.
func (s *Server) Router() *router.Router {
	return s.router
}

// Close detaches the router from its history.
func (s *Server) Close() {
	s.router.Close()
}

// Handler returns the HTTP API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/route", s.handleRoute)
	r.Get("/resolve", s.handleResolve)
	r.Post("/navigate", s.handleNavigate)
	r.Post("/go", s.handleGo)
	r.Get("/history", s.handleHistory)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return r
}

// NavigateRequest is the body of POST /navigate.
type NavigateRequest struct {
	To      string `json:"to"`
	Replace bool   `json:"replace"`
}

// GoRequest is the body of POST /go.
type GoRequest struct {
	N int `json:"n"`
}

// NavigateResponse reports how a navigation ended and where the router is.
type NavigateResponse struct {
	Outcome string        `json:"outcome"`
	Route   ResolveResult `json:"route"`
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Length  int    `json:"length"`
	Index   int    `json:"index"`
	Current string `json:"current"`
}

func (s *Server) current() ResolveResult {
	rt := s.router.CurrentRoute()
	return newResolveResult(rt, s.router.History().CreateHref(rt.FullPath))
}

func (s *Server) handleRoute(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: s.current()})
}

func (s *Server) handleResolve(w http.ResponseWriter, req *http.Request) {
	to := req.URL.Query().Get("to")
	if to == "" {
		writeError(w, http.StatusBadRequest, ErrCodeGeneric, "query parameter \"to\" is required", nil)
		return
	}

	s.mu.Lock()
	resolved, err := s.router.Resolve(location.From(to), nil, false)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, ErrCodeResolveFailed, err.Error(), nil)
		return
	}
	result := newResolveResult(resolved.Route, resolved.Href)
	if len(result.Matched) == 0 {
		writeError(w, http.StatusNotFound, ErrCodeNoMatch, "no route matches "+result.FullPath, result)
		return
	}
	writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: result})
}

func (s *Server) handleNavigate(w http.ResponseWriter, req *http.Request) {
	var body NavigateRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeGeneric, "invalid body: "+err.Error(), nil)
		return
	}
	if body.To == "" {
		writeError(w, http.StatusBadRequest, ErrCodeGeneric, "\"to\" is required", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := req.Context()
	var err error
	if body.Replace {
		_, err = s.router.Replace(ctx, location.From(body.To))
	} else {
		_, err = s.router.Push(ctx, location.From(body.To))
	}

	resp := NavigateResponse{Outcome: string(router.OutcomeOf(err)), Route: s.current()}
	if err == nil {
		writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: resp})
		return
	}
	code := ErrCodeGeneric
	var ne *router.NavigationError
	if errors.As(err, &ne) {
		code = string(ne.Code)
	}
	s.logger.Debug("navigation did not commit", "to", body.To, "outcome", resp.Outcome, "error", err)
	writeJSON(w, http.StatusConflict, CLIResponse{
		Status: "error",
		Data:   resp,
		Error:  &CLIError{Code: code, Message: err.Error()},
	})
}

func (s *Server) handleGo(w http.ResponseWriter, req *http.Request) {
	var body GoRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeGeneric, "invalid body: "+err.Error(), nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.router.History().CanGo(body.N) {
		writeError(w, http.StatusBadRequest, ErrCodeGeneric, fmt.Sprintf("cannot go %d entries", body.N), nil)
		return
	}
	if err := s.router.Go(req.Context(), body.N); err != nil {
		writeError(w, http.StatusConflict, ErrCodeGeneric, err.Error(), s.current())
		return
	}
	writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: s.current()})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.router.History()
	writeJSON(w, http.StatusOK, CLIResponse{Status: "ok", Data: HistoryResponse{
		Length:  h.Len(),
		Index:   h.Index(),
		Current: h.Current().Path,
	}})
}

func writeError(w http.ResponseWriter, status int, code, message string, data any) {
	writeJSON(w, status, CLIResponse{
		Status: "error",
		Data:   data,
		Error:  &CLIError{Code: code, Message: message},
	})
}

func writeJSON(w http.ResponseWriter, status int, resp CLIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
