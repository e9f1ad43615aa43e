// Package web serves the predictor and tools as a small JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/courtside/courtside-cli/internal/fx"
	"github.com/courtside/courtside-cli/internal/nba"
	"github.com/courtside/courtside-cli/internal/tools"
)

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:2526"

// maxPortRetries is the number of ports to try before giving up (2526-2535).
const maxPortRetries = 10

const maxBodySize = 1 << 20

// Options wires a [Server].
type Options struct {
	Addr      string
	Predictor tools.Predictor
	Exchange  tools.Converter
	Registry  *tools.Registry

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
}

// Server is the HTTP JSON server.
type Server struct {
	predictor tools.Predictor
	exchange  tools.Converter
	registry  *tools.Registry
	httpSrv   *http.Server
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Registry == nil {
		opts.Registry = tools.NewRegistry()
	}
	s := &Server{
		predictor: opts.Predictor,
		exchange:  opts.Exchange,
		registry:  opts.Registry,
	}

	r := mux.NewRouter()
	r.Use(requestID, recordMetrics)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/predict", s.handlePredict).Methods(http.MethodGet)
	v1.HandleFunc("/teams", s.handleTeams).Methods(http.MethodGet)
	v1.HandleFunc("/fx", s.handleFX).Methods(http.MethodGet)
	v1.HandleFunc("/tools", s.handleListTools).Methods(http.MethodGet)
	v1.Handle("/tools/{name}", localJSON(http.HandlerFunc(s.handleCallTool))).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.httpSrv = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start begins listening on the configured address. Non-blocking.
// If the port is already in use, it tries consecutive ports up to maxPortRetries.
// If pinned is true (user specified --addr explicitly), no auto-increment is attempted.
// Returns the actual address the server is listening on.
func (s *Server) Start(pinned bool) (string, error) {
	host, portStr, err := net.SplitHostPort(s.httpSrv.Addr)
	if err != nil {
		return "", fmt.Errorf("server addr %q: %w", s.httpSrv.Addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("server port %q: %w", portStr, err)
	}

	tries := maxPortRetries
	if pinned || port == 0 {
		tries = 1
	}
	for i := 0; i < tries; i++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port+i)))
		if err != nil {
			if tries == 1 {
				return "", fmt.Errorf("listen %s: %w", s.httpSrv.Addr, err)
			}
			continue
		}
		s.httpSrv.Addr = ln.Addr().String()
		go func() {
			if err := s.httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "error", err)
			}
		}()
		return s.httpSrv.Addr, nil
	}
	return "", fmt.Errorf("no available port in range %d-%d", port, port+maxPortRetries-1)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ── predictor ──

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "predictor not configured")
		return
	}
	req, err := parsePredictQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.predictor.Predict(r.Context(), req)
	writeJSON(w, statusFor(res), res)
}

func parsePredictQuery(q map[string][]string) (nba.Request, error) {
	var req nba.Request
	get := func(k string) (string, bool) {
		v, ok := q[k]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}
	intParam := func(k string) (*int, error) {
		v, ok := get(k)
		if !ok {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", k)
		}
		return &n, nil
	}

	var err error
	if req.HomeTeamID, err = intParam("home_team_id"); err != nil {
		return req, err
	}
	if req.AwayTeamID, err = intParam("away_team_id"); err != nil {
		return req, err
	}
	if req.LastNGames, err = intParam("last_n_games"); err != nil {
		return req, err
	}
	if v, ok := get("team_name"); ok {
		req.TeamName = &v
	}
	if v, ok := get("get_prediction"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("get_prediction must be a boolean")
		}
		req.GetPrediction = &b
	}
	return req, nil
}

func statusFor(res *nba.Result) int {
	if res.Error == nil {
		return http.StatusOK
	}
	switch res.Error.Kind {
	case nba.InvalidRange, nba.InsufficientInput:
		return http.StatusBadRequest
	case nba.TeamNotFound, nba.NoUpcomingGame:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleTeams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"teams": nba.Teams()})
}

// ── exchange ──

func (s *Server) handleFX(w http.ResponseWriter, r *http.Request) {
	if s.exchange == nil {
		writeError(w, http.StatusServiceUnavailable, "exchange not configured")
		return
	}
	q := r.URL.Query()

	var amountArg any
	if q.Has("amount") {
		amountArg = q.Get("amount")
	}
	amount, err := fx.ParseAmount(amountArg)
	if err != nil {
		writeError(w, http.StatusBadRequest, fx.Message(err))
		return
	}
	dir := fx.USDToDOP
	if q.Has("direction") {
		if dir, err = fx.ParseDirection(q.Get("direction")); err != nil {
			writeError(w, http.StatusBadRequest, fx.Message(err))
			return
		}
	}

	conv, err := s.exchange.Convert(r.Context(), amount, dir)
	if err != nil {
		writeError(w, http.StatusBadGateway, fx.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// ── tools ──

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	defs := make([]tools.ToolDef, 0, len(s.registry.Tools()))
	for _, t := range s.registry.Tools() {
		defs = append(defs, t.Def())
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": defs})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 && !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	out, err := s.registry.Call(r.Context(), name, string(body))
	if errors.Is(err, tools.ErrUnknownTool) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown tool %q", name))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":     name,
		"result":   out,
		"is_error": tools.IsErrorResult(out),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
