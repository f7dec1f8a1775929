// Package api exposes Sentinel's management HTTP surface: request/workflow
// dispatch into the Gateway, TIRS agent-status and kill-switch admin
// endpoints, approval resolution, trace querying, Prometheus metrics, and a
// live trace WebSocket feed for the dashboard.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/armoriq/sentinel/internal/approval"
	"github.com/armoriq/sentinel/internal/auth"
	"github.com/armoriq/sentinel/internal/config"
	"github.com/armoriq/sentinel/internal/gateway"
	"github.com/armoriq/sentinel/internal/trace"
)

// Server is the management API server: request/workflow dispatch, TIRS and
// approval administration, trace querying, and metrics/dashboard exposure.
type Server struct {
	config       config.ServerConfig
	gateway      *gateway.Gateway
	store        trace.Store
	cfgLoader    *config.Loader
	approvals    *approval.Queue
	tokenManager *auth.TokenManager
	wsHub        *WebSocketHub
	validate     *validator.Validate
	router       chi.Router
	httpServer   *http.Server
	logger       *slog.Logger
}

// NewServer creates the management API server and registers all routes.
func NewServer(
	cfg config.ServerConfig,
	gw *gateway.Gateway,
	store trace.Store,
	cfgLoader *config.Loader,
	approvals *approval.Queue,
	tokenManager *auth.TokenManager,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:       cfg,
		gateway:      gw,
		store:        store,
		cfgLoader:    cfgLoader,
		approvals:    approvals,
		tokenManager: tokenManager,
		wsHub:        NewWebSocketHub(logger, cfg.CORS),
		validate:     validator.New(),
		logger:       logger.With("component", "api.Server"),
	}

	s.router = s.buildRouter()
	return s
}

// authRequired wraps a handler with token-based authentication. If auth is
// disabled in config, the handler is returned unwrapped with no overhead.
func (s *Server) authRequired(action string, next http.HandlerFunc) http.HandlerFunc {
	if !s.config.Auth.Enabled || s.tokenManager == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header")
			return
		}
		secret := strings.TrimPrefix(header, "Bearer ")

		token, err := s.tokenManager.ValidateToken(secret, r.RemoteAddr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if !auth.HasPermission(token.Role, action) {
			writeError(w, http.StatusForbidden, "insufficient permissions")
			return
		}

		next(w, r)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if s.config.CORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// System — health and metrics are always public.
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/system/status", s.authRequired("session.read", s.handleSystemStatus))

		// Request/workflow dispatch.
		r.Post("/requests", s.authRequired("evaluate", s.handleProcessRequest))
		r.Post("/workflows", s.authRequired("evaluate", s.handleExecuteWorkflow))

		// Agents (TIRS admin + router status).
		r.Get("/agents", s.authRequired("session.read", s.handleListAgents))
		r.Get("/agents/{id}/status", s.authRequired("session.read", s.handleAgentStatus))
		r.Post("/agents/{id}/kill", s.authRequired("session.terminate", s.handleKillAgent))
		r.Post("/agents/{id}/resume", s.authRequired("session.terminate", s.handleResumeAgent))
		r.Post("/agents/{id}/resurrect", s.authRequired("session.terminate", s.handleResurrectAgent))

		// Forensic snapshots.
		r.Get("/snapshots/{agent_id}/verify", s.authRequired("session.read", s.handleVerifySnapshots))

		// Compliance policies.
		r.Get("/policies", s.authRequired("session.read", s.handleListPolicies))
		r.Post("/policies/reload", s.authRequired("config.change", s.handleReloadPolicies))

		// Human approvals (Escalate verdicts).
		r.Get("/approvals", s.authRequired("session.read", s.handleListApprovals))
		r.Post("/approvals/{id}/approve", s.authRequired("session.terminate", s.handleApproveAction))
		r.Post("/approvals/{id}/deny", s.authRequired("session.terminate", s.handleDenyAction))

		// Traces.
		r.Get("/traces", s.authRequired("trace", s.handleListTraces))
		r.Get("/traces/search", s.authRequired("trace", s.handleSearchTraces))
		r.Get("/traces/{id}", s.authRequired("trace", s.handleGetTrace))

		// Live trace feed.
		r.Get("/ws/traces", s.wsHub.HandleWebSocket)
	})

	return r
}

// Handler returns the HTTP handler (for embedding in another server, or tests).
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the API server on the given address.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("management API listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BroadcastTrace sends a trace event to all WebSocket clients.
func (s *Server) BroadcastTrace(t *trace.Trace) {
	s.wsHub.Broadcast(t)
}

// Mux returns the underlying chi router for mounting additional routes.
func (s *Server) Mux() chi.Router { return s.router }

// Store returns the trace store.
func (s *Server) Store() trace.Store { return s.store }
