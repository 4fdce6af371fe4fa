package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/filegate/filegate/pkg/config"
	"github.com/filegate/filegate/pkg/logging"
	"github.com/filegate/filegate/pkg/middleware"
	"github.com/filegate/filegate/pkg/services"
)

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *mux.Router
	server         *http.Server
	accountService *services.AccountService
	logger         logging.Logger
	events         *EventHub
	loginLimiter   *middleware.RateLimiter
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, accountService *services.AccountService, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		config:         cfg,
		router:         mux.NewRouter(),
		accountService: accountService,
		logger:         logger,
		events:         NewEventHub(logger),
		loginLimiter:   middleware.NewRateLimiter(5, time.Minute),
	}

	s.setupRoutes()
	return s
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)

	var err error
	if s.config.Server.TLS.Enabled {
		err = s.server.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	} else {
		err = s.server.ListenAndServe()
	}

	// If the server was shut down gracefully, this error is expected
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	authMiddleware := middleware.NewAuthMiddleware(s.accountService)

	// API router with version prefix
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Public routes (no authentication required)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost, http.MethodOptions)

	// Authenticated routes
	authenticated := api.PathPrefix("").Subrouter()
	authenticated.Use(authMiddleware.Authenticate)

	// Self-service credential routes
	account := authenticated.PathPrefix("/account").Subrouter()
	account.HandleFunc("/change_password", s.handleChangeOwnPassword).Methods(http.MethodPost, http.MethodOptions)
	account.HandleFunc("/change_srp", s.handleChangeOwnSRP).Methods(http.MethodPost, http.MethodOptions)

	// Admin operations: RPC-style, one JSON object in, one JSON object or a
	// structured error out.
	admin := authenticated.PathPrefix("/admin").Subrouter()
	admin.Use(authMiddleware.RequireAdmin)
	admin.HandleFunc("/get_usernames", s.handleGetUsernames).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/get_account", s.handleGetAccount).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/get_accounts", s.handleGetAccounts).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/get_admins", s.handleGetAdmins).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/set_account", s.handleSetAccount).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/add_account", s.handleAddAccount).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/del_account", s.handleDelAccount).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/change_password_others", s.handleChangePasswordOthers).Methods(http.MethodPost, http.MethodOptions)
	admin.HandleFunc("/change_srp_others", s.handleChangeSRPOthers).Methods(http.MethodPost, http.MethodOptions)

	// Live change feed for the admin GUI
	admin.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	// Request logging for all routes
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	})

	// CORS middleware for all routes
	s.router.Use(middleware.CORS)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}
