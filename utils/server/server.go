// Package server exposes analysis sessions over an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/discovery"
	"github.com/kris-hansen/analyst/utils/executor"
	"github.com/kris-hansen/analyst/utils/storage"
	"github.com/kris-hansen/analyst/utils/workflow"
)

// Server represents the HTTP server
type Server struct {
	mux        *http.ServeMux
	config     *config.ServerConfig
	envConfig  *config.EnvConfig
	engine     *workflow.Engine
	store      storage.Store
	discoverer *discovery.Discoverer
	locks      *sessionLocks
}

// NewServer wires the routes around an engine and a session store
func NewServer(envConfig *config.EnvConfig, engine *workflow.Engine, store storage.Store) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		config:     envConfig.GetServerConfig(),
		envConfig:  envConfig,
		engine:     engine,
		store:      store,
		discoverer: discovery.New(discovery.Endpoints{}),
		locks:      newSessionLocks(),
	}
	s.routes()
	return s
}

// SetDiscoverer replaces the model discoverer
func (s *Server) SetDiscoverer(d *discovery.Discoverer) {
	s.discoverer = d
}

// ServeHTTP applies CORS and dispatches to the registered routes
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.applyCORS(w, r) {
		return
	}
	s.mux.ServeHTTP(w, r)
}

// New creates the HTTP server, its engine and its session store. The caller
// closes the store after the server stops.
func New(ctx context.Context, envConfig *config.EnvConfig) (*http.Server, storage.Store, error) {
	serverConfig := envConfig.GetServerConfig()
	if serverConfig == nil {
		return nil, nil, fmt.Errorf("server configuration not found")
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(serverConfig.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("error creating data directory: %v", err)
	}

	store, err := storage.New(ctx, envConfig.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening session store: %w", err)
	}

	engine := workflow.NewEngine(envConfig, config.Verbose)
	if envConfig.Workflow.Sandbox.Enabled {
		engine.SetRunner(executor.New(envConfig.Workflow.Sandbox, serverConfig.DataDir))
	}

	s := NewServer(envConfig, engine, store)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", serverConfig.Port),
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return server, store, nil
}

// routes sets up the server routes
func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", logRequest(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}))

	s.handle("GET /models", s.handleListModels)
	s.handle("POST /parse/tasks", s.handleParseTasks)
	s.handle("POST /parse/analyst", s.handleParseAnalyst)

	// Session lifecycle
	s.handle("POST /sessions", s.handleCreateSession)
	s.handle("GET /sessions", s.handleListSessions)
	s.handle("GET /sessions/{id}", s.handleGetSession)
	s.handle("DELETE /sessions/{id}", s.handleDeleteSession)
	s.handle("PUT /sessions/{id}/settings", s.handleUpdateSettings)
	s.handle("POST /sessions/{id}/setup", s.handleSetup)
	s.handle("POST /sessions/{id}/reset", s.handleReset)
	s.handle("POST /sessions/{id}/step", s.handleNavigate)

	// Persona stages
	s.handle("POST /sessions/{id}/plan", s.handlePlan)
	s.handle("POST /sessions/{id}/plan/feedback", s.handlePlanFeedback)
	s.handle("POST /sessions/{id}/summary", s.handleSummary)
	s.handle("POST /sessions/{id}/guidance", s.handleGuidance)
	s.handle("GET /sessions/{id}/tasks", s.handleSuggestedTasks)
	s.handle("POST /sessions/{id}/tasks/run", s.handleRunTask)
	s.handle("POST /sessions/{id}/tasks/regenerate", s.handleRegenerateTask)
	s.handle("POST /sessions/{id}/tasks/execute", s.handleExecute)
	s.handle("POST /sessions/{id}/tasks/output-insights", s.handleOutputInsights)
	s.handle("POST /sessions/{id}/tasks/plot", s.handlePlotInsights)
	s.handle("POST /sessions/{id}/review", s.handleReview)
	s.handle("POST /sessions/{id}/consult", s.handleConsult)
	s.handle("POST /sessions/{id}/report", s.handleReport)

	// Downloads
	s.handle("GET /sessions/{id}/artifacts", s.handleListArtifacts)
	s.handle("GET /sessions/{id}/artifacts/{name}", s.handleDownloadArtifact)
	s.handle("GET /sessions/{id}/bundle", s.handleBundle)
}

// handle registers an authenticated, logged route
func (s *Server) handle(pattern string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, logRequest(func(w http.ResponseWriter, r *http.Request) {
		if !checkAuth(s.config, w, r) {
			return
		}
		h(w, r)
	}))
}

// Run creates and starts the HTTP server with the given configuration
func Run(envConfig *config.EnvConfig) error {
	server, store, err := New(context.Background(), envConfig)
	if err != nil {
		return err
	}
	defer store.Close()

	serverConfig := envConfig.GetServerConfig()
	fmt.Printf("Starting server on port %d...\n", serverConfig.Port)
	fmt.Printf("Data directory: %s\n", serverConfig.DataDir)
	fmt.Printf("Session storage: %s\n", envConfig.Storage.Backend)
	if serverConfig.Enabled {
		fmt.Println("Authentication is enabled. Bearer token required.")
		fmt.Printf("Example usage: curl -X POST -H 'Authorization: Bearer %s' 'http://localhost:%d/sessions'\n",
			maskToken(serverConfig.BearerToken), serverConfig.Port)
	} else {
		fmt.Printf("Example usage: curl -X POST 'http://localhost:%d/sessions'\n", serverConfig.Port)
	}

	log.Info().Int("port", serverConfig.Port).Str("storage", envConfig.Storage.Backend).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %v", err)
	}

	return nil
}
