package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/slopscope/slopscope/pkg/domain"
	"github.com/slopscope/slopscope/pkg/scanner"
)

// Server represents HTTP server instance
type Server struct {
	config     ConfigProvider
	scanner    Scanner
	classifier Classifier
	reputation Reputation
	settings   SettingsManager
	version    string
	debug      bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Scanner runs thread scans and serves their results
type Scanner interface {
	Scan(ctx context.Context, pageURL string) (*scanner.Result, error)
	Progress() scanner.Progress
	Page(pageURL string) (string, bool)
	ResetSession()
}

// Classifier classifies standalone text and reloads on model change
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Verdict, error)
	Reset()
}

// Reputation exposes recorded user scores
type Reputation interface {
	UserStats(ctx context.Context, username string) (domain.UserStats, error)
	AllStats(ctx context.Context) ([]domain.UserStats, error)
	ClearAll(ctx context.Context) error
}

// SettingsManager reads and updates the detector settings record
type SettingsManager interface {
	Current() domain.Settings
	Save(ctx context.Context, partial []byte) (domain.Settings, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance
func New(cfg ConfigProvider, scn Scanner, classifier Classifier, reputation Reputation, settings SettingsManager, version string, debug bool) *Server {
	s := &Server{
		config:     cfg,
		scanner:    scn,
		classifier: classifier,
		reputation: reputation,
		settings:   settings,
		version:    version,
		debug:      debug,
		router:     routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("slopscope", "slopscope", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("POST /classify", s.classifyHandler)
		r.HandleFunc("POST /scan", s.scanHandler)
		r.HandleFunc("GET /progress", s.progressHandler)
		r.HandleFunc("GET /page", s.pageHandler)

		r.HandleFunc("GET /settings", s.getSettingsHandler)
		r.HandleFunc("PUT /settings", s.updateSettingsHandler)
		r.HandleFunc("POST /model", s.changeModelHandler)

		r.HandleFunc("GET /users/{username}", s.userStatsHandler)
		r.HandleFunc("GET /export", s.exportHandler)
		r.HandleFunc("DELETE /data", s.clearDataHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"model":   s.settings.Current().SelectedModel,
		"time":    time.Now().UTC(),
	}
	renderJSON(w, r, http.StatusOK, status)
}

// renderJSON sends JSON response
func renderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, r, code, map[string]string{"error": errMsg})
}
