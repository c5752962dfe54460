package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/procgate/internal/lifecycle"
	"github.com/seantiz/procgate/internal/plugin"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Options configures the HTTP surface.
type Options struct {
	Title    string
	Version  string
	RootPath string
	// ExternalRouters are plugin locators mounted next to the built-in routes.
	ExternalRouters []string
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router  *chi.Mux
	svc     *lifecycle.Service
	plugins *plugin.Registry
	opts    Options
	logger  *slog.Logger
	addr    string
}

// NewServer creates and configures a new HTTP server. External routers are
// resolved here; an unknown or malformed locator fails construction.
func NewServer(addr string, svc *lifecycle.Service, reg *plugin.Registry, opts Options, logger *slog.Logger) (*Server, error) {
	srv := &Server{
		router:  chi.NewRouter(),
		svc:     svc,
		plugins: reg,
		opts:    opts,
		logger:  logger,
		addr:    addr,
	}

	components, err := reg.Resolve(opts.ExternalRouters)
	if err != nil {
		return nil, fmt.Errorf("resolve external routers: %w", err)
	}
	for _, c := range components {
		if !strings.HasPrefix(c.Router.Prefix, "/") {
			return nil, fmt.Errorf("component %q: prefix %q must start with /", c.Locator, c.Router.Prefix)
		}
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RootPath != "" && opts.RootPath != "/" {
		srv.router.Route(strings.TrimSuffix(opts.RootPath, "/"), func(r chi.Router) {
			srv.routes(r, components)
		})
	} else {
		srv.routes(srv.router, components)
	}

	return srv, nil
}

// routes registers all HTTP routes on r.
func (s *Server) routes(r chi.Router, components []plugin.Component) {
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", metricsHandler())

	r.Get("/v1/plugins", s.handleListPlugins)

	r.Route("/v1/processes", func(r chi.Router) {
		r.Post("/", s.handleCreateProcess)
		r.Get("/{id}", s.handleGetProcess)
		r.Put("/{id}/input", s.handleUploadInput)
		r.Post("/{id}/enqueue", s.handleEnqueueProcess)
		r.Post("/{id}/kill", s.handleKillProcess)
		r.Delete("/{id}", s.handleDeleteProcess)
		r.Get("/{id}/events", s.handleStreamEvents)
	})

	for _, c := range components {
		s.logger.Info("mounting external router", "locator", c.Locator, "kind", c.Kind, "prefix", c.Router.Prefix)
		r.Mount(c.Router.Prefix, c.Router.Handler)
	}
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
