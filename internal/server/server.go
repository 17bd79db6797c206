package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ironsheep/image-filter-server/internal/config"
	"github.com/ironsheep/image-filter-server/internal/imaging"
)

// shutdownGrace bounds how long Run waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// Server exposes the filter engine over HTTP.
type Server struct {
	cfg   *config.Config
	store *imaging.Store
}

// New creates a server for cfg with an empty image store.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:   cfg,
		store: imaging.NewStore(cfg.MaxImages),
	}
}

// Handler returns the routed, logged and CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /filters", s.handleListFilters)

	mux.HandleFunc("POST /images", s.handleCreateImage)
	mux.HandleFunc("PUT /images/{id}", s.handlePutImage)
	mux.HandleFunc("GET /images/{id}", s.handleGetImage)
	mux.HandleFunc("DELETE /images/{id}", s.handleDeleteImage)
	mux.HandleFunc("GET /images/{id}/info", s.handleInfo)
	mux.HandleFunc("POST /images/{id}/reset", s.handleReset)
	mux.HandleFunc("POST /images/{id}/filters/{name}", s.handleApplyFilter)
	mux.HandleFunc("POST /images/{id}/filters/{name}/{value}", s.handleApplyFilter)
	mux.HandleFunc("GET /images/{id}/sample", s.handleSample)
	mux.HandleFunc("GET /images/{id}/stats", s.handleStats)
	mux.HandleFunc("GET /images/{id}/crop", s.handleCrop)

	s.registerLegacy(mux)

	return logRequests(withCORS(s.cfg.CORSOrigin, mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("[startup] listening on %s", s.cfg.Addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[shutdown] draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.store.Clear()
	return nil
}

// debugf logs only when debug logging is enabled.
func (s *Server) debugf(format string, args ...any) {
	if s.cfg.Debug {
		log.Printf("[debug] "+format, args...)
	}
}
