// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/salvageiq/auctionmind/internal/pipeline"
	"github.com/salvageiq/auctionmind/internal/similar"
	"github.com/salvageiq/auctionmind/pkg/inventory"
)

// Server routes analysis requests to the pipeline.
type Server struct {
	pipeline *pipeline.Pipeline
	finder   *similar.Finder
	inv      inventory.Client
	token    string
}

// Option configures the server.
type Option func(*Server)

// WithBearerToken enables bearer-token authorization on the analysis routes.
// An empty token leaves the API open, for deployments behind their own
// gateway auth.
func WithBearerToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

// NewServer wires the HTTP layer.
func NewServer(p *pipeline.Pipeline, finder *similar.Finder, inv inventory.Client, opts ...Option) *Server {
	s := &Server{pipeline: p, finder: finder, inv: inv}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authorize)
		r.Post("/api/auction-mind/analyze", s.handleAnalyzeVIN)
		r.Post("/api/auction-mind-v2/analyze", s.handleAnalyzeLot)
		r.Get("/api/live-copart/{lotID}", s.handleLiveLot)
		r.Post("/api/comparable-sales", s.handleComparableSales)
	})

	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// authorize rejects requests without the configured bearer token. The app
// sits behind an already-authenticated frontend, so this is a shared-secret
// check, not user auth.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeFailure(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
