package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"boohill-ingest/utils"
)

// Server is the HTTP front of the importer.
type Server struct {
	httpServer *http.Server
	logger     *utils.Logger
}

// NewRouter mounts the handlers under /api/v1.
func NewRouter(h *Handlers, logger *utils.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/imports", func(r chi.Router) {
			r.Post("/preview", h.HandlePreview)
			r.Post("/apply", h.HandleApply)
		})
		r.Get("/houses", h.HandleListHouses)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func NewServer(port string, h *Handlers, logger *utils.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(h, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("[api] Listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: listen: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("[api] Stopping server")
	return s.httpServer.Shutdown(ctx)
}
