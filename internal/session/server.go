// Package session serves one playlist over HTTP: the queue snapshot and totals, the
// mutations a UI performs on it, upload batches, generation and a websocket feed.
package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/coordinator"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

// Publisher delivers events to connected UIs.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

const (
	EventPlaylistUpdated = "playlist.updated"
	EventSwapGenerated   = "swap.generated"
	EventUploadFailed    = "upload.failed"
	EventGenerateFailed  = "generate.failed"
)

const (
	defaultMaxUploadMemory = 32 << 20
	defaultMaxUploadBytes  = 256 << 20
)

type Server struct {
	store     *playlist.Store
	uploads   *coordinator.UploadCoordinator
	generates *coordinator.GenerateCoordinator
	events    Publisher
	ws        http.Handler
	logger    *slog.Logger

	maxUploadBytes int64
}

// NewServer builds the session API. events and ws may be nil.
func NewServer(
	store *playlist.Store,
	uploads *coordinator.UploadCoordinator,
	generates *coordinator.GenerateCoordinator,
	events Publisher,
	ws http.Handler,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:          store,
		uploads:        uploads,
		generates:      generates,
		events:         events,
		ws:             ws,
		logger:         logger,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	// the in-progress flags reach websocket clients through these
	if uploads != nil {
		uploads.Notify(s.publishState)
	}
	if generates != nil {
		generates.Notify(s.publishState)
	}
	return s
}

// SetMaxUploadBytes caps the size of an upload request body. Non-positive values keep
// the current limit.
func (s *Server) SetMaxUploadBytes(n int64) {
	if n > 0 {
		s.maxUploadBytes = n
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	if s.ws != nil {
		r.Handle("/ws", s.ws)
	}

	r.Route("/api/playlist", func(r chi.Router) {
		r.Get("/", s.handleGetPlaylist)
		r.Delete("/", s.handleClear)
		r.Post("/upload", s.handleUpload)
		r.Post("/reorder", s.handleReorder)
		r.Post("/generate", s.handleGenerate)
		r.Patch("/plates/{id}", s.handleSetCount)
		r.Delete("/plates/{id}", s.handleRemove)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "swaplist-session",
	})
}
