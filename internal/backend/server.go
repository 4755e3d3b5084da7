// Package backend is a reference plate backend: it reads plates out of sliced 3MF uploads
// and assembles queued plates into a single swap-plate 3MF.
package backend

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

const (
	EventPlateUploaded = "plate.uploaded"
	EventSwapGenerated = "swap.generated"
)

// Options locate the backend's working directories.
type Options struct {
	StaticDir string
	// UploadDir holds one temp directory per upload. Empty means os.TempDir.
	UploadDir      string
	MaxUploadBytes int64
}

type Server struct {
	registry Registry
	rdb      *redis.Client
	opts     Options
	logger   *slog.Logger
}

// NewServer builds the backend. rdb may be nil.
func NewServer(registry Registry, rdb *redis.Client, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 256 << 20
	}
	return &Server{registry: registry, rdb: rdb, opts: opts, logger: logger}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/api/upload", s.handleUpload)
	r.Post("/api/generate", s.handleGenerate)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))))

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "swaplist backend is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "swaplist-backend",
	})
}
