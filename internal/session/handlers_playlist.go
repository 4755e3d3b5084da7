package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/coordinator"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

// mutationResponse reports whether a request changed the queue.
type mutationResponse struct {
	Changed bool  `json:"changed"`
	State   State `json:"state"`
}

type uploadResponse struct {
	Result coordinator.UploadResult `json:"result"`
	State  State                    `json:"state"`
	Error  string                   `json:"error,omitempty"`
	File   string                   `json:"file,omitempty"`
}

type generateResponse struct {
	Outcome     coordinator.Outcome `json:"outcome"`
	DownloadURL string              `json:"download_url,omitempty"`
	Plates      int                 `json:"plates,omitempty"`
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.State())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(defaultMaxUploadMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", mbe.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files in field \"file\"")
		return
	}

	files := make([]coordinator.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, coordinator.FormFile(fh))
	}

	res, err := s.uploads.UploadBatch(ctx, files)
	if err != nil {
		resp := uploadResponse{Result: res, State: s.State(), Error: err.Error()}
		var ue *coordinator.UploadError
		if errors.As(err, &ue) {
			resp.File = ue.File
		}
		s.publishEvent(ctx, EventUploadFailed, map[string]any{"file": resp.File, "error": resp.Error})
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{Result: res, State: s.State()})
}

func (s *Server) handleSetCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	var body struct {
		Count json.RawMessage `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	count, err := decodeCount(body.Count)
	if err != nil {
		// rejected input keeps the stored value
		s.logger.Debug("count rejected", "id", id, "input", string(body.Count), "error", err)
		writeJSON(w, http.StatusOK, mutationResponse{State: s.State()})
		return
	}

	changed := s.store.SetCount(id, count)
	if changed {
		s.publishState(ctx)
	}
	writeJSON(w, http.StatusOK, mutationResponse{Changed: changed, State: s.State()})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	changed := s.store.Remove(chi.URLParam(r, "id"))
	if changed {
		s.publishState(ctx)
	}
	writeJSON(w, http.StatusOK, mutationResponse{Changed: changed, State: s.State()})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		SourceID string `json:"source_id"`
		TargetID string `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	body.SourceID = strings.TrimSpace(body.SourceID)
	body.TargetID = strings.TrimSpace(body.TargetID)
	if body.SourceID == "" || body.TargetID == "" {
		writeError(w, http.StatusBadRequest, "source_id and target_id are required")
		return
	}

	changed := s.store.Reorder(body.SourceID, body.TargetID)
	if changed {
		s.publishState(ctx)
	} else {
		s.logger.Debug("reorder ignored", "source", body.SourceID, "target", body.TargetID)
	}
	writeJSON(w, http.StatusOK, mutationResponse{Changed: changed, State: s.State()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	changed := s.store.Clear()
	if changed {
		s.publishState(ctx)
	}
	writeJSON(w, http.StatusOK, mutationResponse{Changed: changed, State: s.State()})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	res, err := s.generates.Generate(ctx)
	if err != nil {
		s.publishEvent(ctx, EventGenerateFailed, map[string]any{"error": err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if res.Outcome == coordinator.OutcomeGenerated {
		s.publishEvent(ctx, EventSwapGenerated, map[string]any{
			"download_url": res.DownloadURL,
			"plates":       res.Plates,
		})
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Outcome:     res.Outcome,
		DownloadURL: res.DownloadURL,
		Plates:      res.Plates,
	})
}

// decodeCount accepts a JSON number or a numeric string.
func decodeCount(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, playlist.ErrInvalidCount
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, playlist.ErrInvalidCount
	}
	switch n := v.(type) {
	case float64:
		if n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
			return 0, playlist.ErrInvalidCount
		}
		return int(n), nil
	case string:
		return playlist.ParseCount(n)
	default:
		return 0, playlist.ErrInvalidCount
	}
}
