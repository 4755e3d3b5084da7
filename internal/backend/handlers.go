package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeDetail(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", mbe.Limit))
			return
		}
		writeDetail(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		writeDetail(w, http.StatusBadRequest, "invalid filename")
		return
	}

	tempDir, err := os.MkdirTemp(s.opts.UploadDir, "swap_upload_")
	if err != nil {
		s.logger.Error("create upload dir", "error", err)
		writeDetail(w, http.StatusInternalServerError, "cannot store upload")
		return
	}
	src := filepath.Join(tempDir, name)
	if err := saveFile(src, file); err != nil {
		_ = os.RemoveAll(tempDir)
		s.logger.Error("save upload", "file", name, "error", err)
		writeDetail(w, http.StatusInternalServerError, "cannot store upload")
		return
	}

	records, err := parseUpload(src, s.opts.StaticDir)
	if err != nil {
		_ = os.RemoveAll(tempDir)
		s.logger.Info("upload rejected", "file", name, "error", err)
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.SavePlates(ctx, records); err != nil {
		removeThumbnails(s.opts.StaticDir, records)
		_ = os.RemoveAll(tempDir)
		s.logger.Error("register plates", "file", name, "error", err)
		writeDetail(w, http.StatusInternalServerError, "database error")
		return
	}

	plates := make([]platesvc.Descriptor, 0, len(records))
	for _, rec := range records {
		plates = append(plates, platesvc.Descriptor{
			ID:         rec.ID,
			Filename:   rec.Filename,
			PlateIndex: rec.PlateIndex,
			PrintTime:  rec.PrintTime,
			Weight:     rec.Weight,
			ImageURL:   rec.ImageURL,
		})
	}
	s.logger.Info("file uploaded", "file", name, "plates", len(plates))
	s.publishEvent(ctx, EventPlateUploaded, map[string]any{"filename": name, "plates": len(plates)})

	writeJSON(w, http.StatusOK, platesvc.UploadResponse{Plates: plates, TempID: tempDir})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req platesvc.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Playlist) == 0 {
		writeDetail(w, http.StatusBadRequest, ErrEmptyPlaylist.Error())
		return
	}

	ids := make([]string, 0, len(req.Playlist))
	for _, item := range req.Playlist {
		ids = append(ids, item.ID)
	}
	known, err := s.registry.LookupPlates(ctx, ids)
	if err != nil {
		s.logger.Error("lookup plates", "error", err)
		writeDetail(w, http.StatusInternalServerError, "database error")
		return
	}

	entries := make([]SwapEntry, 0, len(req.Playlist))
	for _, item := range req.Playlist {
		rec, ok := known[item.ID]
		if !ok {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("%v: %s", ErrUnknownPlate, item.ID))
			return
		}
		if item.Count < 1 {
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("invalid count %d for plate %s", item.Count, item.ID))
			return
		}
		entries = append(entries, SwapEntry{SourcePath: rec.SourcePath, PlateIndex: rec.PlateIndex, Count: item.Count})
	}

	if err := os.MkdirAll(s.opts.StaticDir, 0o755); err != nil {
		s.logger.Error("create static dir", "error", err)
		writeDetail(w, http.StatusInternalServerError, "cannot write output")
		return
	}
	outName := fmt.Sprintf("swap_playlist_%s.3mf", shortID())
	if err := BuildSwapFile(entries, filepath.Join(s.opts.StaticDir, outName)); err != nil {
		s.logger.Error("build swap file", "entries", len(entries), "error", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	url := "/static/" + outName
	s.logger.Info("swap file generated", "entries", len(entries), "url", url)
	s.publishEvent(ctx, EventSwapGenerated, map[string]any{"download_url": url, "entries": len(entries)})

	writeJSON(w, http.StatusOK, platesvc.GenerateResponse{DownloadURL: url})
}

func saveFile(dst string, src io.Reader) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
