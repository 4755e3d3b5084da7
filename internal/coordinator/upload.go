// Package coordinator drives the plate backend on behalf of a playlist store: upload
// batches that feed the queue and generation requests that consume it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

// Uploader is the upload endpoint of the plate backend.
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) ([]platesvc.Descriptor, error)
}

// File is one user-selected file of a batch.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// LocalFile reads the file at path when the batch reaches it.
func LocalFile(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FormFile wraps a file received in a multipart request.
func FormFile(fh *multipart.FileHeader) File {
	return File{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

var errNoContent = errors.New("file has no content")

// UploadError reports the file that stopped a batch.
type UploadError struct {
	File  string
	Index int
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q (file %d): %v", e.File, e.Index+1, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// UploadResult summarizes one batch.
type UploadResult struct {
	// Submitted is the number of files that received a successful response.
	Submitted int `json:"submitted"`
	// Appended is the number of plates added to the store.
	Appended int `json:"appended"`
}

// Notifier is told when an in-progress flag rises or falls. It runs on the caller's
// goroutine after the flag has changed.
type Notifier func(ctx context.Context)

type UploadCoordinator struct {
	store    *playlist.Store
	uploader Uploader
	logger   *slog.Logger
	inFlight atomic.Int32
	notify   Notifier
}

func NewUploadCoordinator(store *playlist.Store, uploader Uploader, logger *slog.Logger) *UploadCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadCoordinator{store: store, uploader: uploader, logger: logger}
}

// Notify registers fn to run when a batch starts and after it has ended.
func (u *UploadCoordinator) Notify(fn Notifier) {
	u.notify = fn
}

// InProgress reports whether any batch is running.
func (u *UploadCoordinator) InProgress() bool {
	return u.inFlight.Load() > 0
}

// UploadBatch submits files one at a time, in order, waiting for each response before the
// next request. The plates of all successful files are appended to the store in a single
// call once the batch ends. The first failure stops the batch: plates collected so far are
// still appended and the failure is returned as an *UploadError.
func (u *UploadCoordinator) UploadBatch(ctx context.Context, files []File) (UploadResult, error) {
	u.inFlight.Add(1)
	u.changed(ctx)
	defer func() {
		u.inFlight.Add(-1)
		u.changed(ctx)
	}()

	var (
		collected []playlist.Plate
		res       UploadResult
		batchErr  error
	)
	for i, f := range files {
		plates, err := u.uploadOne(ctx, f)
		if err != nil {
			batchErr = &UploadError{File: f.Name, Index: i, Err: err}
			break
		}
		res.Submitted++
		for _, d := range plates {
			collected = append(collected, plateFromDescriptor(d))
		}
		u.logger.Debug("file uploaded", "file", f.Name, "plates", len(plates))
	}

	res.Appended = u.store.Append(collected...)
	if skipped := len(collected) - res.Appended; skipped > 0 {
		u.logger.Warn("duplicate plate ids skipped", "count", skipped)
	}

	if batchErr != nil {
		u.logger.Error("upload batch failed", "files", len(files), "submitted", res.Submitted, "appended", res.Appended, "error", batchErr)
		return res, batchErr
	}
	u.logger.Info("upload batch done", "files", len(files), "appended", res.Appended)
	return res, nil
}

func (u *UploadCoordinator) changed(ctx context.Context) {
	if u.notify != nil {
		u.notify(ctx)
	}
}

func (u *UploadCoordinator) uploadOne(ctx context.Context, f File) ([]platesvc.Descriptor, error) {
	if f.Open == nil {
		return nil, errNoContent
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()
	return u.uploader.Upload(ctx, f.Name, rc)
}

func plateFromDescriptor(d platesvc.Descriptor) playlist.Plate {
	return playlist.Plate{
		ID:         d.ID,
		Filename:   d.Filename,
		PlateIndex: d.PlateIndex,
		PrintTime:  d.PrintTime,
		Weight:     d.Weight,
		ImageURL:   d.ImageURL,
		Count:      1,
	}
}
