package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

// Generator is the generate endpoint of the plate backend.
type Generator interface {
	Generate(ctx context.Context, items []platesvc.GenerateItem) (string, error)
	ResolveURL(ref string) string
}

// Outcome tells a caller what a Generate call did.
type Outcome string

const (
	OutcomeGenerated Outcome = "generated"
	// OutcomeEmptyQueue means nothing was queued and no request was made.
	OutcomeEmptyQueue Outcome = "empty"
	// OutcomeAlreadyRunning means another generation was pending and no request was made.
	OutcomeAlreadyRunning Outcome = "busy"
)

type GenerateResult struct {
	Outcome     Outcome `json:"outcome"`
	DownloadURL string  `json:"download_url,omitempty"`
	Plates      int     `json:"plates,omitempty"`
}

// GenerateError wraps a failed generate request. The queue is never modified on failure.
type GenerateError struct {
	Err error
}

func (e *GenerateError) Error() string {
	return fmt.Sprintf("generate swap file: %v", e.Err)
}

func (e *GenerateError) Unwrap() error { return e.Err }

type GenerateCoordinator struct {
	store     *playlist.Store
	generator Generator
	logger    *slog.Logger
	running   atomic.Bool
	notify    Notifier
}

func NewGenerateCoordinator(store *playlist.Store, generator Generator, logger *slog.Logger) *GenerateCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerateCoordinator{store: store, generator: generator, logger: logger}
}

// Notify registers fn to run when a request starts and after it has finished.
func (g *GenerateCoordinator) Notify(fn Notifier) {
	g.notify = fn
}

// InProgress reports whether a generate request is outstanding.
func (g *GenerateCoordinator) InProgress() bool {
	return g.running.Load()
}

// Generate submits the current queue with at most one request outstanding.
func (g *GenerateCoordinator) Generate(ctx context.Context) (GenerateResult, error) {
	if g.store.Len() == 0 {
		return GenerateResult{Outcome: OutcomeEmptyQueue}, nil
	}
	if !g.running.CompareAndSwap(false, true) {
		g.logger.Debug("generate already running")
		return GenerateResult{Outcome: OutcomeAlreadyRunning}, nil
	}
	g.changed(ctx)
	defer func() {
		g.running.Store(false)
		g.changed(ctx)
	}()

	snap := g.store.Snapshot()
	if len(snap) == 0 {
		return GenerateResult{Outcome: OutcomeEmptyQueue}, nil
	}

	items := make([]platesvc.GenerateItem, 0, len(snap))
	for _, p := range snap {
		items = append(items, generateItem(p))
	}

	ref, err := g.generator.Generate(ctx, items)
	if err != nil {
		g.logger.Error("generate failed", "entries", len(items), "error", err)
		return GenerateResult{}, &GenerateError{Err: err}
	}

	url := g.generator.ResolveURL(ref)
	total := playlist.Aggregate(snap)
	g.logger.Info("swap file generated", "entries", len(items), "plates", total.Count, "url", url)
	return GenerateResult{Outcome: OutcomeGenerated, DownloadURL: url, Plates: total.Count}, nil
}

func (g *GenerateCoordinator) changed(ctx context.Context) {
	if g.notify != nil {
		g.notify(ctx)
	}
}

func generateItem(p playlist.Plate) platesvc.GenerateItem {
	return platesvc.GenerateItem{
		ID:         p.ID,
		Count:      p.Count,
		Filename:   p.Filename,
		PlateIndex: p.PlateIndex,
		PrintTime:  p.PrintTime,
		Weight:     p.Weight,
		ImageURL:   p.ImageURL,
	}
}
