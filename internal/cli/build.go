package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/config"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/coordinator"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

type buildOptions struct {
	planPath   string
	backendURL string
	dryRun     bool
}

func newBuildCommand(_ *Options) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Upload the files of a plan and generate its swap file",
		Long:  "build uploads every file named in a YAML plan, keeps the selected plates in plan order with their copy counts, prints the queue and asks the backend for the combined swap file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			plan, err := LoadPlan(opts.planPath)
			if err != nil {
				return err
			}
			cfg, err := config.LoadSession()
			if err != nil {
				return err
			}

			baseURL := cfg.BackendURL
			switch {
			case opts.backendURL != "":
				baseURL = opts.backendURL
			case plan.Backend != "":
				baseURL = plan.Backend
			}

			client := platesvc.NewClient(baseURL, platesvc.Options{
				UploadTimeout:   cfg.UploadTimeout,
				GenerateTimeout: cfg.GenerateTimeout,
			})
			_, err = runBuild(cmd.Context(), plan, client, opts.dryRun, cmd.OutOrStdout(), logger)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.planPath, "file", "f", "swaplist.yaml", "Path to the plan file")
	cmd.Flags().StringVar(&opts.backendURL, "backend-url", "", "Plate backend base URL (overrides the plan and SWAPLIST_BACKEND_URL)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Upload and print the queue without generating")

	return cmd
}

type plateBackend interface {
	coordinator.Uploader
	coordinator.Generator
}

// recordingUploader keeps the descriptors of every successful call in call order.
type recordingUploader struct {
	coordinator.Uploader
	calls [][]platesvc.Descriptor
}

func (r *recordingUploader) Upload(ctx context.Context, filename string, content io.Reader) ([]platesvc.Descriptor, error) {
	plates, err := r.Uploader.Upload(ctx, filename, content)
	if err == nil {
		r.calls = append(r.calls, plates)
	}
	return plates, err
}

type selection struct {
	id    string
	count int
}

// runBuild returns the download URL of the generated file, or "" on a dry run.
func runBuild(ctx context.Context, plan *Plan, pb plateBackend, dryRun bool, out io.Writer, logger *slog.Logger) (string, error) {
	store := playlist.NewStore()
	rec := &recordingUploader{Uploader: pb}

	paths := plan.files()
	files := make([]coordinator.File, 0, len(paths))
	for _, p := range paths {
		files = append(files, coordinator.LocalFile(p))
	}

	res, err := coordinator.NewUploadCoordinator(store, rec, logger).UploadBatch(ctx, files)
	if err != nil {
		return "", err
	}
	printSuccess(out, fmt.Sprintf("Uploaded %d files, %d plates", res.Submitted, res.Appended))

	uploaded := make(map[string][]platesvc.Descriptor, len(paths))
	for i, p := range paths {
		uploaded[p] = rec.calls[i]
	}

	wanted, err := selectPlates(plan, uploaded)
	if err != nil {
		return "", err
	}
	arrangeQueue(store, wanted)

	printQueue(out, store.Snapshot())

	if dryRun {
		printWarning(out, "Dry run, no swap file generated")
		return "", nil
	}

	gen, err := coordinator.NewGenerateCoordinator(store, pb, logger).Generate(ctx)
	if err != nil {
		return "", err
	}
	if gen.Outcome != coordinator.OutcomeGenerated {
		return "", fmt.Errorf("nothing generated: %s", gen.Outcome)
	}

	_, _ = fmt.Fprintln(out)
	printSuccess(out, fmt.Sprintf("Swap file with %d plates ready", gen.Plates))
	printLabelValue(out, "Download", gen.DownloadURL)
	return gen.DownloadURL, nil
}

func selectPlates(plan *Plan, uploaded map[string][]platesvc.Descriptor) ([]selection, error) {
	var wanted []selection
	used := make(map[string]struct{})

	for _, item := range plan.Items {
		file := filepath.Clean(item.File)
		descs := uploaded[file]

		picks := descs
		if len(item.Plates) > 0 {
			picks = make([]platesvc.Descriptor, 0, len(item.Plates))
			for _, idx := range item.Plates {
				d, ok := findPlate(descs, idx)
				if !ok {
					return nil, fmt.Errorf("%s has no plate %d", filepath.Base(file), idx)
				}
				picks = append(picks, d)
			}
		}
		if len(picks) == 0 {
			return nil, fmt.Errorf("%s has no plates", filepath.Base(file))
		}

		count := item.Count
		if count == 0 {
			count = 1
		}
		for _, d := range picks {
			if d.ID == "" {
				return nil, fmt.Errorf("plate %d of %s has no id", d.PlateIndex, filepath.Base(file))
			}
			if _, dup := used[d.ID]; dup {
				return nil, fmt.Errorf("plate %d of %s is listed twice", d.PlateIndex, filepath.Base(file))
			}
			used[d.ID] = struct{}{}
			wanted = append(wanted, selection{id: d.ID, count: count})
		}
	}

	if len(wanted) == 0 {
		return nil, errors.New("plan selects no plates")
	}
	return wanted, nil
}

func findPlate(descs []platesvc.Descriptor, index int) (platesvc.Descriptor, bool) {
	for _, d := range descs {
		if d.PlateIndex == index {
			return d, true
		}
	}
	return platesvc.Descriptor{}, false
}

// arrangeQueue drops unselected plates, moves the rest into the wanted order and sets
// their counts.
func arrangeQueue(store *playlist.Store, wanted []selection) {
	keep := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		keep[w.id] = struct{}{}
	}
	for _, p := range store.Snapshot() {
		if _, ok := keep[p.ID]; !ok {
			store.Remove(p.ID)
		}
	}

	for i, w := range wanted {
		current := store.Snapshot()
		if current[i].ID != w.id {
			store.Reorder(w.id, current[i].ID)
		}
		if w.count > 1 {
			store.SetCount(w.id, w.count)
		}
	}
}
