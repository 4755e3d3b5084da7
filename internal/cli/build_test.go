package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/logging"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
)

// fakeBackend answers uploads with a fixed number of plates per filename.
type fakeBackend struct {
	mu        sync.Mutex
	plates    map[string]int
	uploaded  []string
	generated []platesvc.GenerateItem
	failOn    string
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		require.NoError(t, err)

		f.mu.Lock()
		f.uploaded = append(f.uploaded, header.Filename)
		f.mu.Unlock()

		if header.Filename == f.failOn {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"detail": "not a valid 3mf archive"}`)
			return
		}

		resp := platesvc.UploadResponse{Plates: []platesvc.Descriptor{}}
		for i := 1; i <= f.plates[header.Filename]; i++ {
			resp.Plates = append(resp.Plates, platesvc.Descriptor{
				ID:         fmt.Sprintf("%s#%d", header.Filename, i),
				Filename:   header.Filename,
				PlateIndex: i,
				PrintTime:  600 * i,
				Weight:     2.5,
			})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req platesvc.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		f.mu.Lock()
		f.generated = req.Playlist
		f.mu.Unlock()

		_, _ = io.WriteString(w, `{"download_url": "/static/swap_playlist_test.3mf"}`)
	})
	return mux
}

func projectFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("zip:"+n), 0o644))
	}
	return dir
}

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func generatedOrder(items []platesvc.GenerateItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, fmt.Sprintf("%s x%d", it.ID, it.Count))
	}
	return out
}

func TestRunBuild_SelectsOrdersAndGenerates(t *testing.T) {
	noColor(t)
	fb := &fakeBackend{plates: map[string]int{"bracket.3mf": 3, "lid.3mf": 1}}
	srv := httptest.NewServer(fb.handler(t))
	defer srv.Close()

	dir := projectFiles(t, "bracket.3mf", "lid.3mf")
	plan := &Plan{Items: []PlanItem{
		{File: filepath.Join(dir, "lid.3mf")},
		{File: filepath.Join(dir, "bracket.3mf"), Plates: []int{3, 1}, Count: 2},
	}}

	var out bytes.Buffer
	url, err := runBuild(context.Background(), plan, platesvc.NewClient(srv.URL, platesvc.Options{}), false, &out, logging.Discard())

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/static/swap_playlist_test.3mf", url)
	assert.Equal(t, []string{"lid.3mf", "bracket.3mf"}, fb.uploaded)
	assert.Equal(t, []string{"lid.3mf#1 x1", "bracket.3mf#3 x2", "bracket.3mf#1 x2"}, generatedOrder(fb.generated))

	text := out.String()
	assert.Contains(t, text, "Uploaded 2 files, 4 plates")
	assert.Contains(t, text, "▸ Swap queue")
	assert.Contains(t, text, "Total time: 1h 30m")
	assert.Contains(t, text, "Total weight: 12.50g")
	assert.Contains(t, text, "Plates: 5")
	assert.Contains(t, text, "Download: "+url)
	assert.NotContains(t, text, "plate 2 ")
}

func TestRunBuild_DryRunSkipsGenerate(t *testing.T) {
	noColor(t)
	fb := &fakeBackend{plates: map[string]int{"a.3mf": 2}}
	srv := httptest.NewServer(fb.handler(t))
	defer srv.Close()

	dir := projectFiles(t, "a.3mf")
	plan := &Plan{Items: []PlanItem{{File: filepath.Join(dir, "a.3mf")}}}

	var out bytes.Buffer
	url, err := runBuild(context.Background(), plan, platesvc.NewClient(srv.URL, platesvc.Options{}), true, &out, logging.Discard())

	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Nil(t, fb.generated)
	assert.Contains(t, out.String(), "Dry run, no swap file generated")
}

func TestRunBuild_UploadFailureStops(t *testing.T) {
	fb := &fakeBackend{plates: map[string]int{"a.3mf": 1}, failOn: "bad.3mf"}
	srv := httptest.NewServer(fb.handler(t))
	defer srv.Close()

	dir := projectFiles(t, "a.3mf", "bad.3mf", "c.3mf")
	plan := &Plan{Items: []PlanItem{
		{File: filepath.Join(dir, "a.3mf")},
		{File: filepath.Join(dir, "bad.3mf")},
		{File: filepath.Join(dir, "c.3mf")},
	}}

	_, err := runBuild(context.Background(), plan, platesvc.NewClient(srv.URL, platesvc.Options{}), false, io.Discard, logging.Discard())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.3mf")
	assert.Contains(t, err.Error(), "not a valid 3mf archive")
	assert.Equal(t, []string{"a.3mf", "bad.3mf"}, fb.uploaded)
	assert.Nil(t, fb.generated)
}

func TestRunBuild_SelectionErrors(t *testing.T) {
	tests := []struct {
		name    string
		plates  map[string]int
		items   func(dir string) []PlanItem
		wantErr string
	}{
		{
			name:   "missing plate",
			plates: map[string]int{"a.3mf": 1},
			items: func(dir string) []PlanItem {
				return []PlanItem{{File: filepath.Join(dir, "a.3mf"), Plates: []int{4}}}
			},
			wantErr: "a.3mf has no plate 4",
		},
		{
			name:   "file without plates",
			plates: map[string]int{},
			items: func(dir string) []PlanItem {
				return []PlanItem{{File: filepath.Join(dir, "a.3mf")}}
			},
			wantErr: "a.3mf has no plates",
		},
		{
			name:   "plate chosen twice through the whole file",
			plates: map[string]int{"a.3mf": 2},
			items: func(dir string) []PlanItem {
				return []PlanItem{
					{File: filepath.Join(dir, "a.3mf"), Plates: []int{2}},
					{File: filepath.Join(dir, "a.3mf")},
				}
			},
			wantErr: "plate 2 of a.3mf is listed twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{plates: tt.plates}
			srv := httptest.NewServer(fb.handler(t))
			defer srv.Close()

			plan := &Plan{Items: tt.items(projectFiles(t, "a.3mf"))}
			_, err := runBuild(context.Background(), plan, platesvc.NewClient(srv.URL, platesvc.Options{}), false, io.Discard, logging.Discard())

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, fb.generated)
		})
	}
}

func TestExecute_BuildCommand(t *testing.T) {
	noColor(t)
	t.Setenv("REDIS_URL", "")
	fb := &fakeBackend{plates: map[string]int{"a.3mf": 1}}
	srv := httptest.NewServer(fb.handler(t))
	defer srv.Close()

	dir := projectFiles(t, "a.3mf")
	planPath := writePlan(t, dir, "items:\n  - file: a.3mf\n    count: 4\n")

	err := Execute([]string{"build", "-f", planPath, "--backend-url", srv.URL, "--log-level", "error"}, logging.Discard())

	require.NoError(t, err)
	assert.Equal(t, []string{"a.3mf#1 x4"}, generatedOrder(fb.generated))
}
