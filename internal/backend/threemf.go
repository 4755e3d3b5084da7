package backend

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const (
	metadataDir    = "Metadata/"
	sliceInfoEntry = metadataDir + "slice_info.config"
)

var thumbnailPattern = regexp.MustCompile(`^plate_(\d+)\.png$`)

// plateStats are the sliced statistics of one plate.
type plateStats struct {
	PrintTime int
	Weight    float64
}

// sourcePlate is one plate found in an uploaded 3MF archive.
type sourcePlate struct {
	Index     int
	Stats     plateStats
	thumbnail *zip.File
}

// openArchive opens a 3MF file. Any file that is not a zip archive is rejected.
func openArchive(p string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid 3mf archive: %w", filepath.Base(p), err)
	}
	return zr, nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// readSliceStats maps plate index to its statistics from Metadata/slice_info.config.
// A missing or malformed file yields an empty map.
func readSliceStats(zr *zip.Reader) (map[int]plateStats, error) {
	out := make(map[int]plateStats)
	f := findEntry(zr, sliceInfoEntry)
	if f == nil {
		return out, nil
	}
	data, err := readEntry(f)
	if err != nil {
		return nil, fmt.Errorf("read slice info: %w", err)
	}
	root, err := parseXML(data)
	if err != nil {
		return out, nil
	}
	for _, plate := range root.children("plate") {
		idx := 1
		if v, ok := plate.meta("index"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				idx = n
			}
		}
		var st plateStats
		if v, ok := plate.meta("weight"); ok {
			st.Weight, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
		}
		if v, ok := plate.meta("prediction"); ok {
			f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
			st.PrintTime = int(f)
		}
		out[idx] = st
	}
	return out, nil
}

// listPlates returns the plates of an archive, one per Metadata/plate_N.png thumbnail,
// ordered by plate index.
func listPlates(zr *zip.Reader) ([]sourcePlate, error) {
	stats, err := readSliceStats(zr)
	if err != nil {
		return nil, err
	}

	var plates []sourcePlate
	for _, f := range zr.File {
		dir, name := path.Split(f.Name)
		if dir != metadataDir {
			continue
		}
		m := thumbnailPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		plates = append(plates, sourcePlate{Index: idx, Stats: stats[idx], thumbnail: f})
	}
	sort.Slice(plates, func(i, j int) bool { return plates[i].Index < plates[j].Index })
	return plates, nil
}

// parseUpload reads the plates of the archive at src, publishes their thumbnails into
// staticDir and returns one record per plate with a fresh id.
func parseUpload(src, staticDir string) ([]PlateRecord, error) {
	zr, err := openArchive(src)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	plates, err := listPlates(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if len(plates) > 0 {
		if err := os.MkdirAll(staticDir, 0o755); err != nil {
			return nil, fmt.Errorf("create static dir: %w", err)
		}
	}

	records := make([]PlateRecord, 0, len(plates))
	for _, p := range plates {
		thumbName := fmt.Sprintf("thumb_%s_%s", shortID(), path.Base(p.thumbnail.Name))
		if err := extractTo(p.thumbnail, filepath.Join(staticDir, thumbName)); err != nil {
			removeThumbnails(staticDir, records)
			_ = os.Remove(filepath.Join(staticDir, thumbName))
			return nil, fmt.Errorf("publish thumbnail of plate %d: %w", p.Index, err)
		}
		records = append(records, PlateRecord{
			ID:         uuid.NewString(),
			Filename:   filepath.Base(src),
			SourcePath: src,
			PlateIndex: p.Index,
			PrintTime:  p.Stats.PrintTime,
			Weight:     p.Stats.Weight,
			ImageURL:   "/static/" + thumbName,
		})
	}
	return records, nil
}

// removeThumbnails deletes the published thumbnails of records.
func removeThumbnails(staticDir string, records []PlateRecord) {
	for _, rec := range records {
		if rec.ImageURL == "" {
			continue
		}
		_ = os.Remove(filepath.Join(staticDir, path.Base(rec.ImageURL)))
	}
}

func extractTo(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// shortID is the first eight hex digits of a random UUID.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
