package backend

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// SwapEntry is one queued plate to print Count times.
type SwapEntry struct {
	SourcePath string
	PlateIndex int
	Count      int
}

var ErrEmptyPlaylist = errors.New("playlist is empty")

const swapGCodeEntry = metadataDir + "plate_1.gcode"

// model_settings.config keys the single swap plate must not carry.
var droppedPlateKeys = map[string]bool{
	"filament_map_mode":       true,
	"filament_maps":           true,
	"thumbnail_no_light_file": true,
	"locked":                  true,
}

// buildSwapGCode concatenates the init block and, per copy, the plate gcode followed by
// the swap sequence. Every block ends with a newline.
func buildSwapGCode(plates [][]byte, counts []int) []byte {
	var buf bytes.Buffer
	buf.WriteString(swapInitGCode)
	for i, g := range plates {
		for c := 0; c < counts[i]; c++ {
			buf.Write(g)
			if len(g) == 0 || g[len(g)-1] != '\n' {
				buf.WriteByte('\n')
			}
			buf.WriteString(swapSequenceGCode)
		}
	}
	return buf.Bytes()
}

func md5Hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// BuildSwapFile writes a 3MF archive at out that prints entries in order. The first
// entry's archive provides the models and project settings; its Metadata folder is
// replaced by the swap plate.
func BuildSwapFile(entries []SwapEntry, out string) error {
	if len(entries) == 0 {
		return ErrEmptyPlaylist
	}

	sources := make(map[string]*zip.ReadCloser)
	defer func() {
		for _, zr := range sources {
			_ = zr.Close()
		}
	}()
	for _, e := range entries {
		if e.Count < 1 {
			return fmt.Errorf("plate %d of %s: count must be positive", e.PlateIndex, filepath.Base(e.SourcePath))
		}
		if _, ok := sources[e.SourcePath]; ok {
			continue
		}
		zr, err := openArchive(e.SourcePath)
		if err != nil {
			return err
		}
		sources[e.SourcePath] = zr
	}

	gcodes := make([][]byte, 0, len(entries))
	counts := make([]int, 0, len(entries))
	for _, e := range entries {
		name := fmt.Sprintf("%splate_%d.gcode", metadataDir, e.PlateIndex)
		f := findEntry(&sources[e.SourcePath].Reader, name)
		if f == nil {
			return fmt.Errorf("plate %d of %s has no sliced gcode", e.PlateIndex, filepath.Base(e.SourcePath))
		}
		g, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		gcodes = append(gcodes, g)
		counts = append(counts, e.Count)
	}
	gcode := buildSwapGCode(gcodes, counts)

	meta, err := collectAssets(entries, sources)
	if err != nil {
		return err
	}
	meta[swapGCodeEntry] = gcode
	meta[swapGCodeEntry+".md5"] = []byte(md5Hex(gcode))

	if ms, ok := meta[metadataDir+"model_settings.config"]; ok {
		updated, err := rewriteModelSettings(ms)
		if err != nil {
			return fmt.Errorf("rewrite model settings: %w", err)
		}
		meta[metadataDir+"model_settings.config"] = updated
	}

	sliceInfo, err := mergeSliceInfo(entries, sources)
	if err != nil {
		return err
	}
	if sliceInfo != nil {
		meta[sliceInfoEntry] = sliceInfo
	}

	return writeArchive(out, &sources[entries[0].SourcePath].Reader, meta)
}

// collectAssets picks the Metadata files the swap plate keeps: per entry the plate images
// and sidecars, pick and top renders and model settings, then the project and filament
// settings of the first source. The first file seen for a name wins.
func collectAssets(entries []SwapEntry, sources map[string]*zip.ReadCloser) (map[string][]byte, error) {
	meta := make(map[string][]byte)
	add := func(f *zip.File) error {
		if _, ok := meta[f.Name]; ok {
			return nil
		}
		b, err := readEntry(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
		meta[f.Name] = b
		return nil
	}

	for _, e := range entries {
		root := fmt.Sprintf("plate_%d", e.PlateIndex)
		for _, f := range sources[e.SourcePath].File {
			dir, name := path.Split(f.Name)
			if dir != metadataDir || strings.HasSuffix(name, ".gcode") || name == "slice_info.config" {
				continue
			}
			if strings.HasPrefix(name, root+".") || strings.HasPrefix(name, root+"_") ||
				strings.HasPrefix(name, "pick_") || strings.HasPrefix(name, "top_") ||
				strings.HasPrefix(name, "model_settings") {
				if err := add(f); err != nil {
					return nil, err
				}
			}
		}
	}

	for _, f := range sources[entries[0].SourcePath].File {
		dir, name := path.Split(f.Name)
		if dir != metadataDir {
			continue
		}
		if name == "project_settings.config" || strings.HasPrefix(name, "filament_settings") {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}
	return meta, nil
}

// rewriteModelSettings keeps only the first plate, names it SWAP and drops the keys listed
// in droppedPlateKeys.
func rewriteModelSettings(data []byte) ([]byte, error) {
	root, err := parseXML(data)
	if err != nil {
		return nil, err
	}
	root.keepFirst("plate")
	if plate := root.first("plate"); plate != nil {
		plate.setMeta("plater_name", "SWAP")
		plate.removeWhere(func(c *xmlNode) bool {
			return c.XMLName.Local == "metadata" && droppedPlateKeys[c.attr("key")]
		})
	}
	return root.encode()
}

type filamentUsage struct {
	id, typ, color, tray string
	usedM, usedG         float64
}

// mergeSliceInfo builds the slice_info.config of the swap plate. Header statistics come
// from plate 1 when the playlist contains it and from the first plate otherwise. Filament
// usage is summed over every copy. It returns nil when no source has a slice info.
func mergeSliceInfo(entries []SwapEntry, sources map[string]*zip.ReadCloser) ([]byte, error) {
	var (
		base       *xmlNode
		basePlate  *xmlNode
		prediction string
		weight     float64
		haveStats  bool
		fromFirst  bool
		filaments  = map[string]*filamentUsage{}
	)

	for _, e := range entries {
		f := findEntry(&sources[e.SourcePath].Reader, sliceInfoEntry)
		if f == nil {
			continue
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("read slice info of %s: %w", filepath.Base(e.SourcePath), err)
		}
		root, err := parseXML(data)
		if err != nil {
			continue
		}

		if base == nil {
			if b, err := parseXML(data); err == nil && b.first("plate") != nil {
				base = b
				base.keepFirst("plate")
				basePlate = base.first("plate")
				basePlate.removeWhere(func(c *xmlNode) bool { return c.XMLName.Local == "filament" })
				if _, ok := basePlate.meta("index"); ok {
					basePlate.setMeta("index", "1")
				}
			}
		}

		want := strconv.Itoa(e.PlateIndex)
		for _, plate := range root.children("plate") {
			if idx, ok := plate.meta("index"); ok && idx != want {
				continue
			}
			idx, _ := plate.meta("index")
			pred, _ := plate.meta("prediction")
			w, _ := plate.meta("weight")
			wf, _ := strconv.ParseFloat(w, 64)
			isFirst := idx == "1"
			switch {
			case !haveStats:
				prediction, weight, haveStats, fromFirst = pred, wf, true, isFirst
			case isFirst && !fromFirst:
				prediction, weight, fromFirst = pred, wf, true
			}

			for _, fil := range plate.children("filament") {
				id := fil.attr("id")
				m, _ := strconv.ParseFloat(fil.attr("used_m"), 64)
				g, _ := strconv.ParseFloat(fil.attr("used_g"), 64)
				u, ok := filaments[id]
				if !ok {
					u = &filamentUsage{id: id, typ: fil.attr("type"), color: fil.attr("color"), tray: fil.attr("tray_info_idx")}
					filaments[id] = u
				}
				u.usedM += m * float64(e.Count)
				u.usedG += g * float64(e.Count)
			}
		}
	}

	if base == nil {
		return nil, nil
	}
	if prediction == "" {
		prediction = "0"
	}
	basePlate.setMeta("prediction", prediction)
	basePlate.setMeta("weight", strconv.FormatFloat(weight, 'f', 2, 64))

	ids := make([]string, 0, len(filaments))
	for id := range filaments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids {
		u := filaments[id]
		el := &xmlNode{XMLName: xml.Name{Local: "filament"}}
		el.setAttr("id", u.id)
		el.setAttr("type", u.typ)
		el.setAttr("color", u.color)
		if u.tray != "" {
			el.setAttr("tray_info_idx", u.tray)
		}
		el.setAttr("used_m", strconv.FormatFloat(u.usedM, 'f', 2, 64))
		el.setAttr("used_g", strconv.FormatFloat(u.usedG, 'f', 2, 64))
		basePlate.Children = append(basePlate.Children, el)
	}
	return base.encode()
}

// writeArchive copies every non-Metadata entry of base and then writes meta in name order.
func writeArchive(out string, base *zip.Reader, meta map[string][]byte) (err error) {
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(out), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out)
		}
	}()

	zw := zip.NewWriter(f)
	for _, e := range base.File {
		if strings.HasPrefix(e.Name, metadataDir) {
			continue
		}
		if err := zw.Copy(e); err != nil {
			return fmt.Errorf("copy %s: %w", e.Name, err)
		}
	}

	names := make([]string, 0, len(meta))
	for name := range meta {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(meta[name]); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return zw.Close()
}
