package backend

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

const twoPlateSliceInfo = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <header>
    <header_item key="X-BBL-Client-Type" value="slicer"/>
  </header>
  <plate>
    <metadata key="index" value="1"/>
    <metadata key="prediction" value="3600"/>
    <metadata key="weight" value="12.50"/>
    <filament id="1" type="PLA" color="#FFFFFF" used_m="4.00" used_g="12.50"/>
  </plate>
  <plate>
    <metadata key="index" value="2"/>
    <metadata key="prediction" value="1800"/>
    <metadata key="weight" value="5.25"/>
    <filament id="1" type="PLA" color="#FFFFFF" used_m="1.00" used_g="3.00"/>
    <filament id="2" type="PETG" color="#000000" tray_info_idx="GFG99" used_m="0.50" used_g="2.25"/>
  </plate>
</config>
`

const twoPlateModelSettings = `<?xml version="1.0" encoding="UTF-8"?>
<config>
  <object id="2">
    <metadata key="name" value="bracket"/>
  </object>
  <plate>
    <metadata key="plater_id" value="1"/>
    <metadata key="plater_name" value="front"/>
    <metadata key="locked" value="false"/>
    <metadata key="filament_maps" value="1"/>
    <metadata key="thumbnail_file" value="Metadata/plate_1.png"/>
  </plate>
  <plate>
    <metadata key="plater_id" value="2"/>
  </plate>
</config>
`

// twoPlateArchive is a sliced project with two plates.
func twoPlateArchive() map[string]string {
	return map[string]string{
		"[Content_Types].xml":              "<Types/>",
		"3D/3dmodel.model":                 "<model/>",
		"Metadata/slice_info.config":       twoPlateSliceInfo,
		"Metadata/model_settings.config":   twoPlateModelSettings,
		"Metadata/project_settings.config": "{}",
		"Metadata/plate_1.png":             "png-1",
		"Metadata/plate_1_small.png":       "png-1-small",
		"Metadata/plate_2.png":             "png-2",
		"Metadata/plate_1.gcode":           "G1 X1\n",
		"Metadata/plate_2.gcode":           "G1 X2",
		"Metadata/plate_1.json":            "{}",
		"Metadata/pick_1.png":              "pick",
		"Metadata/top_2.png":               "top",
	}
}

func writeArchiveFixture(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)

	zw := zip.NewWriter(f)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = io.WriteString(w, files[n])
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return p
}

func readArchive(t *testing.T, p string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer zr.Close()

	out := make(map[string]string)
	for _, f := range zr.File {
		b, err := readEntry(f)
		require.NoError(t, err)
		out[f.Name] = string(b)
	}
	return out
}
