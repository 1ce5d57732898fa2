package atlas

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Faultbox/atlasmesh/internal/atlastest"
	"github.com/Faultbox/atlasmesh/pkg/formats"
)

func TestLabelTable(t *testing.T) {
	names := map[int32]string{2: "S_central", -1: "unknown", 1: "G_precentral", 7: "S_central"}
	table := NewLabelTable(names)

	// Mutating the source map must not leak into the table.
	names[3] = "late"

	if table.Len() != 4 {
		t.Errorf("Len() = %d, want 4", table.Len())
	}
	if got, want := table.Keys(), []int32{-1, 1, 2, 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if got, want := table.Names(), []string{"unknown", "G_precentral", "S_central", "S_central"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if name, ok := table.Name(1); !ok || name != "G_precentral" {
		t.Errorf("Name(1) = %q, %v", name, ok)
	}
	if _, ok := table.Name(3); ok {
		t.Error("Name(3) should be absent")
	}
	if got, want := table.KeysNamed("S_central"), []int32{2, 7}; !reflect.DeepEqual(got, want) {
		t.Errorf("KeysNamed() = %v, want %v", got, want)
	}
	if !table.HasName("unknown") || table.HasName("Unknown") {
		t.Error("HasName should match exactly")
	}

	keys := table.Keys()
	keys[0] = 99
	if table.Keys()[0] != -1 {
		t.Error("Keys() must return a copy")
	}
}

func TestDetectEncoding(t *testing.T) {
	gifti := atlastest.GIFTILabels([]int32{0}, nil)

	tests := []struct {
		path string
		data []byte
		want Encoding
	}{
		{"lh.aparc.a2009s.annot", nil, EncodingAnnotation},
		{"LH.APARC.ANNOT.GZ", nil, EncodingAnnotation},
		{"lh.destrieux.label.gii", nil, EncodingLabeledArray},
		{"lh.destrieux.gii.gz", nil, EncodingLabeledArray},
		{"labels.xml", gifti, EncodingLabeledArray},
		{"labels.bin", []byte{0, 0, 0, 1}, EncodingUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DetectEncoding(tt.path, tt.data); got != tt.want {
				t.Errorf("DetectEncoding() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadParcellationAnnotation(t *testing.T) {
	dir := t.TempDir()
	entries := atlastest.Entries("Unknown", "G_precentral", "S_central")
	path := atlastest.WriteFile(t, dir, "lh.test.annot",
		atlastest.Annot([]int32{1, 1, 2, 0, 2, -1}, entries))

	p, err := LoadParcellation(path)
	if err != nil {
		t.Fatalf("LoadParcellation() error = %v", err)
	}
	if p.Encoding != EncodingAnnotation {
		t.Errorf("Encoding = %v, want annotation", p.Encoding)
	}
	if want := []int32{1, 1, 2, 0, 2, -1}; !reflect.DeepEqual(p.Labels, want) {
		t.Errorf("Labels = %v, want %v", p.Labels, want)
	}
	if name, _ := p.Table.Name(UnknownKey); name != "unknown" {
		t.Errorf("Name(-1) = %q, want unknown", name)
	}
	if name, _ := p.Table.Name(2); name != "S_central" {
		t.Errorf("Name(2) = %q, want S_central", name)
	}
	if p.Table.Len() != 4 {
		t.Errorf("table has %d entries, want 4", p.Table.Len())
	}
}

func TestLoadParcellationLabeledArray(t *testing.T) {
	dir := t.TempDir()
	table := map[int32]string{0: "Unknown", 1: "G_precentral", 2: "S_central"}
	path := atlastest.WriteFile(t, dir, "lh.label.gii",
		atlastest.GIFTILabels([]int32{1, 1, 2, 0, 2}, table))

	p, err := LoadParcellation(path)
	if err != nil {
		t.Fatalf("LoadParcellation() error = %v", err)
	}
	if p.Encoding != EncodingLabeledArray {
		t.Errorf("Encoding = %v, want labeled-array", p.Encoding)
	}
	if want := []int32{1, 1, 2, 0, 2}; !reflect.DeepEqual(p.Labels, want) {
		t.Errorf("Labels = %v, want %v", p.Labels, want)
	}
	if got := p.Table.Names(); !reflect.DeepEqual(got, []string{"Unknown", "G_precentral", "S_central"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestLoadParcellationSynthesizedNames(t *testing.T) {
	dir := t.TempDir()
	path := atlastest.WriteFile(t, dir, "lh.label.gii",
		atlastest.GIFTILabels([]int32{0, 3, 1, 3}, nil))

	p, err := LoadParcellation(path)
	if err != nil {
		t.Fatalf("LoadParcellation() error = %v", err)
	}
	want := []string{"region_0", "region_1", "region_2", "region_3"}
	if got := p.Table.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestLoadParcellationFailures(t *testing.T) {
	dir := t.TempDir()
	unknown := atlastest.WriteFile(t, dir, "labels.bin", []byte{1, 2, 3, 4})
	truncated := atlastest.WriteFile(t, dir, "bad.annot", []byte{0, 0, 0, 9})

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "absent.annot"), nil},
		{"unknown encoding", unknown, ErrUnknownEncoding},
		{"truncated", truncated, formats.ErrTruncatedAnnot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadParcellation(tt.path)
			if !errors.Is(err, ErrIOFailure) {
				t.Errorf("error = %v, want ErrIOFailure", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadSurface(t *testing.T) {
	dir := t.TempDir()
	verts, faces := atlastest.Sphere([3]float32{0, 0, 0}, 10, 4, 6)

	tests := []struct {
		name string
		data []byte
	}{
		{"lh.pial", atlastest.Surface(verts, faces)},
		{"lh.pial.surf.gii", atlastest.GIFTISurface(verts, faces)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := atlastest.WriteFile(t, dir, tt.name, tt.data)
			m, err := LoadSurface(path)
			if err != nil {
				t.Fatalf("LoadSurface() error = %v", err)
			}
			if m.VertexCount() != len(verts) || m.FaceCount() != len(faces) {
				t.Errorf("got %d vertices / %d faces, want %d / %d",
					m.VertexCount(), m.FaceCount(), len(verts), len(faces))
			}
			if got := m.Vertices[0].Y; got != 10 {
				t.Errorf("north pole Y = %v, want 10", got)
			}
			if m.Faces[len(faces)-1] != [3]uint32{uint32(faces[len(faces)-1][0]), uint32(faces[len(faces)-1][1]), uint32(faces[len(faces)-1][2])} {
				t.Errorf("last face = %v", m.Faces[len(faces)-1])
			}
		})
	}
}

func TestLoadSurfaceFailures(t *testing.T) {
	dir := t.TempDir()
	garbage := atlastest.WriteFile(t, dir, "lh.pial", []byte("not a surface"))
	dangling := atlastest.WriteFile(t, dir, "dangling.gii", atlastest.GIFTISurface(
		[][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[][3]int32{{0, 1, 5}},
	))

	if _, err := LoadSurface(garbage); !errors.Is(err, ErrIOFailure) || !errors.Is(err, ErrUnknownSurface) {
		t.Errorf("garbage: error = %v", err)
	}
	if _, err := LoadSurface(dangling); !errors.Is(err, ErrIOFailure) {
		t.Errorf("dangling: error = %v, want ErrIOFailure", err)
	}
	if _, err := LoadSurface(filepath.Join(dir, "absent")); !errors.Is(err, ErrIOFailure) {
		t.Errorf("missing: error = %v, want ErrIOFailure", err)
	}
}

func TestLoadVolumeAtlas(t *testing.T) {
	dir := t.TempDir()
	dims := [3]int{4, 4, 4}
	voxels := make([]uint8, 64)
	voxels[5] = 10
	voxels[6] = 11

	img := atlastest.WriteFile(t, dir, "atlas.nii", atlastest.NIfTI(dims, voxels, atlastest.IsotropicSrow([3]float32{-2, -2, -2})))
	fsl := atlastest.WriteFile(t, dir, "atlas.xml", []byte(`<?xml version="1.0" encoding="ISO-8859-1"?>
<atlas version="1.0">
  <header><name>Test Subcortical</name></header>
  <data>
    <label index="9" x="1" y="1" z="1">Left Thalamus</label>
    <label index="10" x="1" y="1" z="1">Left Caudate</label>
  </data>
</atlas>
`))

	v, err := LoadVolumeAtlas(img, fsl)
	if err != nil {
		t.Fatalf("LoadVolumeAtlas() error = %v", err)
	}
	if name, _ := v.Table.Name(BackgroundKey); name != "background" {
		t.Errorf("Name(0) = %q, want background", name)
	}
	if name, _ := v.Table.Name(10); name != "Left Thalamus" {
		t.Errorf("Name(10) = %q, want Left Thalamus", name)
	}
	if v.LabelAt(5) != 10 || v.LabelAt(6) != 11 || v.LabelAt(0) != 0 {
		t.Errorf("LabelAt = %d %d %d", v.LabelAt(5), v.LabelAt(6), v.LabelAt(0))
	}

	if _, err := LoadVolumeAtlas(filepath.Join(dir, "absent.nii"), fsl); !errors.Is(err, ErrIOFailure) {
		t.Errorf("missing image: error = %v, want ErrIOFailure", err)
	}
	if _, err := LoadVolumeAtlas(img, filepath.Join(dir, "absent.xml")); !errors.Is(err, ErrIOFailure) {
		t.Errorf("missing labels: error = %v, want ErrIOFailure", err)
	}
}

func TestNewVolumeAtlasKeepsExplicitBackground(t *testing.T) {
	v := NewVolumeAtlas(&formats.NIfTI{}, []formats.LabelEntry{{Value: 0, Name: "Clear Label"}, {Value: 3, Name: "Vermis_3"}})
	if name, _ := v.Table.Name(0); name != "Clear Label" {
		t.Errorf("Name(0) = %q, want Clear Label", name)
	}
}
