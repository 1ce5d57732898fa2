// Package atlastest builds small atlas source files for tests.
package atlastest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	gomath "math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Surface encodes a FreeSurfer triangle surface.
func Surface(vertices [][3]float32, faces [][3]int32) []byte {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0xFF, 0xFF, 0xFE})
	buf.WriteString("created by atlastest\n\n")
	binary.Write(buf, binary.BigEndian, int32(len(vertices)))
	binary.Write(buf, binary.BigEndian, int32(len(faces)))
	binary.Write(buf, binary.BigEndian, vertices)
	binary.Write(buf, binary.BigEndian, faces)
	return buf.Bytes()
}

// CTabEntry is one colour table row of an annotation.
type CTabEntry struct {
	Index   int32
	Name    string
	R, G, B int32
}

func (e CTabEntry) packed() int32 {
	return e.R + e.G<<8 + e.B<<16
}

// Annot encodes a FreeSurfer annotation with a version 2 colour table.
// labels holds colour table indices per vertex; -1 writes value 0.
func Annot(labels []int32, entries []CTabEntry) []byte {
	byIndex := make(map[int32]int32, len(entries))
	var maxStructure int32
	for _, e := range entries {
		byIndex[e.Index] = e.packed()
		maxStructure = max(maxStructure, e.Index+1)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, int32(len(labels)))
	for vno, l := range labels {
		binary.Write(buf, binary.BigEndian, int32(vno))
		binary.Write(buf, binary.BigEndian, byIndex[l])
	}
	binary.Write(buf, binary.BigEndian, int32(1))
	binary.Write(buf, binary.BigEndian, int32(-2))
	binary.Write(buf, binary.BigEndian, maxStructure)
	writeString(buf, "atlastest.ctab")
	binary.Write(buf, binary.BigEndian, int32(len(entries)))
	for _, e := range entries {
		binary.Write(buf, binary.BigEndian, e.Index)
		writeString(buf, e.Name)
		binary.Write(buf, binary.BigEndian, [4]int32{e.R, e.G, e.B, 0})
	}
	return buf.Bytes()
}

// Entries gives each name a distinct colour, indexed by position.
func Entries(names ...string) []CTabEntry {
	out := make([]CTabEntry, len(names))
	for i, n := range names {
		out[i] = CTabEntry{Index: int32(i), Name: n, R: int32(10 + i), G: int32(20 + i), B: int32(30 + i)}
	}
	return out
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.BigEndian, int32(len(s)+1))
	buf.WriteString(s)
	buf.WriteByte(0)
}

// GIFTILabels encodes a GIFTI label file with an ASCII int32 array. A nil
// table omits the LabelTable element.
func GIFTILabels(labels []int32, table map[int32]string) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<GIFTI Version="1.0" NumberOfDataArrays="1">` + "\n")
	if table != nil {
		keys := make([]int32, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		sb.WriteString("<LabelTable>\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, `<Label Key="%d"><![CDATA[%s]]></Label>`+"\n", k, table[k])
		}
		sb.WriteString("</LabelTable>\n")
	}
	fmt.Fprintf(&sb, `<DataArray Intent="NIFTI_INTENT_LABEL" DataType="NIFTI_TYPE_INT32" ArrayIndexingOrder="RowMajorOrder" Dimensionality="1" Dim0="%d" Encoding="ASCII" Endian="LittleEndian" ExternalFileName="">`, len(labels))
	sb.WriteString("<Data>")
	for _, l := range labels {
		fmt.Fprintf(&sb, "%d ", l)
	}
	sb.WriteString("</Data></DataArray>\n</GIFTI>\n")
	return []byte(sb.String())
}

// GIFTISurface encodes a GIFTI surface with ASCII pointset and triangle
// arrays.
func GIFTISurface(vertices [][3]float32, faces [][3]int32) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<GIFTI Version="1.0" NumberOfDataArrays="2">` + "\n")
	fmt.Fprintf(&sb, `<DataArray Intent="NIFTI_INTENT_POINTSET" DataType="NIFTI_TYPE_FLOAT32" ArrayIndexingOrder="RowMajorOrder" Dimensionality="2" Dim0="%d" Dim1="3" Encoding="ASCII" Endian="LittleEndian" ExternalFileName=""><Data>`, len(vertices))
	for _, v := range vertices {
		fmt.Fprintf(&sb, "%g %g %g\n", v[0], v[1], v[2])
	}
	sb.WriteString("</Data></DataArray>\n")
	fmt.Fprintf(&sb, `<DataArray Intent="NIFTI_INTENT_TRIANGLE" DataType="NIFTI_TYPE_INT32" ArrayIndexingOrder="RowMajorOrder" Dimensionality="2" Dim0="%d" Dim1="3" Encoding="ASCII" Endian="LittleEndian" ExternalFileName=""><Data>`, len(faces))
	for _, f := range faces {
		fmt.Fprintf(&sb, "%d %d %d\n", f[0], f[1], f[2])
	}
	sb.WriteString("</Data></DataArray>\n</GIFTI>\n")
	return []byte(sb.String())
}

// NIfTI encodes a little-endian uint8 NIfTI-1 volume whose sform is srow.
// Voxels are ordered with x varying fastest.
func NIfTI(dims [3]int, voxels []uint8, srow [3][4]float32) []byte {
	hdr := make([]byte, 352)
	le := binary.LittleEndian
	le.PutUint32(hdr[0:], 348)
	dim := [8]int16{3, int16(dims[0]), int16(dims[1]), int16(dims[2]), 1, 1, 1, 1}
	for i, d := range dim {
		le.PutUint16(hdr[40+2*i:], uint16(d))
	}
	le.PutUint16(hdr[70:], 2) // uint8
	le.PutUint16(hdr[72:], 8)
	pixdim := [8]float32{1, srow[0][0], srow[1][1], srow[2][2]}
	for i, p := range pixdim {
		le.PutUint32(hdr[76+4*i:], gomath.Float32bits(p))
	}
	le.PutUint32(hdr[108:], gomath.Float32bits(352))
	le.PutUint16(hdr[254:], 4) // sform_code
	for r, row := range srow {
		for c, v := range row {
			le.PutUint32(hdr[280+16*r+4*c:], gomath.Float32bits(v))
		}
	}
	copy(hdr[344:], "n+1\x00")

	return append(hdr, voxels...)
}

// IsotropicSrow is a 1 mm voxel-to-world matrix with the given origin.
func IsotropicSrow(origin [3]float32) [3][4]float32 {
	return [3][4]float32{
		{1, 0, 0, origin[0]},
		{0, 1, 0, origin[1]},
		{0, 0, 1, origin[2]},
	}
}

// Box fills the voxels of a dims-sized volume inside [lo, hi] with value.
func Box(voxels []uint8, dims [3]int, lo, hi [3]int, value uint8) {
	for k := lo[2]; k <= hi[2]; k++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for i := lo[0]; i <= hi[0]; i++ {
				voxels[i+dims[0]*(j+dims[1]*k)] = value
			}
		}
	}
}

// Sphere returns a closed UV sphere of the given radius centred at c, wound
// so that face normals point outward.
func Sphere(c [3]float32, radius float32, rings, segments int) ([][3]float32, [][3]int32) {
	verts := [][3]float32{{c[0], c[1] + radius, c[2]}}
	for r := 0; r < rings; r++ {
		phi := gomath.Pi * float64(r+1) / float64(rings+1)
		for j := 0; j < segments; j++ {
			theta := 2 * gomath.Pi * float64(j) / float64(segments)
			verts = append(verts, [3]float32{
				c[0] + radius*float32(gomath.Sin(phi)*gomath.Cos(theta)),
				c[1] + radius*float32(gomath.Cos(phi)),
				c[2] + radius*float32(gomath.Sin(phi)*gomath.Sin(theta)),
			})
		}
	}
	south := int32(len(verts))
	verts = append(verts, [3]float32{c[0], c[1] - radius, c[2]})

	v := func(r, j int) int32 { return int32(1 + r*segments + j%segments) }
	var faces [][3]int32
	for j := 0; j < segments; j++ {
		faces = append(faces, [3]int32{0, v(0, j+1), v(0, j)})
	}
	for r := 0; r < rings-1; r++ {
		for j := 0; j < segments; j++ {
			a, b, cc, d := v(r, j), v(r, j+1), v(r+1, j), v(r+1, j+1)
			faces = append(faces, [3]int32{a, b, cc}, [3]int32{b, d, cc})
		}
	}
	for j := 0; j < segments; j++ {
		faces = append(faces, [3]int32{south, v(rings-1, j), v(rings-1, j+1)})
	}
	return verts, faces
}

// WriteFile writes data under dir, creating parents, and returns the path.
func WriteFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		tb.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		tb.Fatalf("writing %s: %v", path, err)
	}
	return path
}
