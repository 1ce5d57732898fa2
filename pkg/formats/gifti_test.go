package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// createTestGIFTILabels creates a GIFTI label document with a zlib-compressed
// int32 data array.
func createTestGIFTILabels(t *testing.T, labels []int32, table map[int32]string) []byte {
	t.Helper()
	raw := new(bytes.Buffer)
	binary.Write(raw, binary.LittleEndian, labels)
	payload := base64.StdEncoding.EncodeToString(zlibBytes(t, raw.Bytes()))

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<!DOCTYPE GIFTI SYSTEM "http://www.nitrc.org/frs/download.php/115/gifti.dtd">` + "\n")
	sb.WriteString(`<GIFTI Version="1.0" NumberOfDataArrays="1">` + "\n")
	if table != nil {
		sb.WriteString("<LabelTable>\n")
		for key := int32(0); key < 100; key++ {
			if name, ok := table[key]; ok {
				fmt.Fprintf(&sb, `<Label Key="%d" Red="1" Green="0" Blue="0" Alpha="1"><![CDATA[%s]]></Label>`+"\n", key, name)
			}
		}
		sb.WriteString("</LabelTable>\n")
	}
	fmt.Fprintf(&sb, `<DataArray Intent="NIFTI_INTENT_LABEL" DataType="NIFTI_TYPE_INT32" ArrayIndexingOrder="RowMajorOrder" Dimensionality="1" Dim0="%d" Encoding="GZipBase64Binary" Endian="LittleEndian" ExternalFileName="" ExternalFileOffset="">`, len(labels))
	fmt.Fprintf(&sb, "<Data>\n%s\n</Data></DataArray>\n</GIFTI>\n", payload)
	return []byte(sb.String())
}

func TestParseGIFTI_Labels(t *testing.T) {
	table := map[int32]string{0: "Unknown", 1: "G_precentral", 2: "S_central"}
	doc, err := ParseGIFTI(createTestGIFTILabels(t, []int32{1, 1, 2, 0, 2}, table))
	if err != nil {
		t.Fatalf("ParseGIFTI failed: %v", err)
	}

	if len(doc.Labels) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(doc.Labels))
	}
	if doc.Labels[1].Key != 1 || doc.Labels[1].Name != "G_precentral" {
		t.Errorf("label 1 = %+v", doc.Labels[1])
	}

	arr, err := doc.Array(IntentLabel)
	if err != nil {
		t.Fatalf("Array failed: %v", err)
	}
	got := arr.Int32s()
	want := []int32{1, 1, 2, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("value %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseGIFTI_NoLabelTable(t *testing.T) {
	doc, err := ParseGIFTI(createTestGIFTILabels(t, []int32{0, 3}, nil))
	if err != nil {
		t.Fatalf("ParseGIFTI failed: %v", err)
	}
	if len(doc.Labels) != 0 {
		t.Errorf("expected no labels, got %d", len(doc.Labels))
	}
}

func TestParseGIFTI_ASCIIColumnMajorSurface(t *testing.T) {
	// Three vertices stored column-major: all x, then all y, then all z.
	doc := `<GIFTI Version="1.0">
<DataArray Intent="NIFTI_INTENT_POINTSET" DataType="NIFTI_TYPE_FLOAT32" ArrayIndexingOrder="ColumnMajorOrder" Dimensionality="2" Dim0="3" Dim1="3" Encoding="ASCII" Endian="LittleEndian" ExternalFileName="">
<Data>0 1 0  0 0 1  5 5 5</Data></DataArray>
<DataArray Intent="NIFTI_INTENT_TRIANGLE" DataType="NIFTI_TYPE_INT32" ArrayIndexingOrder="RowMajorOrder" Dimensionality="2" Dim0="1" Dim1="3" Encoding="ASCII" Endian="LittleEndian" ExternalFileName="">
<Data>0 1 2</Data></DataArray>
</GIFTI>`

	g, err := ParseGIFTI([]byte(doc))
	if err != nil {
		t.Fatalf("ParseGIFTI failed: %v", err)
	}
	points, err := g.Array(IntentPointSet)
	if err != nil {
		t.Fatal(err)
	}
	if points.Rows() != 3 || points.Cols() != 3 {
		t.Fatalf("points shape %dx%d", points.Rows(), points.Cols())
	}
	// Row 1 is vertex 1: (1, 0, 5).
	if v := points.Values[3:6]; v[0] != 1 || v[1] != 0 || v[2] != 5 {
		t.Errorf("vertex 1 = %v, want [1 0 5]", v)
	}
	tris, err := g.Array(IntentTriangle)
	if err != nil {
		t.Fatal(err)
	}
	if got := tris.Int32s(); got[2] != 2 {
		t.Errorf("triangle = %v", got)
	}
}

func TestParseGIFTI_ShapeMismatch(t *testing.T) {
	doc := `<GIFTI><DataArray Intent="NIFTI_INTENT_LABEL" DataType="NIFTI_TYPE_INT32" Dimensionality="1" Dim0="4" Encoding="ASCII"><Data>1 2</Data></DataArray></GIFTI>`
	_, err := ParseGIFTI([]byte(doc))
	if !errors.Is(err, ErrGIFTIShapeMismatch) {
		t.Errorf("expected ErrGIFTIShapeMismatch, got %v", err)
	}
}

func TestParseGIFTI_ExternalFile(t *testing.T) {
	doc := `<GIFTI><DataArray Intent="NIFTI_INTENT_LABEL" DataType="NIFTI_TYPE_INT32" Dimensionality="1" Dim0="4" Encoding="ExternalFileBinary" ExternalFileName="labels.dat"><Data></Data></DataArray></GIFTI>`
	_, err := ParseGIFTI([]byte(doc))
	if !errors.Is(err, ErrGIFTIExternalDataFile) {
		t.Errorf("expected ErrGIFTIExternalDataFile, got %v", err)
	}
}

func TestParseGIFTI_MissingArray(t *testing.T) {
	g := &GIFTI{}
	if _, err := g.Array(IntentLabel); !errors.Is(err, ErrGIFTIArrayMissing) {
		t.Errorf("expected ErrGIFTIArrayMissing, got %v", err)
	}
}

func TestIsGIFTI(t *testing.T) {
	if !IsGIFTI(createTestGIFTILabels(t, []int32{0}, nil)) {
		t.Error("IsGIFTI should accept a GIFTI document")
	}
	if IsGIFTI([]byte{0xFF, 0xFF, 0xFE}) {
		t.Error("IsGIFTI should reject binary data")
	}
}
