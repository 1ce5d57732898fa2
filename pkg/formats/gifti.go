package formats

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// GIFTI errors.
var (
	ErrInvalidGIFTI          = errors.New("invalid GIFTI document")
	ErrUnsupportedGIFTIData  = errors.New("unsupported GIFTI data array")
	ErrGIFTIArrayMissing     = errors.New("GIFTI data array not found")
	ErrGIFTIShapeMismatch    = errors.New("GIFTI data array shape mismatch")
	ErrGIFTIExternalDataFile = errors.New("GIFTI external data files are not supported")
)

// GIFTI intents used by surfaces and parcellations.
const (
	IntentLabel    = "NIFTI_INTENT_LABEL"
	IntentPointSet = "NIFTI_INTENT_POINTSET"
	IntentTriangle = "NIFTI_INTENT_TRIANGLE"
)

// GIFTILabel is one entry of a GIFTI label table.
type GIFTILabel struct {
	Key  int32
	Name string
}

// GIFTIDataArray is one decoded data array. Values are stored row-major
// regardless of the on-disk indexing order.
type GIFTIDataArray struct {
	Intent   string
	DataType string
	Dims     []int
	Values   []float64
}

// Rows returns the length of the first dimension.
func (a *GIFTIDataArray) Rows() int {
	if len(a.Dims) == 0 {
		return 0
	}
	return a.Dims[0]
}

// Cols returns the length of the second dimension (1 for vectors).
func (a *GIFTIDataArray) Cols() int {
	if len(a.Dims) < 2 {
		return 1
	}
	return a.Dims[1]
}

// Int32s returns the values truncated to int32.
func (a *GIFTIDataArray) Int32s() []int32 {
	out := make([]int32, len(a.Values))
	for i, v := range a.Values {
		out[i] = int32(v)
	}
	return out
}

// GIFTI is a parsed GIFTI document.
type GIFTI struct {
	Labels []GIFTILabel
	Arrays []GIFTIDataArray
}

// Array returns the first data array with the given intent.
func (g *GIFTI) Array(intent string) (*GIFTIDataArray, error) {
	for i := range g.Arrays {
		if g.Arrays[i].Intent == intent {
			return &g.Arrays[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrGIFTIArrayMissing, intent)
}

type giftiXML struct {
	XMLName xml.Name        `xml:"GIFTI"`
	Labels  []giftiLabelXML `xml:"LabelTable>Label"`
	Arrays  []giftiArrayXML `xml:"DataArray"`
}

type giftiLabelXML struct {
	Key   string `xml:"Key,attr"`
	Index string `xml:"Index,attr"`
	Name  string `xml:",chardata"`
}

type giftiArrayXML struct {
	Intent         string `xml:"Intent,attr"`
	DataType       string `xml:"DataType,attr"`
	IndexingOrder  string `xml:"ArrayIndexingOrder,attr"`
	Dimensionality string `xml:"Dimensionality,attr"`
	Dim0           string `xml:"Dim0,attr"`
	Dim1           string `xml:"Dim1,attr"`
	Dim2           string `xml:"Dim2,attr"`
	Encoding       string `xml:"Encoding,attr"`
	Endian         string `xml:"Endian,attr"`
	ExternalFile   string `xml:"ExternalFileName,attr"`
	Data           string `xml:"Data"`
}

// ParseGIFTI parses a GIFTI XML document from raw bytes.
func ParseGIFTI(data []byte) (*GIFTI, error) {
	var doc giftiXML
	if err := decodeXML(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGIFTI, err)
	}

	g := &GIFTI{}
	for i, l := range doc.Labels {
		keyText := l.Key
		if keyText == "" {
			keyText = l.Index
		}
		key, err := strconv.ParseInt(strings.TrimSpace(keyText), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: label %d has key %q", ErrInvalidGIFTI, i, keyText)
		}
		g.Labels = append(g.Labels, GIFTILabel{
			Key:  int32(key),
			Name: encoding.DecodeName([]byte(strings.TrimSpace(l.Name))),
		})
	}

	for i, a := range doc.Arrays {
		arr, err := decodeGIFTIArray(a)
		if err != nil {
			return nil, fmt.Errorf("data array %d: %w", i, err)
		}
		g.Arrays = append(g.Arrays, arr)
	}
	return g, nil
}

// ParseGIFTIFile parses a GIFTI document from disk.
func ParseGIFTIFile(path string) (*GIFTI, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GIFTI file: %w", err)
	}
	return ParseGIFTI(data)
}

func decodeGIFTIArray(a giftiArrayXML) (GIFTIDataArray, error) {
	if a.ExternalFile != "" {
		return GIFTIDataArray{}, ErrGIFTIExternalDataFile
	}

	dims, err := giftiDims(a)
	if err != nil {
		return GIFTIDataArray{}, err
	}
	count := 1
	for _, d := range dims {
		count *= d
	}

	var values []float64
	switch a.Encoding {
	case "ASCII":
		values, err = parseASCIIValues(a.Data)
	case "Base64Binary", "GZipBase64Binary":
		var raw []byte
		raw, err = base64.StdEncoding.DecodeString(stripSpace(a.Data))
		if err != nil {
			return GIFTIDataArray{}, fmt.Errorf("decoding base64: %w", err)
		}
		if a.Encoding == "GZipBase64Binary" {
			raw, err = inflateZlib(raw)
			if err != nil {
				return GIFTIDataArray{}, err
			}
		}
		values, err = decodeBinaryValues(raw, a.DataType, giftiByteOrder(a.Endian))
	default:
		return GIFTIDataArray{}, fmt.Errorf("%w: encoding %q", ErrUnsupportedGIFTIData, a.Encoding)
	}
	if err != nil {
		return GIFTIDataArray{}, err
	}
	if len(values) != count {
		return GIFTIDataArray{}, fmt.Errorf("%w: %d values for dims %v", ErrGIFTIShapeMismatch, len(values), dims)
	}

	if a.IndexingOrder == "ColumnMajorOrder" && len(dims) == 2 {
		values = transpose(values, dims[0], dims[1])
	}

	return GIFTIDataArray{
		Intent:   a.Intent,
		DataType: a.DataType,
		Dims:     dims,
		Values:   values,
	}, nil
}

func giftiDims(a giftiArrayXML) ([]int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(a.Dimensionality))
	if err != nil || n < 1 || n > 3 {
		return nil, fmt.Errorf("%w: dimensionality %q", ErrUnsupportedGIFTIData, a.Dimensionality)
	}
	raw := []string{a.Dim0, a.Dim1, a.Dim2}[:n]
	dims := make([]int, n)
	for i, s := range raw {
		d, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: Dim%d=%q", ErrUnsupportedGIFTIData, i, s)
		}
		dims[i] = d
	}
	return dims, nil
}

func giftiByteOrder(endian string) binary.ByteOrder {
	if endian == "BigEndian" {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func inflateZlib(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening zlib stream: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating zlib stream: %w", err)
	}
	return out, nil
}

// decodeBinaryValues decodes a packed array of NIfTI-typed scalars.
func decodeBinaryValues(raw []byte, dataType string, order binary.ByteOrder) ([]float64, error) {
	var size int
	var read func(b []byte) float64
	switch dataType {
	case "NIFTI_TYPE_UINT8":
		size, read = 1, func(b []byte) float64 { return float64(b[0]) }
	case "NIFTI_TYPE_INT8":
		size, read = 1, func(b []byte) float64 { return float64(int8(b[0])) }
	case "NIFTI_TYPE_INT16":
		size, read = 2, func(b []byte) float64 { return float64(int16(order.Uint16(b))) }
	case "NIFTI_TYPE_UINT16":
		size, read = 2, func(b []byte) float64 { return float64(order.Uint16(b)) }
	case "NIFTI_TYPE_INT32":
		size, read = 4, func(b []byte) float64 { return float64(int32(order.Uint32(b))) }
	case "NIFTI_TYPE_UINT32":
		size, read = 4, func(b []byte) float64 { return float64(order.Uint32(b)) }
	case "NIFTI_TYPE_FLOAT32":
		size, read = 4, func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }
	case "NIFTI_TYPE_FLOAT64":
		size, read = 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }
	default:
		return nil, fmt.Errorf("%w: data type %q", ErrUnsupportedGIFTIData, dataType)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrGIFTIShapeMismatch, len(raw), size)
	}

	values := make([]float64, len(raw)/size)
	for i := range values {
		values[i] = read(raw[i*size : (i+1)*size])
	}
	return values, nil
}

func parseASCIIValues(text string) ([]float64, error) {
	fields := strings.Fields(text)
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ASCII value %q", ErrUnsupportedGIFTIData, f)
		}
		values[i] = v
	}
	return values, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
}

// transpose converts a column-major rows x cols array to row-major.
func transpose(values []float64, rows, cols int) []float64 {
	out := make([]float64, len(values))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = values[c*rows+r]
		}
	}
	return out
}

// IsGIFTI reports whether data looks like a GIFTI XML document.
func IsGIFTI(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("<GIFTI"))
}
