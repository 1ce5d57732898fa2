package atlas

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/atlasmesh/pkg/formats"
)

// ErrUnknownEncoding is returned when a parcellation file is neither an
// annotation nor a GIFTI labelled array.
var ErrUnknownEncoding = errors.New("unrecognised parcellation encoding")

// Encoding identifies how a surface parcellation is stored.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	// EncodingAnnotation is a FreeSurfer .annot: per-vertex colour table
	// indices plus the table's names.
	EncodingAnnotation
	// EncodingLabeledArray is a GIFTI label file: a per-vertex integer
	// array plus an optional key/name dictionary.
	EncodingLabeledArray
)

func (e Encoding) String() string {
	switch e {
	case EncodingAnnotation:
		return "annotation"
	case EncodingLabeledArray:
		return "labeled-array"
	default:
		return "unknown"
	}
}

// Parcellation assigns one label key to each surface vertex.
type Parcellation struct {
	Encoding Encoding
	Labels   []int32
	Table    *LabelTable
}

type parcellationDecoder func(data []byte) (*Parcellation, error)

var parcellationDecoders = map[Encoding]parcellationDecoder{
	EncodingAnnotation:   decodeAnnotation,
	EncodingLabeledArray: decodeLabeledArray,
}

// DetectEncoding picks the parcellation encoding from the file name, falling
// back to sniffing the (already decompressed) content.
func DetectEncoding(path string, data []byte) Encoding {
	name := strings.TrimSuffix(strings.ToLower(filepath.Base(path)), ".gz")
	switch {
	case strings.HasSuffix(name, ".annot"):
		return EncodingAnnotation
	case strings.HasSuffix(name, ".gii"):
		return EncodingLabeledArray
	case formats.IsGIFTI(data):
		return EncodingLabeledArray
	}
	return EncodingUnknown
}

// LoadParcellation reads a surface parcellation in either supported
// encoding. Errors wrap ErrIOFailure.
func LoadParcellation(path string) (*Parcellation, error) {
	data, err := formats.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	enc := DetectEncoding(path, data)
	decode, ok := parcellationDecoders[enc]
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, path, ErrUnknownEncoding)
	}

	p, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, path, err)
	}
	return p, nil
}

// decodeAnnotation maps unlabeled vertices to UnknownKey and keys the table
// by colour table index.
func decodeAnnotation(data []byte) (*Parcellation, error) {
	annot, err := formats.ParseAnnot(data)
	if err != nil {
		return nil, err
	}

	names := annot.Names()
	names[UnknownKey] = "unknown"
	return &Parcellation{
		Encoding: EncodingAnnotation,
		Labels:   annot.Labels(),
		Table:    NewLabelTable(names),
	}, nil
}

// decodeLabeledArray reads the first data array as per-vertex labels. When
// the file has no label table, names region_0..region_max are synthesized.
func decodeLabeledArray(data []byte) (*Parcellation, error) {
	g, err := formats.ParseGIFTI(data)
	if err != nil {
		return nil, err
	}
	if len(g.Arrays) == 0 {
		return nil, formats.ErrGIFTIArrayMissing
	}

	labels := g.Arrays[0].Int32s()
	names := make(map[int32]string, len(g.Labels))
	for _, l := range g.Labels {
		names[l.Key] = l.Name
	}
	if len(names) == 0 {
		maxLabel := int32(-1)
		for _, l := range labels {
			maxLabel = max(maxLabel, l)
		}
		for k := int32(0); k <= maxLabel; k++ {
			names[k] = fmt.Sprintf("region_%d", k)
		}
	}

	return &Parcellation{
		Encoding: EncodingLabeledArray,
		Labels:   labels,
		Table:    NewLabelTable(names),
	}, nil
}
