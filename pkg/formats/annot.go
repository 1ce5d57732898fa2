package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Faultbox/atlasmesh/pkg/encoding"
)

// FreeSurfer annotation errors.
var (
	ErrTruncatedAnnot         = errors.New("truncated annotation data")
	ErrUnsupportedAnnotCTab   = errors.New("unsupported annotation colour table version")
	ErrMissingAnnotColorTable = errors.New("annotation has no colour table")
)

// Unlabeled is the label index given to vertices that carry no annotation.
const Unlabeled int32 = -1

// AnnotEntry is one colour table row of an annotation.
type AnnotEntry struct {
	Index   int32
	Name    string
	R, G, B int32
	T       int32
}

// Value returns the packed colour that vertices carrying this label store.
func (e AnnotEntry) Value() int32 {
	return e.R + e.G<<8 + e.B<<16
}

// Annot is a parsed FreeSurfer annotation (.annot) file.
type Annot struct {
	// Values holds the raw packed colour for every vertex.
	Values []int32
	// Entries is the colour table in file order.
	Entries []AnnotEntry
	// OrigTab is the name of the colour table the annotation was built from.
	OrigTab string
}

// ParseAnnot parses a FreeSurfer annotation from raw bytes.
// All values are big-endian.
func ParseAnnot(data []byte) (*Annot, error) {
	r := bytes.NewReader(data)

	var vertexCount int32
	if err := binary.Read(r, binary.BigEndian, &vertexCount); err != nil {
		return nil, fmt.Errorf("%w: reading vertex count", ErrTruncatedAnnot)
	}
	if vertexCount < 0 || int64(r.Len()) < int64(vertexCount)*8 {
		return nil, fmt.Errorf("%w: expected %d vertex records", ErrTruncatedAnnot, vertexCount)
	}

	pairs := make([][2]int32, vertexCount)
	if err := binary.Read(r, binary.BigEndian, pairs); err != nil {
		return nil, fmt.Errorf("%w: reading vertex records", ErrTruncatedAnnot)
	}
	annot := &Annot{Values: make([]int32, vertexCount)}
	for _, p := range pairs {
		vno, value := p[0], p[1]
		if vno < 0 || vno >= vertexCount {
			return nil, fmt.Errorf("annotation record for vertex %d of %d", vno, vertexCount)
		}
		annot.Values[vno] = value
	}

	var hasCTab int32
	if err := binary.Read(r, binary.BigEndian, &hasCTab); err != nil || hasCTab == 0 {
		return nil, ErrMissingAnnotColorTable
	}

	var entryCount int32
	if err := binary.Read(r, binary.BigEndian, &entryCount); err != nil {
		return nil, fmt.Errorf("%w: reading colour table size", ErrTruncatedAnnot)
	}

	var err error
	if entryCount > 0 {
		err = annot.readOldCTab(r, entryCount)
	} else {
		if version := -entryCount; version != 2 {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedAnnotCTab, version)
		}
		err = annot.readCTabV2(r)
	}
	if err != nil {
		return nil, err
	}
	return annot, nil
}

// readOldCTab reads the original colour table layout, where entries are
// numbered implicitly by their position.
func (a *Annot) readOldCTab(r *bytes.Reader, entryCount int32) error {
	origTab, err := readAnnotString(r)
	if err != nil {
		return fmt.Errorf("reading colour table name: %w", err)
	}
	a.OrigTab = origTab

	for i := int32(0); i < entryCount; i++ {
		entry, err := readAnnotEntry(r, i)
		if err != nil {
			return fmt.Errorf("colour table entry %d: %w", i, err)
		}
		a.Entries = append(a.Entries, entry)
	}
	return nil
}

// readCTabV2 reads the version 2 layout, where each entry carries its own
// structure index and the index space may have gaps.
func (a *Annot) readCTabV2(r *bytes.Reader) error {
	var maxStructure int32
	if err := binary.Read(r, binary.BigEndian, &maxStructure); err != nil {
		return fmt.Errorf("%w: reading structure count", ErrTruncatedAnnot)
	}
	origTab, err := readAnnotString(r)
	if err != nil {
		return fmt.Errorf("reading colour table name: %w", err)
	}
	a.OrigTab = origTab

	var toRead int32
	if err := binary.Read(r, binary.BigEndian, &toRead); err != nil {
		return fmt.Errorf("%w: reading entry count", ErrTruncatedAnnot)
	}
	for i := int32(0); i < toRead; i++ {
		var index int32
		if err := binary.Read(r, binary.BigEndian, &index); err != nil {
			return fmt.Errorf("%w: reading entry %d index", ErrTruncatedAnnot, i)
		}
		if index < 0 || index >= maxStructure {
			return fmt.Errorf("colour table entry %d: structure index %d out of range", i, index)
		}
		entry, err := readAnnotEntry(r, index)
		if err != nil {
			return fmt.Errorf("colour table entry %d: %w", i, err)
		}
		a.Entries = append(a.Entries, entry)
	}
	return nil
}

func readAnnotEntry(r *bytes.Reader, index int32) (AnnotEntry, error) {
	name, err := readAnnotString(r)
	if err != nil {
		return AnnotEntry{}, err
	}
	var rgbt [4]int32
	if err := binary.Read(r, binary.BigEndian, &rgbt); err != nil {
		return AnnotEntry{}, fmt.Errorf("%w: reading colour", ErrTruncatedAnnot)
	}
	return AnnotEntry{
		Index: index,
		Name:  name,
		R:     rgbt[0],
		G:     rgbt[1],
		B:     rgbt[2],
		T:     rgbt[3],
	}, nil
}

// readAnnotString reads a length-prefixed, null-terminated string.
func readAnnotString(r *bytes.Reader) (string, error) {
	var length int32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", fmt.Errorf("%w: reading string length", ErrTruncatedAnnot)
	}
	if length < 0 || int(length) > r.Len() {
		return "", fmt.Errorf("%w: string of %d bytes", ErrTruncatedAnnot, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: reading string", ErrTruncatedAnnot)
	}
	return encoding.FixedStringToUTF8(buf), nil
}

// ParseAnnotFile parses a FreeSurfer annotation from disk.
func ParseAnnotFile(path string) (*Annot, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading annotation file: %w", err)
	}
	return ParseAnnot(data)
}

// Labels converts the per-vertex packed colours into colour table indices.
// Vertices with value 0, or with a colour not present in the table, are
// Unlabeled.
func (a *Annot) Labels() []int32 {
	byValue := make(map[int32]int32, len(a.Entries))
	for _, e := range a.Entries {
		if _, dup := byValue[e.Value()]; !dup {
			byValue[e.Value()] = e.Index
		}
	}

	labels := make([]int32, len(a.Values))
	for i, v := range a.Values {
		idx, ok := byValue[v]
		if v == 0 || !ok {
			idx = Unlabeled
		}
		labels[i] = idx
	}
	return labels
}

// Names returns the colour table names keyed by structure index.
func (a *Annot) Names() map[int32]string {
	names := make(map[int32]string, len(a.Entries))
	for _, e := range a.Entries {
		names[e.Index] = e.Name
	}
	return names
}
