package export

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/internal/regions"
)

//go:embed schema.json
var manifestSchema string

var compiledSchema = jsonschema.MustCompileString("schema.json", manifestSchema)

// Bounds is an axis-aligned bounding box in viewer coordinates.
type Bounds struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// Entry describes one exported mesh.
type Entry struct {
	File        string           `json:"file"`
	Type        regions.Category `json:"type"`
	VertexCount int              `json:"vertexCount"`
	FaceCount   int              `json:"faceCount"`
	Bounds      Bounds           `json:"bounds"`
}

// NewEntry describes m as written to file.
func NewEntry(file string, category regions.Category, m *mesh.Mesh) Entry {
	b := m.Bounds()
	return Entry{
		File:        file,
		Type:        category,
		VertexCount: m.VertexCount(),
		FaceCount:   m.FaceCount(),
		Bounds:      Bounds{Min: b.Min.Array(), Max: b.Max.Array()},
	}
}

// Manifest maps region ids to entries. It keeps insertion order so the
// written file lists regions in stage order.
type Manifest struct {
	ids     []string
	entries map[string]Entry
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

// Add records e under id, replacing any earlier entry in place.
func (m *Manifest) Add(id string, e Entry) {
	if _, ok := m.entries[id]; !ok {
		m.ids = append(m.ids, id)
	}
	m.entries[id] = e
}

// Get returns the entry for id.
func (m *Manifest) Get(id string) (Entry, bool) {
	e, ok := m.entries[id]
	return e, ok
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.ids)
}

// IDs returns region ids in insertion order.
func (m *Manifest) IDs() []string {
	return append([]string(nil), m.ids...)
}

// MarshalJSON writes the entries as one object in insertion order.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.entries[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object of entries, keeping key order.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if tok, err := dec.Token(); err != nil {
		return err
	} else if tok != json.Delim('{') {
		return fmt.Errorf("manifest: expected object, got %v", tok)
	}

	*m = *NewManifest()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("manifest: expected region id, got %v", tok)
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("manifest: %s: %w", id, err)
		}
		m.Add(id, e)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks the serialized manifest against its JSON schema.
func (m *Manifest) Validate() error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return ValidateJSON(data)
}

// ValidateJSON checks raw manifest bytes against the JSON schema.
func ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: manifest is not JSON: %w", ErrExport, err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return fmt.Errorf("%w: manifest schema: %w", ErrExport, err)
	}
	return nil
}

// WriteFile validates the manifest and writes it to path with two-space
// indentation, creating parent directories as needed.
func (m *Manifest) WriteFile(path string) error {
	if err := m.Validate(); err != nil {
		return err
	}
	compact, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: encoding manifest: %w", ErrExport, err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return fmt.Errorf("%w: encoding manifest: %w", ErrExport, err)
	}
	out.WriteByte('\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrExport, err)
		}
	}
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteFile.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := NewManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return m, nil
}

// relativeFile joins dir and name with forward slashes as the viewer
// expects. Manifest paths are relative to the working directory, so an
// absolute dir is rewritten against it.
func relativeFile(dir, name string) (string, error) {
	p := filepath.Join(dir, name)
	if filepath.IsAbs(p) {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		if p, err = filepath.Rel(wd, p); err != nil {
			return "", err
		}
	}
	return filepath.ToSlash(p), nil
}
