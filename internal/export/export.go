// Package export writes region meshes as GLB files and indexes them in the
// brain regions manifest.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/Faultbox/atlasmesh/internal/logger"
	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/internal/regions"
)

// ErrExport wraps every serialization failure.
var ErrExport = errors.New("export failed")

// Exporter writes meshes into MeshDir. It holds no state besides the
// directory, so concurrent Export calls for distinct ids are safe.
type Exporter struct {
	MeshDir string
}

// NewExporter returns an exporter writing into meshDir.
func NewExporter(meshDir string) *Exporter {
	return &Exporter{MeshDir: meshDir}
}

// Export writes m as <MeshDir>/<id>.glb and returns its manifest entry.
// Empty or invalid meshes are refused so the manifest only lists usable
// geometry.
func (e *Exporter) Export(id string, category regions.Category, m *mesh.Mesh) (Entry, error) {
	if m == nil || m.FaceCount() == 0 {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrExport, id, mesh.ErrEmptyMesh)
	}
	if err := m.Validate(); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrExport, id, err)
	}
	if err := os.MkdirAll(e.MeshDir, 0755); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrExport, id, err)
	}

	name := id + ".glb"
	path := filepath.Join(e.MeshDir, name)
	file, err := relativeFile(e.MeshDir, name)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrExport, id, err)
	}
	if err := WriteGLB(path, id, m); err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrExport, id, err)
	}

	entry := NewEntry(file, category, m)

	fields := []zap.Field{
		logger.Region(id),
		zap.String("type", string(category)),
		zap.Int("vertices", entry.VertexCount),
		zap.Int("faces", entry.FaceCount),
	}
	if info, err := os.Stat(path); err == nil {
		fields = append(fields, zap.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	logger.Info("exported mesh", fields...)
	return entry, nil
}

// Summary groups exported ids by category and lists the expected ids that
// were never exported.
type Summary struct {
	ByCategory map[regions.Category][]string
	Missing    []string
}

// Total returns the number of exported regions.
func (s Summary) Total() int {
	n := 0
	for _, ids := range s.ByCategory {
		n += len(ids)
	}
	return n
}

// Summarize compares m against the expected region ids.
func Summarize(m *Manifest, expected []string) Summary {
	s := Summary{ByCategory: make(map[regions.Category][]string)}
	for _, id := range m.ids {
		e := m.entries[id]
		s.ByCategory[e.Type] = append(s.ByCategory[e.Type], id)
	}
	for _, id := range expected {
		if _, ok := m.entries[id]; !ok {
			s.Missing = append(s.Missing, id)
		}
	}
	return s
}

// Log writes the summary through the logger, one line per category in
// stage order.
func (s Summary) Log() {
	logger.Info("export summary", zap.Int("regions", s.Total()))
	for _, c := range regions.Categories {
		ids := s.ByCategory[c]
		logger.Info("category", zap.String("type", string(c)), zap.Int("count", len(ids)), zap.Strings("regions", ids))
	}
	if len(s.Missing) > 0 {
		logger.Warn("expected regions missing from manifest", zap.Int("count", len(s.Missing)), zap.Strings("regions", s.Missing))
	}
}
