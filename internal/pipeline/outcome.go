package pipeline

import (
	"errors"

	"github.com/Faultbox/atlasmesh/internal/export"
	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/internal/regions"
	"github.com/Faultbox/atlasmesh/internal/volume"
)

// ErrMissingFrame is reported for regions whose stage runs without the
// coordinate frame from the cortical stage.
var ErrMissingFrame = errors.New("coordinate frame unavailable")

// ErrUnknownCategory is reported for regions whose category has no face
// budget.
var ErrUnknownCategory = errors.New("no face budget for category")

// Kind classifies how a region's processing ended.
type Kind int

const (
	// Exported means the mesh was written and listed in the manifest.
	Exported Kind = iota
	// ConfigurationGap means no candidate label exists in this atlas version.
	ConfigurationGap
	// EmptyResult means the mask or volume selected nothing usable.
	EmptyResult
	// IOFailure means a source the region depends on could not be read.
	IOFailure
	// SimplificationFailure means decimation failed and the full mesh was
	// exported instead.
	SimplificationFailure
	// ExportFailure means the mesh could not be serialized.
	ExportFailure
	// MissingFrame means the stage ran without a coordinate frame.
	MissingFrame
)

var kindNames = map[Kind]string{
	Exported:              "exported",
	ConfigurationGap:      "configuration-gap",
	EmptyResult:           "empty-result",
	IOFailure:             "io-failure",
	SimplificationFailure: "simplification-failure",
	ExportFailure:         "export-failure",
	MissingFrame:          "missing-frame",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// InManifest reports whether regions ending with k are listed in the
// manifest.
func (k Kind) InManifest() bool {
	return k == Exported || k == SimplificationFailure
}

// Outcome is the result of processing one region.
type Outcome struct {
	ID       string
	Category regions.Category
	Kind     Kind
	// Err explains every Kind except Exported.
	Err error
	// Matched lists the atlas label names the region resolved to.
	Matched []string
	// Entry is set when the region is in the manifest.
	Entry *export.Entry
}

// Classify maps an error from any processing step onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Exported
	case errors.Is(err, ErrMissingFrame):
		return MissingFrame
	case errors.Is(err, export.ErrExport):
		return ExportFailure
	case errors.Is(err, mesh.ErrSimplification):
		return SimplificationFailure
	case errors.Is(err, regions.ErrNoMatch), errors.Is(err, ErrUnknownCategory):
		return ConfigurationGap
	case errors.Is(err, mesh.ErrEmptyMesh), errors.Is(err, volume.ErrTooFewVoxels):
		return EmptyResult
	default:
		return IOFailure
	}
}

func failed(spec regions.Spec, err error) Outcome {
	return Outcome{ID: spec.ID, Category: spec.Category, Kind: Classify(err), Err: err}
}
