package atlas

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/atlasmesh/pkg/formats"
)

// VolumeAtlas is a labelled NIfTI image with its value-to-name table.
type VolumeAtlas struct {
	Image *formats.NIfTI
	Table *LabelTable
}

// LoadVolumeAtlas reads a NIfTI label image and its label list. Value 0 is
// named "background" unless the list says otherwise. Errors wrap
// ErrIOFailure.
func LoadVolumeAtlas(imagePath, labelsPath string) (*VolumeAtlas, error) {
	img, err := formats.ParseNIfTIFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, imagePath, err)
	}
	entries, err := formats.ParseLabelListFile(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrIOFailure, labelsPath, err)
	}
	return NewVolumeAtlas(img, entries), nil
}

// NewVolumeAtlas pairs an already decoded image with its label entries.
func NewVolumeAtlas(img *formats.NIfTI, entries []formats.LabelEntry) *VolumeAtlas {
	names := map[int32]string{BackgroundKey: "background"}
	for _, e := range entries {
		names[e.Value] = e.Name
	}
	return &VolumeAtlas{Image: img, Table: NewLabelTable(names)}
}

// LabelAt returns the label key stored in voxel idx. Values are rounded so
// that float-typed label images compare reliably.
func (v *VolumeAtlas) LabelAt(idx int) int32 {
	return int32(gomath.Round(float64(v.Image.Voxels[idx])))
}
