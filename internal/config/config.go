// Package config handles pipeline configuration loading and management.
package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/atlasmesh/internal/logger"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all pipeline settings.
type Config struct {
	Sources   SourcesConfig   `yaml:"sources"`
	Output    OutputConfig    `yaml:"output"`
	Transform TransformConfig `yaml:"transform"`
	Budgets   BudgetsConfig   `yaml:"budgets"`
	Volume    VolumeConfig    `yaml:"volume"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SourcesConfig holds atlas input paths.
type SourcesConfig struct {
	Surface      string       `yaml:"surface"`      // FreeSurfer or GIFTI reference surface
	Parcellation string       `yaml:"parcellation"` // .annot or .label.gii
	Subcortical  VolumeSource `yaml:"subcortical"`
	Cerebellum   VolumeSource `yaml:"cerebellum"`
}

// VolumeSource pairs a labelled NIfTI image with its label list.
type VolumeSource struct {
	Image  string `yaml:"image"`
	Labels string `yaml:"labels"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	MeshDir  string `yaml:"mesh_dir"`
	Manifest string `yaml:"manifest"`
}

// TransformConfig holds viewer frame settings.
type TransformConfig struct {
	Scale    float64    `yaml:"scale"`
	Target   [3]float64 `yaml:"target"`
	Centroid string     `yaml:"centroid"` // median or mean
}

// BudgetsConfig holds the face budget per output category.
type BudgetsConfig struct {
	Cortical    int `yaml:"cortical"`
	Subcortical int `yaml:"subcortical"`
	Glass       int `yaml:"glass"`
	Cerebellar  int `yaml:"cerebellar"`
}

// VolumeConfig holds iso-surface extraction settings.
type VolumeConfig struct {
	MinVoxels   int `yaml:"min_voxels"`
	SearchIters int `yaml:"search_iters"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Sources: SourcesConfig{
			Surface:      "data/atlases/fsaverage5/lh.pial",
			Parcellation: "data/atlases/fsaverage5/lh.aparc.a2009s.annot",
			Subcortical: VolumeSource{
				Image:  "data/atlases/harvard_oxford/HarvardOxford-sub-maxprob-thr25-1mm.nii.gz",
				Labels: "data/atlases/harvard_oxford/HarvardOxford-Subcortical.xml",
			},
			Cerebellum: VolumeSource{
				Image:  "data/atlases/aal/AAL.nii.gz",
				Labels: "data/atlases/aal/AAL.xml",
			},
		},
		Output: OutputConfig{
			MeshDir:  "data/brain_meshes",
			Manifest: "data/brain_regions_manifest.json",
		},
		Transform: TransformConfig{
			Scale:    1.0 / 75.0,
			Target:   [3]float64{0.55, 0.05, 0.10},
			Centroid: "median",
		},
		Budgets: BudgetsConfig{
			Cortical:    4000,
			Subcortical: 4000,
			Glass:       8000,
			Cerebellar:  4000,
		},
		Volume: VolumeConfig{
			MinVoxels:   20,
			SearchIters: 8,
		},
		Pipeline: PipelineConfig{
			Workers: 1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports every problem found. Each one wraps ErrInvalidConfig.
func (c *Config) Validate() error {
	var err error
	add := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Sources.Surface == "" {
		add("sources.surface is empty")
	}
	if c.Sources.Parcellation == "" {
		add("sources.parcellation is empty")
	}
	if c.Output.MeshDir == "" {
		add("output.mesh_dir is empty")
	}
	if c.Output.Manifest == "" {
		add("output.manifest is empty")
	}
	if c.Transform.Scale <= 0 {
		add("transform.scale must be positive, got %g", c.Transform.Scale)
	}
	switch c.Transform.Centroid {
	case "median", "mean":
	default:
		add("transform.centroid must be median or mean, got %q", c.Transform.Centroid)
	}

	budgets := []struct {
		name  string
		value int
	}{
		{"cortical", c.Budgets.Cortical},
		{"subcortical", c.Budgets.Subcortical},
		{"glass", c.Budgets.Glass},
		{"cerebellar", c.Budgets.Cerebellar},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			add("budgets.%s must be positive, got %d", b.name, b.value)
		}
	}

	if c.Volume.MinVoxels < 1 {
		add("volume.min_voxels must be at least 1, got %d", c.Volume.MinVoxels)
	}
	if c.Volume.SearchIters < 0 {
		add("volume.search_iters must not be negative, got %d", c.Volume.SearchIters)
	}
	if c.Pipeline.Workers < 1 {
		add("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}
	if !logger.ValidLevel(c.Logging.Level) {
		add("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return err
}
