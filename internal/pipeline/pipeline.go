// Package pipeline sequences the extraction stages, isolates per-region
// failures and writes the manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/atlasmesh/internal/atlas"
	"github.com/Faultbox/atlasmesh/internal/config"
	"github.com/Faultbox/atlasmesh/internal/coords"
	"github.com/Faultbox/atlasmesh/internal/export"
	"github.com/Faultbox/atlasmesh/internal/logger"
	"github.com/Faultbox/atlasmesh/internal/mesh"
	"github.com/Faultbox/atlasmesh/internal/regions"
	"github.com/Faultbox/atlasmesh/internal/volume"
	"github.com/Faultbox/atlasmesh/pkg/math"
)

// Stage names, in execution order.
const (
	StageCortical    = "cortical"
	StageGlass       = "glass"
	StageSubcortical = "subcortical"
	StageCerebellum  = "cerebellum"
)

const (
	missingLabelsShown  = 10
	availableNamesShown = 15
)

// Report is everything a run produced.
type Report struct {
	// Outcomes holds one entry per configured region in stage order.
	Outcomes []Outcome
	Manifest *export.Manifest
	Summary  export.Summary
	// Frame is nil when the cortical stage could not establish it.
	Frame *coords.Frame
	// StageErrors aggregates the failures that aborted whole stages.
	StageErrors error
}

// Runner holds the run-wide collaborators. Stages share only read-only
// state, so regions within a stage may be processed concurrently.
type Runner struct {
	cfg       *config.Config
	exporter  *export.Exporter
	extractor *volume.Extractor
	// Decimator simplifies meshes over budget.
	Decimator mesh.Decimator
}

// New returns a runner for cfg using the quadric decimator.
func New(cfg *config.Config) *Runner {
	return &Runner{
		cfg:       cfg,
		exporter:  export.NewExporter(cfg.Output.MeshDir),
		extractor: volume.NewExtractor(cfg.Volume.MinVoxels, cfg.Volume.SearchIters),
		Decimator: mesh.NewQuadricDecimator(),
	}
}

// Run executes every stage with cfg.
func Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	return New(cfg).Run(ctx)
}

// corticalSource is the stage 1 state later stages read: the reference
// surface already mapped into the viewer frame, its parcellation and the
// frame itself.
type corticalSource struct {
	surface *mesh.Mesh
	parc    *atlas.Parcellation
	frame   coords.Frame
}

// Run executes the four stages in order and writes the manifest. Region and
// stage failures are recorded in the report; the returned error is only set
// when the run was cancelled or the manifest could not be written.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	record := func(stage string, outs []Outcome, err error) {
		rep.Outcomes = append(rep.Outcomes, outs...)
		if err != nil {
			rep.StageErrors = multierr.Append(rep.StageErrors, fmt.Errorf("stage %s: %w", stage, err))
		}
	}

	logger.Info("stage started", logger.Stage(StageCortical))
	src, err := r.loadCortical()
	if err != nil {
		logger.Error("cortical sources unavailable", logger.Stage(StageCortical), zap.Error(err))
		record(StageCortical, failAll(regions.CorticalRegions(), err), err)
	} else {
		rep.Frame = &src.frame
		outs, err := r.runRegions(ctx, regions.CorticalRegions(), func(s regions.Spec) Outcome {
			return r.surfaceRegion(src, s)
		})
		if err != nil {
			return rep, err
		}
		record(StageCortical, outs, nil)
	}

	logger.Info("stage started", logger.Stage(StageGlass))
	glass := []regions.Spec{regions.GlassShell()}
	if src == nil {
		record(StageGlass, failAll(glass, missingFrame(StageGlass)), nil)
	} else {
		outs, err := r.runRegions(ctx, glass, func(s regions.Spec) Outcome {
			return r.surfaceRegion(src, s)
		})
		if err != nil {
			return rep, err
		}
		record(StageGlass, outs, nil)
	}

	for _, st := range []struct {
		name   string
		source config.VolumeSource
		specs  []regions.Spec
	}{
		{StageSubcortical, r.cfg.Sources.Subcortical, regions.SubcorticalRegions()},
		{StageCerebellum, r.cfg.Sources.Cerebellum, []regions.Spec{regions.Cerebellum()}},
	} {
		logger.Info("stage started", logger.Stage(st.name))
		outs, stageErr, err := r.volumeStage(ctx, st.name, st.source, st.specs, rep.Frame)
		if err != nil {
			return rep, err
		}
		record(st.name, outs, stageErr)
	}

	rep.Manifest = export.NewManifest()
	for _, o := range rep.Outcomes {
		if o.Entry != nil {
			rep.Manifest.Add(o.ID, *o.Entry)
		}
	}
	if err := rep.Manifest.WriteFile(r.cfg.Output.Manifest); err != nil {
		return rep, err
	}
	logger.Info("manifest written", zap.String("path", r.cfg.Output.Manifest), zap.Int("regions", rep.Manifest.Len()))

	rep.Summary = export.Summarize(rep.Manifest, regions.ExpectedIDs())
	rep.Summary.Log()
	return rep, nil
}

// loadCortical reads the reference surface and parcellation, computes the
// run's frame from the non-medial vertices and maps the surface into it.
func (r *Runner) loadCortical() (*corticalSource, error) {
	surface, err := atlas.LoadSurface(r.cfg.Sources.Surface)
	if err != nil {
		return nil, err
	}
	parc, err := atlas.LoadParcellation(r.cfg.Sources.Parcellation)
	if err != nil {
		return nil, err
	}
	if len(parc.Labels) != surface.VertexCount() {
		return nil, fmt.Errorf("%w: parcellation has %d labels for %d surface vertices",
			atlas.ErrIOFailure, len(parc.Labels), surface.VertexCount())
	}
	logger.Info("cortical sources loaded",
		zap.Int("vertices", surface.VertexCount()),
		zap.Int("faces", surface.FaceCount()),
		zap.Stringer("encoding", parc.Encoding),
		zap.Int("labels", parc.Table.Len()))

	if missing := regions.MissingLabels(regions.CorticalRegions(), parc.Table); len(missing) > 0 {
		shown := missing[:min(missingLabelsShown, len(missing))]
		logger.Warn("configured labels absent from parcellation",
			zap.Int("count", len(missing)),
			zap.Strings("labels", shown),
			zap.Int("more", len(missing)-len(shown)))
	}

	shell, err := regions.GlassShell().Resolve(parc.Table)
	if err != nil {
		return nil, err
	}
	reference := shell.Mask(parc.Labels)

	t := r.cfg.Transform
	target := math.Vec3{X: t.Target[0], Y: t.Target[1], Z: t.Target[2]}
	frame, err := coords.NewFrame(surface.Vertices, reference, t.Scale, target, coords.CentroidMethod(t.Centroid))
	if err != nil {
		return nil, err
	}
	if err := frame.Check(surface.Vertices, reference); err != nil {
		return nil, err
	}
	offset := frame.Offset.Array()
	logger.Info("coordinate frame established",
		zap.Float64s("offset", offset[:]),
		zap.String("centroid", string(frame.Method)))

	mapped := surface.Clone()
	mapped.MapVertices(frame.Apply)
	if frame.ReversesWinding() {
		mapped.FlipWinding()
	}
	return &corticalSource{surface: mapped, parc: parc, frame: frame}, nil
}

// surfaceRegion carves one region out of the shared surface.
func (r *Runner) surfaceRegion(src *corticalSource, spec regions.Spec) Outcome {
	sel, err := spec.Resolve(src.parc.Table)
	if err != nil {
		logger.Warn("region skipped", logger.Region(spec.ID), zap.Error(err))
		return failed(spec, err)
	}
	m, err := mesh.Submesh(src.surface.Vertices, src.surface.Faces, sel.Mask(src.parc.Labels))
	if err != nil {
		logger.Warn("region skipped", logger.Region(spec.ID), zap.Error(err))
		return failed(spec, err)
	}
	return r.finish(spec, sel, m)
}

// volumeStage loads one volumetric atlas and extracts every spec from it.
// stageErr reports a source failure that aborted the stage; err is only set
// on cancellation.
func (r *Runner) volumeStage(ctx context.Context, stage string, source config.VolumeSource, specs []regions.Spec, frame *coords.Frame) (outs []Outcome, stageErr, err error) {
	if frame == nil {
		logger.Warn("stage skipped", logger.Stage(stage), zap.Error(missingFrame(stage)))
		return failAll(specs, missingFrame(stage)), nil, nil
	}
	va, loadErr := atlas.LoadVolumeAtlas(source.Image, source.Labels)
	if loadErr != nil {
		logger.Error("volume atlas unavailable", logger.Stage(stage), zap.Error(loadErr))
		return failAll(specs, loadErr), loadErr, nil
	}
	logger.Info("volume atlas loaded",
		logger.Stage(stage),
		zap.Ints("dims", va.Image.Dims[:]),
		zap.Int("labels", va.Table.Len()))

	outs, err = r.runRegions(ctx, specs, func(s regions.Spec) Outcome {
		return r.volumeRegion(va, *frame, s)
	})
	return outs, nil, err
}

// volumeRegion extracts one structure from a volumetric atlas.
func (r *Runner) volumeRegion(va *atlas.VolumeAtlas, frame coords.Frame, spec regions.Spec) Outcome {
	sel, err := spec.Resolve(va.Table)
	if err != nil {
		fields := []zap.Field{logger.Region(spec.ID), zap.Strings("tried", spec.Labels)}
		if errors.Is(err, regions.ErrNoMatch) {
			names := va.Table.Names()
			fields = append(fields, zap.Strings("available", names[:min(availableNamesShown, len(names))]))
		}
		logger.Warn("no atlas label matched", fields...)
		return failed(spec, err)
	}
	logger.Debug("labels resolved",
		logger.Region(spec.ID),
		zap.Strings("matched", sel.Matched),
		zap.String("strategy", sel.Strategy))

	m, err := r.extractor.Extract(va, sel.Keys, frame)
	if err != nil {
		logger.Warn("region skipped", logger.Region(spec.ID), zap.Strings("matched", sel.Matched), zap.Error(err))
		o := failed(spec, err)
		o.Matched = sel.Matched
		return o
	}
	return r.finish(spec, sel, m)
}

// finish simplifies m to its category budget and exports it.
func (r *Runner) finish(spec regions.Spec, sel regions.Selection, m *mesh.Mesh) Outcome {
	budget, ok := r.budget(spec.Category)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnknownCategory, spec.Category)
		logger.Error("region skipped", logger.Region(spec.ID), zap.Error(err))
		o := failed(spec, err)
		o.Matched = sel.Matched
		return o
	}

	before := m.FaceCount()
	out, simplifyErr := mesh.Simplify(m, budget, r.Decimator)
	if simplifyErr != nil {
		logger.Warn("simplification failed, exporting full mesh", logger.Region(spec.ID), zap.Error(simplifyErr))
	}

	entry, err := r.exporter.Export(spec.ID, spec.Category, out)
	if err != nil {
		logger.Error("export failed", logger.Region(spec.ID), zap.Error(err))
		o := failed(spec, err)
		o.Matched = sel.Matched
		return o
	}

	logger.Info("region done",
		logger.Region(spec.ID),
		zap.Strings("matched", sel.Matched),
		zap.Int("faces_before", before),
		zap.Int("faces", entry.FaceCount))
	return Outcome{
		ID:       spec.ID,
		Category: spec.Category,
		Kind:     Classify(simplifyErr),
		Err:      simplifyErr,
		Matched:  sel.Matched,
		Entry:    &entry,
	}
}

func (r *Runner) budget(c regions.Category) (int, bool) {
	b := r.cfg.Budgets
	switch c {
	case regions.Cortical:
		return b.Cortical, true
	case regions.Subcortical:
		return b.Subcortical, true
	case regions.Glass:
		return b.Glass, true
	case regions.Cerebellar:
		return b.Cerebellar, true
	}
	return 0, false
}

// runRegions applies fn to every spec on a bounded worker pool. Results are
// stored by position so the output does not depend on scheduling.
func (r *Runner) runRegions(ctx context.Context, specs []regions.Spec, fn func(regions.Spec) Outcome) ([]Outcome, error) {
	outs := make([]Outcome, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.cfg.Pipeline.Workers))
	for i, spec := range specs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outs[i] = fn(spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

func failAll(specs []regions.Spec, err error) []Outcome {
	outs := make([]Outcome, len(specs))
	for i, s := range specs {
		outs[i] = failed(s, err)
	}
	return outs
}

func missingFrame(stage string) error {
	return fmt.Errorf("%w: stage %s needs the cortical stage", ErrMissingFrame, stage)
}
