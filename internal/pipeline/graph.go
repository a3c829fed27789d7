// Package pipeline derives the leaf artifacts from a source image through a
// lazily evaluated, memoized graph of stages.
package pipeline

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"leaffliction/internal/colorprofile"
	"leaffliction/internal/debug"
	"leaffliction/internal/debug/timing"
	apperrors "leaffliction/internal/errors"
	"leaffliction/internal/landmark"
	"leaffliction/internal/logger"
	"leaffliction/internal/processing/morphology"
	"leaffliction/internal/raster"
	"leaffliction/internal/region"
	"leaffliction/internal/rembg"
	"leaffliction/internal/scratch"
	"leaffliction/internal/segment"
	"leaffliction/internal/shape"
)

const component = "Pipeline"

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

type Config struct {
	// Stages is the set produced by Get without arguments. Empty selects
	// DefaultStages.
	Stages []Stage
	// Output defaults to Collect.
	Output OutputPolicy
	// Debug sends the intermediate results of every stage to the policy's
	// debug sink.
	Debug bool

	Segment    segment.Options
	Region     region.Options
	Shape      shape.Options
	Landmark   landmark.Options
	Chart      colorprofile.Options
	BlurKernel int

	// Remover defaults to rembg.Passthrough.
	Remover rembg.BackgroundRemover
	Logger  logger.Logger
}

func DefaultConfig() Config {
	return Config{
		Output:     Collect{},
		Segment:    segment.DefaultOptions(),
		Region:     region.DefaultOptions(),
		Shape:      shape.DefaultOptions(),
		Landmark:   landmark.DefaultOptions(),
		Chart:      colorprofile.DefaultOptions(),
		BlurKernel: 3,
	}
}

func (c Config) validate() error {
	for _, s := range c.Stages {
		if !s.IsOutput() {
			return apperrors.NewInputError(fmt.Sprintf("unknown stage %q", s), nil)
		}
	}

	switch p := c.Output.(type) {
	case Render:
		if p.Display == nil {
			return apperrors.NewInputError("render policy needs a display callback", nil)
		}
	case Persist:
		if p.Destination == "" {
			return apperrors.NewInputError("persist policy needs a destination", nil)
		}
	case Collect, nil:
	default:
		return apperrors.NewInputError(fmt.Sprintf("unsupported output policy %T", p), nil)
	}

	if c.BlurKernel <= 0 || c.BlurKernel%2 == 0 {
		return apperrors.NewInputError(fmt.Sprintf("blur kernel must be odd and positive, got %d", c.BlurKernel), nil)
	}
	if err := c.Segment.Validate(); err != nil {
		return apperrors.NewInputError("invalid segmentation options", err)
	}
	return nil
}

// Graph computes stages of one source image on demand. Every node is
// computed at most once and output side effects happen at most once per
// stage. A Graph must not be shared between goroutines.
type Graph struct {
	src *raster.Image
	cfg Config
	log logger.Logger

	segmenter *segment.Segmenter
	region    *region.Extractor
	shapes    *shape.Analyzer
	landmarks *landmark.Extractor
	profiler  *colorprofile.Profiler

	cache   map[Stage]raster.Artifact
	emitted map[Stage]bool

	objects []shape.Object
	points  landmark.Landmarks
	profile *colorprofile.Profile
	timing  *timing.Tracker
	sink    debug.Sink
	scratch *scratch.Space
	closed  bool
}

// New builds a graph over src and takes ownership of it.
func New(src *raster.Image, cfg Config) (*Graph, error) {
	if src == nil {
		return nil, apperrors.NewInputError("source image is nil", nil)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Output == nil {
		cfg.Output = Collect{}
	}
	if len(cfg.Stages) == 0 {
		cfg.Stages = DefaultStages()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	g := &Graph{
		src:       src,
		cfg:       cfg,
		log:       log,
		segmenter: segment.New(cfg.Segment, cfg.Remover),
		region:    region.NewExtractor(cfg.Region),
		shapes:    shape.NewAnalyzer(cfg.Shape),
		landmarks: landmark.NewExtractor(cfg.Landmark),
		profiler:  colorprofile.NewProfiler(cfg.Chart),
		cache:     make(map[Stage]raster.Artifact),
		emitted:   make(map[Stage]bool),
		timing:    timing.NewTracker(),
		sink:      debug.Discard,
	}
	if cfg.Debug {
		g.sink = g.debugSink()
	}

	size := src.Size()
	g.log.Debug(component, "graph created", map[string]interface{}{
		"width":  size.X,
		"height": size.Y,
		"stages": cfg.Stages,
		"policy": fmt.Sprintf("%T", cfg.Output),
	})
	return g, nil
}

// Source returns the image the graph was built over.
func (g *Graph) Source() *raster.Image { return g.src }

// Timings returns the per-stage computation times.
func (g *Graph) Timings() *timing.Tracker { return g.timing }

// Get returns the requested stages, computing whatever they depend on.
// With no arguments it returns the configured stage set. Requested stages
// are emitted through the output policy; upstream nodes are not.
func (g *Graph) Get(stages ...Stage) (*Artifacts, error) {
	if len(stages) == 0 {
		stages = g.cfg.Stages
	}
	for _, s := range stages {
		if !s.IsOutput() {
			return nil, apperrors.NewInputError(fmt.Sprintf("stage %q cannot be requested", s), nil)
		}
	}

	arts := newArtifacts()
	err := g.scoped(func() error {
		for _, s := range stages {
			a, err := g.resolve(s)
			if err != nil {
				return err
			}
			img := a.(*raster.Image)
			if err := g.emit(s, img); err != nil {
				return err
			}
			arts.add(s, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return arts, nil
}

// resolve returns the cached artifact of s, computing its dependencies and
// then s itself on first use.
func (g *Graph) resolve(s Stage) (raster.Artifact, error) {
	if a, ok := g.cache[s]; ok {
		return a, nil
	}

	n, ok := table[s]
	if !ok {
		return nil, apperrors.NewInputError(fmt.Sprintf("unknown stage %q", s), nil)
	}
	for _, dep := range n.deps {
		if _, err := g.resolve(dep); err != nil {
			return nil, err
		}
	}

	stop := g.timing.Start(string(s))
	a, err := g.thunk(s)()
	elapsed := stop()
	if err != nil {
		g.log.Error(component, err, map[string]interface{}{"stage": s})
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperrors.NewStageError(string(s), "computation failed", err)
	}

	g.cache[s] = a
	g.log.Debug(component, "stage computed", map[string]interface{}{
		"stage":    s,
		"duration": elapsed.Round(time.Microsecond).String(),
	})
	return a, nil
}

func (g *Graph) thunk(s Stage) func() (raster.Artifact, error) {
	switch s {
	case Original:
		return func() (raster.Artifact, error) { return g.src, nil }
	case Foreground:
		return func() (raster.Artifact, error) {
			return g.segmenter.Foreground(g.src, g.stageSink(s))
		}
	case Disease:
		return func() (raster.Artifact, error) {
			return g.segmenter.Disease(g.src, g.mask(Foreground), g.stageSink(s))
		}
	case Kept:
		return func() (raster.Artifact, error) {
			roi, err := g.region.Region(g.src.Bounds())
			if err != nil {
				return nil, err
			}
			return region.Partial(g.mask(Foreground), roi)
		}
	case NoBackground:
		return func() (raster.Artifact, error) {
			return paintOutside(g.src, g.mask(Foreground))
		}
	case Mask:
		return func() (raster.Artifact, error) {
			return paintOutside(g.src, g.mask(Disease))
		}
	case Blur:
		return func() (raster.Artifact, error) {
			return morphology.Blur(g.mask(Foreground), g.cfg.BlurKernel)
		}
	case ROI:
		return func() (raster.Artifact, error) {
			return g.region.Annotate(g.src, g.mask(Kept))
		}
	case Analyze:
		return func() (raster.Artifact, error) {
			annotated, objects, err := g.shapes.Analyze(g.src, g.mask(Kept))
			if err != nil {
				return nil, err
			}
			g.objects = objects
			return annotated, nil
		}
	case Pseudolandmarks:
		return func() (raster.Artifact, error) {
			points, annotated, err := g.landmarks.Extract(g.src, g.mask(Kept))
			if err != nil {
				return nil, err
			}
			g.points = points
			return annotated, nil
		}
	case ColorHistogram:
		return func() (raster.Artifact, error) {
			profile, err := g.colorProfile()
			if err != nil {
				return nil, err
			}
			return g.profiler.Render(profile)
		}
	}
	return func() (raster.Artifact, error) {
		return nil, fmt.Errorf("no computation for stage %q", s)
	}
}

// mask returns a cached mask node. Callers resolve it first.
func (g *Graph) mask(s Stage) *raster.Mask {
	return g.cache[s].(*raster.Mask)
}

// paintOutside paints every pixel not set in keep white.
func paintOutside(src *raster.Image, keep *raster.Mask) (*raster.Image, error) {
	outside := keep.Invert()
	defer outside.Close()
	return raster.Paint(src, outside, white)
}

func (g *Graph) colorProfile() (*colorprofile.Profile, error) {
	if g.profile != nil {
		return g.profile, nil
	}
	if _, err := g.resolve(Kept); err != nil {
		return nil, err
	}
	profile, err := g.profiler.Profile(g.src, g.mask(Kept))
	if err != nil {
		return nil, err
	}
	g.profile = profile
	return profile, nil
}

func (g *Graph) maskNode(s Stage) (*raster.Mask, error) {
	var m *raster.Mask
	err := g.scoped(func() error {
		if _, err := g.resolve(s); err != nil {
			return err
		}
		m = g.mask(s)
		return nil
	})
	return m, err
}

// Foreground returns the foreground mask.
func (g *Graph) Foreground() (*raster.Mask, error) { return g.maskNode(Foreground) }

// Disease returns the disease mask.
func (g *Graph) Disease() (*raster.Mask, error) { return g.maskNode(Disease) }

// Kept returns the foreground restricted to the region of interest.
func (g *Graph) Kept() (*raster.Mask, error) { return g.maskNode(Kept) }

// Objects returns the shape measurements of the kept objects.
func (g *Graph) Objects() ([]shape.Object, error) {
	err := g.scoped(func() error {
		_, err := g.resolve(Analyze)
		return err
	})
	return g.objects, err
}

// Landmarks returns the pseudolandmarks of the largest kept object.
func (g *Graph) Landmarks() (landmark.Landmarks, error) {
	err := g.scoped(func() error {
		_, err := g.resolve(Pseudolandmarks)
		return err
	})
	return g.points, err
}

// ColorProfile returns the color distribution of the kept pixels.
func (g *Graph) ColorProfile() (*colorprofile.Profile, error) {
	var p *colorprofile.Profile
	err := g.scoped(func() error {
		var err error
		p, err = g.colorProfile()
		return err
	})
	return p, err
}

// Close releases every cached artifact, the source image included, and
// any scratch space. It is safe to call more than once.
func (g *Graph) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true

	var err error
	if g.scratch != nil {
		err = g.scratch.Close()
		g.scratch = nil
	}
	for s, a := range g.cache {
		if s != Original {
			a.Close()
		}
	}
	g.src.Close()
	g.cache = nil
	return err
}
