// Package config loads the pipeline parameters from YAML and provides the
// defaults used when no file is given.
package config

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"leaffliction/internal/colorprofile"
	"leaffliction/internal/landmark"
	"leaffliction/internal/pipeline"
	"leaffliction/internal/region"
	"leaffliction/internal/rembg"
	"leaffliction/internal/segment"
	"leaffliction/internal/shape"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"
)

// Rect is a rectangle in pixel coordinates.
type Rect struct {
	X      int `yaml:"x"`
	Y      int `yaml:"y"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Segmentation parameters
	Segmentation struct {
		// Method is "shadow" (lightness silhouette intersected with the
		// background removal model) or "saturation".
		Method string `yaml:"method"`

		// ShadowThreshold is the lightness cutoff of the shadow-inclusive
		// silhouette
		ShadowThreshold float32 `yaml:"shadowThreshold"`

		// RemovedThreshold is the lightness cutoff applied to the model output
		RemovedThreshold float32 `yaml:"removedThreshold"`

		SaturationThreshold float32 `yaml:"saturationThreshold"`

		// FillSize is the minimum area of a kept connected component
		FillSize int `yaml:"fillSize"`

		ErodeKernel     int `yaml:"erodeKernel"`
		ErodeIterations int `yaml:"erodeIterations"`

		// DiseaseLow and DiseaseHigh span the (a*, b*) rectangle of the
		// disease color test, inclusive
		DiseaseLow  segment.ChromaPoint `yaml:"diseaseLow"`
		DiseaseHigh segment.ChromaPoint `yaml:"diseaseHigh"`
	} `yaml:"segmentation"`

	// Background removal model
	Remover struct {
		// Kind is "onnx" or "none"
		Kind        string `yaml:"kind"`
		ModelPath   string `yaml:"modelPath"`
		LibraryPath string `yaml:"libraryPath"`
		InputSize   int    `yaml:"inputSize"`
		Threads     int    `yaml:"threads"`
	} `yaml:"remover"`

	Region struct {
		// ROI restricts the kept objects. Omitted means the full frame.
		ROI         *Rect  `yaml:"roi,omitempty"`
		BorderWidth int    `yaml:"borderWidth"`
		BorderColor string `yaml:"borderColor"`
		Highlight   string `yaml:"highlight"`
	} `yaml:"region"`

	Blur struct {
		Kernel int `yaml:"kernel"`
	} `yaml:"blur"`

	Shape struct {
		Thickness int `yaml:"thickness"`
	} `yaml:"shape"`

	Landmarks struct {
		Count       int    `yaml:"count"`
		Radius      int    `yaml:"radius"`
		TopColor    string `yaml:"topColor"`
		BottomColor string `yaml:"bottomColor"`
		CenterColor string `yaml:"centerColor"`
	} `yaml:"landmarks"`

	Histogram struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"histogram"`

	// Output parameters
	Output struct {
		// Stages produced when none are requested
		Stages   []string `yaml:"stages"`
		Template string   `yaml:"template"`
		Ext      string   `yaml:"ext"`
		Debug    bool     `yaml:"debug"`
	} `yaml:"output"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
		// Format is "console" or "json"
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Default returns a configuration with default values
func Default() *Config {
	cfg := &Config{}

	seg := segment.DefaultOptions()
	cfg.Segmentation.Method = string(seg.Method)
	cfg.Segmentation.ShadowThreshold = seg.ShadowThreshold
	cfg.Segmentation.RemovedThreshold = seg.RemovedThreshold
	cfg.Segmentation.SaturationThreshold = seg.SaturationThreshold
	cfg.Segmentation.FillSize = seg.FillSize
	cfg.Segmentation.ErodeKernel = seg.ErodeKernel
	cfg.Segmentation.ErodeIterations = seg.ErodeIterations
	cfg.Segmentation.DiseaseLow = seg.DiseaseLow
	cfg.Segmentation.DiseaseHigh = seg.DiseaseHigh

	cfg.Remover.Kind = "onnx"
	cfg.Remover.ModelPath = "models/u2net.onnx"
	cfg.Remover.InputSize = 320

	reg := region.DefaultOptions()
	cfg.Region.BorderWidth = reg.BorderWidth
	cfg.Region.BorderColor = hex(reg.BorderColor)
	cfg.Region.Highlight = hex(reg.Highlight)

	cfg.Blur.Kernel = 3
	cfg.Shape.Thickness = shape.DefaultOptions().Thickness

	lm := landmark.DefaultOptions()
	cfg.Landmarks.Count = lm.Count
	cfg.Landmarks.Radius = lm.Radius
	cfg.Landmarks.TopColor = hex(lm.TopColor)
	cfg.Landmarks.BottomColor = hex(lm.BottomColor)
	cfg.Landmarks.CenterColor = hex(lm.CenterColor)

	chart := colorprofile.DefaultOptions()
	cfg.Histogram.Width = chart.Width
	cfg.Histogram.Height = chart.Height

	for _, s := range pipeline.DefaultStages() {
		cfg.Output.Stages = append(cfg.Output.Stages, s.String())
	}
	cfg.Output.Template = pipeline.DefaultTemplate
	cfg.Output.Ext = pipeline.DefaultExt

	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Load reads configuration from a YAML file on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultFile writes the default configuration to path
func CreateDefaultFile(path string) error {
	return Save(Default(), path)
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	if err := c.segmentOptions().Validate(); err != nil {
		return err
	}

	switch c.Remover.Kind {
	case "onnx", "none":
	default:
		return fmt.Errorf("unknown remover kind %q", c.Remover.Kind)
	}

	if _, err := c.regionOptions(); err != nil {
		return err
	}
	if _, err := c.landmarkOptions(); err != nil {
		return err
	}
	if c.Blur.Kernel <= 0 || c.Blur.Kernel%2 == 0 {
		return fmt.Errorf("blur kernel must be odd and positive, got %d", c.Blur.Kernel)
	}
	if _, err := c.stages(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) segmentOptions() segment.Options {
	return segment.Options{
		Method:              segment.Method(c.Segmentation.Method),
		ShadowThreshold:     c.Segmentation.ShadowThreshold,
		RemovedThreshold:    c.Segmentation.RemovedThreshold,
		SaturationThreshold: c.Segmentation.SaturationThreshold,
		FillSize:            c.Segmentation.FillSize,
		ErodeKernel:         c.Segmentation.ErodeKernel,
		ErodeIterations:     c.Segmentation.ErodeIterations,
		DiseaseLow:          c.Segmentation.DiseaseLow,
		DiseaseHigh:         c.Segmentation.DiseaseHigh,
	}
}

func (c *Config) regionOptions() (region.Options, error) {
	opts := region.Options{BorderWidth: c.Region.BorderWidth}
	if r := c.Region.ROI; r != nil {
		if r.Width <= 0 || r.Height <= 0 {
			return opts, fmt.Errorf("roi %dx%d is empty", r.Width, r.Height)
		}
		opts.ROI = image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
	}

	var err error
	if opts.BorderColor, err = parseColor(c.Region.BorderColor); err != nil {
		return opts, fmt.Errorf("region border color: %w", err)
	}
	if opts.Highlight, err = parseColor(c.Region.Highlight); err != nil {
		return opts, fmt.Errorf("region highlight: %w", err)
	}
	return opts, nil
}

func (c *Config) landmarkOptions() (landmark.Options, error) {
	opts := landmark.Options{Count: c.Landmarks.Count, Radius: c.Landmarks.Radius}
	if opts.Count < 1 {
		return opts, fmt.Errorf("landmark count must be positive, got %d", opts.Count)
	}

	var err error
	if opts.TopColor, err = parseColor(c.Landmarks.TopColor); err != nil {
		return opts, fmt.Errorf("landmark top color: %w", err)
	}
	if opts.BottomColor, err = parseColor(c.Landmarks.BottomColor); err != nil {
		return opts, fmt.Errorf("landmark bottom color: %w", err)
	}
	if opts.CenterColor, err = parseColor(c.Landmarks.CenterColor); err != nil {
		return opts, fmt.Errorf("landmark center color: %w", err)
	}
	return opts, nil
}

func (c *Config) stages() ([]pipeline.Stage, error) {
	return pipeline.ParseStages(strings.Join(c.Output.Stages, ","))
}

// Pipeline builds the graph configuration. The output policy and the
// remover are left for the caller to set.
func (c *Config) Pipeline() (pipeline.Config, error) {
	if err := c.Validate(); err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.DefaultConfig()
	cfg.Segment = c.segmentOptions()
	cfg.Region, _ = c.regionOptions()
	cfg.Landmark, _ = c.landmarkOptions()
	cfg.Shape.Thickness = c.Shape.Thickness
	cfg.Chart = colorprofile.Options{Width: c.Histogram.Width, Height: c.Histogram.Height}
	cfg.BlurKernel = c.Blur.Kernel
	cfg.Stages, _ = c.stages()
	cfg.Debug = c.Output.Debug
	return cfg, nil
}

// Persist returns the persist policy writing to dst.
func (c *Config) Persist(dst string) pipeline.Persist {
	return pipeline.Persist{Destination: dst, Template: c.Output.Template, Ext: c.Output.Ext}
}

// NewRemover builds the configured background remover. The caller closes
// it when it implements io.Closer.
func (c *Config) NewRemover() rembg.BackgroundRemover {
	if c.Remover.Kind == "none" {
		return rembg.Passthrough{}
	}
	return rembg.NewONNX(rembg.ONNXConfig{
		ModelPath:   c.Remover.ModelPath,
		LibraryPath: c.Remover.LibraryPath,
		InputSize:   c.Remover.InputSize,
		Threads:     c.Remover.Threads,
	})
}

func parseColor(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func hex(c color.RGBA) string {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Hex()
}
