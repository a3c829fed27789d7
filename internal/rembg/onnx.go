package rembg

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"leaffliction/internal/raster"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// ONNXConfig locates a U^2-Net style saliency model and the onnxruntime
// shared library.
type ONNXConfig struct {
	ModelPath   string
	LibraryPath string
	InputSize   int
	Threads     int
}

var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

// The onnxruntime environment is process wide; it is initialised once and
// never torn down.
var (
	envOnce sync.Once
	envErr  error
)

func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// ONNX runs a saliency network and uses its output as an alpha matte. The
// session is created on first use so that a missing model surfaces as a
// stage failure rather than a construction failure.
type ONNX struct {
	cfg        ONNXConfig
	options    *ort.SessionOptions
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

func NewONNX(cfg ONNXConfig) *ONNX {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 320
	}
	if cfg.Threads <= 0 {
		cfg.Threads = 1
	}
	return &ONNX{cfg: cfg}
}

func (o *ONNX) open() error {
	if o.session != nil {
		return nil
	}

	if _, err := os.Stat(o.cfg.ModelPath); err != nil {
		return fmt.Errorf("background removal model unavailable: %w", err)
	}

	if err := initEnvironment(o.cfg.LibraryPath); err != nil {
		return fmt.Errorf("onnxruntime initialisation failed: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(o.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("reading model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("model %s has no inputs or outputs", o.cfg.ModelPath)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return err
	}
	if err := options.SetIntraOpNumThreads(o.cfg.Threads); err != nil {
		options.Destroy()
		return fmt.Errorf("setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(1); err != nil {
		options.Destroy()
		return fmt.Errorf("setting inter-op threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		o.cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		options,
	)
	if err != nil {
		options.Destroy()
		return fmt.Errorf("creating session: %w", err)
	}

	o.options = options
	o.session = session
	o.inputName = inputs[0].Name
	o.outputName = outputs[0].Name
	return nil
}

func (o *ONNX) Remove(img *raster.Image) (*raster.Image, error) {
	if err := o.open(); err != nil {
		return nil, err
	}

	src, err := img.ToImage()
	if err != nil {
		return nil, fmt.Errorf("image conversion failed: %w", err)
	}

	n := o.cfg.InputSize
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(n), int64(n)), preprocess(src, n))
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := o.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("model produced no output")
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	data := tensor.GetData()
	if len(data) < n*n {
		return nil, fmt.Errorf("output has %d values, want at least %d", len(data), n*n)
	}

	small, err := gocv.NewMatFromBytes(n, n, gocv.MatTypeCV8UC1, matte(data[:n*n]))
	if err != nil {
		return nil, err
	}
	defer small.Close()

	size := img.Size()
	alpha := gocv.NewMat()
	defer alpha.Close()
	gocv.Resize(small, &alpha, size, 0, 0, gocv.InterpolationLinear)

	return Composite(img, alpha)
}

// preprocess resizes to n x n and lays out the ImageNet-normalised RGB
// planes in CHW order.
func preprocess(src image.Image, n int) []float32 {
	resized := resize.Resize(uint(n), uint(n), src, resize.Bilinear)
	plane := n * n
	out := make([]float32, 3*plane)

	bounds := resized.Bounds()
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [3]float32{float32(r>>8) / 255, float32(g>>8) / 255, float32(b>>8) / 255}
			for c := 0; c < 3; c++ {
				out[c*plane+y*n+x] = (rgb[c] - imagenetMean[c]) / imagenetStd[c]
			}
		}
	}
	return out
}

// matte min-max normalises a saliency map to 0..255.
func matte(saliency []float32) []byte {
	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range saliency {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]byte, len(saliency))
	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, v := range saliency {
		out[i] = uint8(math.Round(float64((v - lo) / span * 255)))
	}
	return out
}

func (o *ONNX) Close() error {
	var err error
	if o.session != nil {
		err = o.session.Destroy()
		o.session = nil
	}
	if o.options != nil {
		o.options.Destroy()
		o.options = nil
	}
	return err
}
