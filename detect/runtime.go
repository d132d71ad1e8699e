package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

// Detector runs inference on one image and returns the raw output tensor plus
// its shape metadata. Decoding is the caller's concern so the runtime stays
// swappable in tests.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (data []float32, shape []int64, err error)
	Close() error
}

// ONNXConfig configures the ONNX Runtime detector session.
type ONNXConfig struct {
	// LibraryPath optionally points at the onnxruntime shared library.
	LibraryPath string
	ModelPath   string
	InputName   string
	OutputName  string
	// InputSize is the square model input edge, 640 by default.
	InputSize int
}

func (c *ONNXConfig) applyDefaults() {
	if c.InputName == "" {
		c.InputName = "images"
	}
	if c.OutputName == "" {
		c.OutputName = "output0"
	}
	if c.InputSize <= 0 {
		c.InputSize = 640
	}
}

// ONNXDetector wraps a dynamic ONNX Runtime session. The output shape varies
// across export variants, so the session allocates outputs per call and the
// decoder disambiguates the layout afterwards.
type ONNXDetector struct {
	session *ort.DynamicAdvancedSession
	cfg     ONNXConfig
}

// NewONNXDetector initializes the runtime environment and creates a session
// for the model at cfg.ModelPath.
func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()
	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("set session threads: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &ONNXDetector{session: session, cfg: cfg}, nil
}

// Detect resizes img to the model input, runs the session and returns a copy
// of the raw output tensor and its shape.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]float32, []int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	inputData := PrepareInput(img, d.cfg.InputSize)
	inputShape := ort.NewShape(1, 3, int64(d.cfg.InputSize), int64(d.cfg.InputSize))
	input, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, fmt.Errorf("model inference: %w", err)
	}
	output, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer output.Destroy()

	shape := output.GetShape()
	data := output.GetData()
	return append([]float32(nil), data...), append([]int64(nil), shape...), nil
}

// Close releases the session.
func (d *ONNXDetector) Close() error {
	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	return nil
}
