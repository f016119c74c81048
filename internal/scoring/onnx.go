package scoring

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hurttlocker/craving/internal/recommend"
)

// ErrModelNotConfigured is returned when no model path is set.
var ErrModelNotConfigured = errors.New("onnx model path not configured")

// ONNXConfig locates an exported binary classifier. The model takes a
// [1, NumFeatures] float32 input and yields a [1, 2] probability output where
// column 1 is the probability the food is safe.
type ONNXConfig struct {
	ModelPath   string `yaml:"model_path"`
	LibraryPath string `yaml:"library_path"`
	InputName   string `yaml:"input_name"`
	OutputName  string `yaml:"output_name"`
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.InputName == "" {
		c.InputName = "float_input"
	}
	if c.OutputName == "" {
		c.OutputName = "probabilities"
	}
	return c
}

var envMu sync.Mutex

// initEnvironment initializes the process-wide runtime once.
func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("initializing onnxruntime: %w", err)
	}
	return nil
}

// ONNXScorer scores features with an onnxruntime session. The session owns
// fixed input and output tensors, so calls are serialized.
type ONNXScorer struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	closed  bool
}

// NewONNXScorer loads the model described by cfg.
func NewONNXScorer(cfg ONNXConfig) (*ONNXScorer, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, ErrModelNotConfigured
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx model: %w", err)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, recommend.NumFeatures))
	if err != nil {
		return nil, fmt.Errorf("allocating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 2))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocating output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("loading onnx session %s: %w", cfg.ModelPath, err)
	}
	return &ONNXScorer{session: session, input: input, output: output}, nil
}

// Score implements recommend.Scorer.
func (s *ONNXScorer) Score(ctx context.Context, f recommend.Features) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("onnx scorer closed")
	}
	copy(s.input.GetData(), f[:])
	if err := s.session.Run(); err != nil {
		return 0, fmt.Errorf("running onnx session: %w", err)
	}
	out := s.output.GetData()
	if len(out) < 2 {
		return 0, fmt.Errorf("onnx output has %d values, want 2", len(out))
	}
	return float64(out[1]), nil
}

// Close releases the session and its tensors.
func (s *ONNXScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.session.Destroy(), s.input.Destroy(), s.output.Destroy())
}
