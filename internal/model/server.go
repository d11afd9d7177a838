package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Server owns an ONNX Runtime session with preallocated input and output
// tensors. The tensors are reused between calls, so Predict serializes
// access to the session.
type Server struct {
	Metadata Metadata

	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewServer initializes the ONNX Runtime environment and loads the model.
// libPath points at the onnxruntime shared library; empty uses the default
// lookup.
func NewServer(modelPath, metadataPath, libPath string) (*Server, error) {
	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Server{
		Metadata:     metadata,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// LoadMetadata reads and validates the model metadata file, filling in
// default tensor names. A dynamic batch dimension is pinned to 1.
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata Metadata
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if metadata.InputName == "" {
		metadata.InputName = defaultInputName
	}
	if metadata.OutputName == "" {
		metadata.OutputName = defaultOutputName
	}

	for name, shape := range map[string][]int64{
		"input_shape":  metadata.InputShape,
		"output_shape": metadata.OutputShape,
	} {
		if len(shape) < 2 {
			return Metadata{}, fmt.Errorf("metadata %s must have a batch dimension and at least one more, got %v", name, shape)
		}
		if shape[0] <= 0 {
			shape[0] = 1
		}
		if shape[0] != 1 {
			return Metadata{}, fmt.Errorf("metadata %s: batch size must be 1, got %d", name, shape[0])
		}
		for _, d := range shape[1:] {
			if d <= 0 {
				return Metadata{}, fmt.Errorf("metadata %s: dimensions must be fixed, got %v", name, shape)
			}
		}
	}

	return metadata, nil
}

// InputShape returns the declared input shape including the batch dimension.
func (s *Server) InputShape() []int64 {
	return s.Metadata.InputShape
}

// Predict runs one forward pass and returns a copy of the class scores.
func (s *Server) Predict(inputData []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := s.inputTensor.GetData()
	if len(inputData) != len(in) {
		return nil, fmt.Errorf("expected %d input values, got %d", len(in), len(inputData))
	}
	copy(in, inputData)

	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([]float32, len(s.outputTensor.GetData()))
	copy(out, s.outputTensor.GetData())

	if s.Metadata.ApplySoftmax {
		softmax(out)
	}
	return out, nil
}

// softmax converts logits to probabilities in place.
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxVal := v[0]
	for _, x := range v[1:] {
		if x > maxVal {
			maxVal = x
		}
	}

	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxVal))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.session != nil {
		errs = append(errs, s.session.Destroy())
		s.session = nil
	}
	if s.inputTensor != nil {
		errs = append(errs, s.inputTensor.Destroy())
		s.inputTensor = nil
	}
	if s.outputTensor != nil {
		errs = append(errs, s.outputTensor.Destroy())
		s.outputTensor = nil
	}
	errs = append(errs, ort.DestroyEnvironment())
	return errors.Join(errs...)
}
