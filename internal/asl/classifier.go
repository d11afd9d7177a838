package asl

import (
	"fmt"
	"image"
)

// Model is a loaded, read-only classification model. Predict must be safe
// for concurrent use.
type Model interface {
	// InputShape returns the declared input shape including the batch dimension.
	InputShape() []int64
	// Predict returns the per-class probabilities for a single sample.
	Predict(input []float32) ([]float32, error)
}

type Prediction struct {
	Index       int
	Letter      string
	Confidence  float32
	Predictions map[string]float32
}

// Classifier runs the decode, normalize, predict and label pipeline against
// a model loaded once at startup. A nil model leaves the classifier in a
// degraded state where every call fails with ErrModelUnavailable.
type Classifier struct {
	model Model
}

func NewClassifier(model Model) *Classifier {
	return &Classifier{model: model}
}

// Ready reports whether a model is loaded.
func (c *Classifier) Ready() bool {
	return c.model != nil
}

// ClassifyEncoded classifies a data-URL or bare base64 image string.
func (c *Classifier) ClassifyEncoded(s string) (*Prediction, error) {
	if !c.Ready() {
		return nil, ErrModelUnavailable
	}
	img, err := DecodeImage(s)
	if err != nil {
		return nil, err
	}
	return c.classifyImage(img)
}

// ClassifyBytes classifies raw image container bytes, e.g. a file upload.
func (c *Classifier) ClassifyBytes(raw []byte) (*Prediction, error) {
	if !c.Ready() {
		return nil, ErrModelUnavailable
	}
	img, err := DecodeImageBytes(raw)
	if err != nil {
		return nil, err
	}
	return c.classifyImage(img)
}

// ClassifyTensor classifies an already normalized single-sample tensor.
func (c *Classifier) ClassifyTensor(data []float32) (*Prediction, error) {
	if !c.Ready() {
		return nil, ErrModelUnavailable
	}

	want := InputShape()
	expected := int(want[0] * want[1] * want[2])
	if len(data) != expected {
		return nil, fmt.Errorf("%w. Expected %d values, got %d", ErrShapeMismatch, expected, len(data))
	}
	for _, v := range data {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("%w: tensor values must lie in [0, 1]", ErrInput)
		}
	}

	t := Tensor{Shape: append([]int64{1}, want...), Data: data}
	return c.invoke(t)
}

func (c *Classifier) classifyImage(img image.Image) (*Prediction, error) {
	return c.invoke(Normalize(img))
}

func (c *Classifier) invoke(t Tensor) (*Prediction, error) {
	if err := CheckShape(t, c.model.InputShape()); err != nil {
		return nil, err
	}

	probs, err := c.model.Predict(t.Data)
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if len(probs) == 0 {
		return nil, fmt.Errorf("inference failed: model returned no scores")
	}

	maxIdx := 0
	maxVal := probs[0]
	for i, v := range probs {
		// NaN fails both comparisons.
		if !(v >= 0 && v <= 1) {
			return nil, fmt.Errorf("inference failed: score %v for class %d is not a probability", v, i)
		}
		if v > maxVal {
			maxVal = v
			maxIdx = i
		}
	}

	if maxIdx >= AlphabetSize {
		return nil, fmt.Errorf("%w %d", ErrClassIndexOutOfRange, maxIdx)
	}

	predictions := make(map[string]float32, AlphabetSize)
	for i, v := range probs {
		if i >= AlphabetSize {
			break
		}
		predictions[LetterFor(i)] = v
	}

	return &Prediction{
		Index:       maxIdx,
		Letter:      LetterFor(maxIdx),
		Confidence:  maxVal,
		Predictions: predictions,
	}, nil
}
