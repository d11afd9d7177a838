package asl

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/nfnt/resize"
)

// Spatial input size the model was trained on.
const (
	ImageSize = 64
	Channels  = 3
)

// Tensor is a dense float32 array in row-major (NHWC) order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// InputShape is the per-sample shape produced by Normalize, batch dimension excluded.
func InputShape() []int64 {
	return []int64{ImageSize, ImageSize, Channels}
}

// Normalize resizes img to ImageSize x ImageSize, scales every channel
// into [0, 1] and prepends a batch dimension of 1.
func Normalize(img image.Image) Tensor {
	resized := resize.Resize(ImageSize, ImageSize, img, resize.Bicubic)
	b := resized.Bounds()
	w, h := b.Dx(), b.Dy()

	data := make([]float32, 0, w*h*Channels)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(resized.At(x, y)).(color.NRGBA)
			data = append(data,
				float32(c.R)/255.0,
				float32(c.G)/255.0,
				float32(c.B)/255.0,
			)
		}
	}

	return Tensor{
		Shape: []int64{1, int64(h), int64(w), Channels},
		Data:  data,
	}
}

// CheckShape compares the tensor shape against the model's declared input
// shape, ignoring the batch dimension. Negative model dimensions are dynamic
// and match any size.
func CheckShape(t Tensor, modelShape []int64) error {
	got := t.Shape[1:]
	want := modelShape
	if len(want) > 0 {
		want = want[1:]
	}

	if len(got) != len(want) {
		return shapeError(want, got)
	}
	for i := range want {
		if want[i] >= 0 && want[i] != got[i] {
			return shapeError(want, got)
		}
	}
	return nil
}

func shapeError(want, got []int64) error {
	return fmt.Errorf("%w. Expected %s, got %s", ErrShapeMismatch, formatShape(want), formatShape(got))
}

func formatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		if d < 0 {
			parts[i] = "None"
			continue
		}
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
