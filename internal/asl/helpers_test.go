package asl

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	shape  []int64
	out    []float32
	err    error
	calls  int
	lastIn []float32
}

func (m *fakeModel) InputShape() []int64 { return m.shape }

func (m *fakeModel) Predict(input []float32) ([]float32, error) {
	m.calls++
	m.lastIn = input
	return m.out, m.err
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURL(raw []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
}

// oneHot returns n scores with all the mass on idx.
func oneHot(n, idx int, p float32) []float32 {
	out := make([]float32, n)
	rest := (1 - p) / float32(n-1)
	for i := range out {
		out[i] = rest
	}
	out[idx] = p
	return out
}
