package asl

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Line breaks are dropped; spaces are what a '+' becomes after an unescaped
// trip through a URL-encoded form body.
var payloadCleaner = strings.NewReplacer("\r", "", "\n", "", "\t", "", " ", "+")

var encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// StripDataURL drops everything up to and including the first comma, so
// "data:image/jpeg;base64,<payload>" and a bare "<payload>" yield the same string.
func StripDataURL(s string) string {
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}

// DecodeBase64 strips an optional data-URL prefix and decodes the payload,
// trying padded and unpadded, standard and URL-safe alphabets in turn.
func DecodeBase64(s string) ([]byte, error) {
	payload := payloadCleaner.Replace(StripDataURL(s))
	if payload == "" {
		return nil, fmt.Errorf("%w: empty image payload", ErrDecode)
	}

	var firstErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(payload)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrDecode, firstErr)
}

// DecodeImageBytes decodes an image container and converts it to opaque
// 8-bit RGB. Alpha is dropped, not composited: stored colour is kept even
// for fully transparent pixels. EXIF orientation is not applied.
func DecodeImageBytes(raw []byte) (*image.NRGBA, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", ErrDecode)
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb, nil
}

// DecodeImage turns a data-URL or bare base64 string into an image.
func DecodeImage(s string) (*image.NRGBA, error) {
	raw, err := DecodeBase64(s)
	if err != nil {
		return nil, err
	}
	return DecodeImageBytes(raw)
}
