package asl

import "errors"

// Client-facing failures map to 400, the rest to 500.
var (
	ErrInput                = errors.New("invalid input")
	ErrDecode               = errors.New("invalid image data")
	ErrShapeMismatch        = errors.New("invalid image dimensions")
	ErrModelUnavailable     = errors.New("model not loaded")
	ErrClassIndexOutOfRange = errors.New("invalid class index")
)

// IsClientError reports whether err was caused by the request rather than the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInput) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrShapeMismatch)
}
