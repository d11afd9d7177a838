package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/Brownie44l1/asl-api/internal/asl"
)

// predictRequest is the content-type independent form of a prediction
// request. Exactly one of Image and Upload is set.
type predictRequest struct {
	// Image is a data-URL or bare base64 string.
	Image string
	// Upload holds raw image bytes from a multipart file part.
	Upload []byte
}

type jsonPredictRequest struct {
	Image string `json:"image"`
}

type rawPredictRequest struct {
	Tensor []float32 `json:"tensor"`
}

// readPredictRequest normalizes JSON, multipart and URL-encoded bodies.
func readPredictRequest(w http.ResponseWriter, r *http.Request, limit int64) (*predictRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		req *predictRequest
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		req, err = readMultipart(r, limit)
	case "application/json":
		req, err = readJSON(r)
	default:
		req, err = readURLEncoded(r)
	}
	if err != nil {
		return nil, err
	}

	if req.Upload == nil && req.Image == "" {
		return nil, fmt.Errorf("%w: no image data provided", asl.ErrInput)
	}
	return req, nil
}

func readMultipart(r *http.Request, limit int64) (*predictRequest, error) {
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("%w: failed to parse form: %w", asl.ErrInput, err)
	}

	if image := r.PostFormValue("image"); image != "" {
		return &predictRequest{Image: image}, nil
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: no image data in form", asl.ErrInput)
	}
	defer file.Close()

	upload, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file %q: %w", header.Filename, err)
	}
	if len(upload) == 0 {
		return nil, fmt.Errorf("%w: uploaded file %q is empty", asl.ErrInput, header.Filename)
	}
	return &predictRequest{Upload: upload}, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: empty request body", asl.ErrInput)
	}
	return body, nil
}

func readJSON(r *http.Request) (*predictRequest, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	var req jsonPredictRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON", asl.ErrInput)
	}
	return &predictRequest{Image: req.Image}, nil
}

func readURLEncoded(r *http.Request) (*predictRequest, error) {
	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	image, err := formValue(string(body), "image")
	if err != nil {
		return nil, fmt.Errorf("%w: malformed form body", asl.ErrInput)
	}
	return &predictRequest{Image: image}, nil
}

// formValue returns the first value for key in an URL-encoded body. Unlike
// url.ParseQuery it splits on '&' only, so the ';' of an unescaped data URL
// stays part of the value.
func formValue(body, key string) (string, error) {
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k, err := url.QueryUnescape(k)
		if err != nil {
			return "", err
		}
		if k != key {
			continue
		}
		return url.QueryUnescape(v)
	}
	return "", nil
}

func readRawPredictRequest(w http.ResponseWriter, r *http.Request, limit int64) (*rawPredictRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	var req rawPredictRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON", asl.ErrInput)
	}
	if len(req.Tensor) == 0 {
		return nil, fmt.Errorf("%w: no tensor data provided", asl.ErrInput)
	}
	return &req, nil
}
