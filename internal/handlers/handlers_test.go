package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Brownie44l1/asl-api/internal/asl"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	shape   []int64
	out     []float32
	explode bool
	calls   atomic.Int32
}

func (m *fakeModel) InputShape() []int64 { return m.shape }

func (m *fakeModel) Predict(input []float32) ([]float32, error) {
	m.calls.Add(1)
	if m.explode {
		panic("tensor exploded")
	}
	return m.out, nil
}

func scores(n, idx int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.01
	}
	out[idx] = 0.75
	return out
}

func newTestServer(t *testing.T, model asl.Model) (http.Handler, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := NewHandler(asl.NewClassifier(model), logger, 1<<20)
	return NewRouter(h, "*", logger), hook
}

// redJPEG mirrors the image the aslcheck client sends.
func redJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 255
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func redDataURL(t *testing.T) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(redJPEG(t))
}

func do(h http.Handler, method, target, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	return resp
}

func decodePrediction(t *testing.T, rec *httptest.ResponseRecorder) predictResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	return resp
}

func TestLetters(t *testing.T) {
	h, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/asl/letters/", "/api/asl/letters"} {
		rec := do(h, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp lettersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Letters, 26)
		for i, l := range resp.Letters {
			assert.Equal(t, i, l.Index)
			assert.Equal(t, string(rune('A'+i)), l.Letter)
		}
		assert.Equal(t, "ASL sign for letter A", resp.Letters[0].Description)
	}

	rec := do(h, http.MethodPost, "/api/asl/letters/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPredictJSON(t *testing.T) {
	model := &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 1)}
	h, hook := newTestServer(t, model)

	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json",
		jsonBody(t, map[string]string{"image": redDataURL(t)}))
	resp := decodePrediction(t, rec)

	assert.Equal(t, "B", resp.PredictedLetter)
	assert.InDelta(t, 0.75, resp.Confidence, 1e-6)
	assert.Len(t, resp.AllPredictions, 26)
	for _, p := range resp.AllPredictions {
		assert.LessOrEqual(t, p, resp.Confidence)
	}
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.EqualValues(t, 1, model.calls.Load())

	var sawPrediction bool
	for _, e := range hook.AllEntries() {
		if e.Message == "prediction successful" {
			sawPrediction = true
			assert.Equal(t, "B", e.Data["letter"])
		}
	}
	assert.True(t, sawPrediction)
}

func TestPredictBareBase64(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 4)})

	rec := do(h, http.MethodPost, "/api/asl/predict", "application/json",
		jsonBody(t, map[string]string{"image": base64.StdEncoding.EncodeToString(redJPEG(t))}))
	assert.Equal(t, "E", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictMultipartField(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 0)})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("image", redDataURL(t)))
	require.NoError(t, mw.Close())

	rec := do(h, http.MethodPost, "/api/asl/predict/", mw.FormDataContentType(), body.Bytes())
	assert.Equal(t, "A", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictMultipartFile(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 24)})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "hand.jpg")
	require.NoError(t, err)
	_, err = fw.Write(redJPEG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(h, http.MethodPost, "/api/asl/predict/", mw.FormDataContentType(), body.Bytes())
	assert.Equal(t, "Y", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictURLEncoded(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 10)})

	form := url.Values{"image": {redDataURL(t)}}
	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/x-www-form-urlencoded",
		[]byte(form.Encode()))
	assert.Equal(t, "K", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictURLEncodedUnescaped(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 3)})

	body := "other=1&image=" + redDataURL(t)
	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/x-www-form-urlencoded", []byte(body))
	assert.Equal(t, "D", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictMultipartFileIgnoresQuery(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 8)})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "hand.jpg")
	require.NoError(t, err)
	_, err = fw.Write(redJPEG(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := do(h, http.MethodPost, "/api/asl/predict/?image=garbage", mw.FormDataContentType(), body.Bytes())
	assert.Equal(t, "I", decodePrediction(t, rec).PredictedLetter)
}

func TestPredictConcurrent(t *testing.T) {
	model := &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 17)}
	h, _ := newTestServer(t, model)
	body := jsonBody(t, map[string]string{"image": redDataURL(t)})

	const workers = 16
	var wg sync.WaitGroup
	codes := make([]int, workers)
	letters := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json", body)
			codes[i] = rec.Code

			var resp predictResponse
			if json.Unmarshal(rec.Body.Bytes(), &resp) == nil {
				letters[i] = resp.PredictedLetter
			}
		}(i)
	}
	wg.Wait()

	for i := range codes {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.Equal(t, "R", letters[i])
	}
	assert.EqualValues(t, workers, model.calls.Load())
}

func TestFormValue(t *testing.T) {
	v, err := formValue("a=1&image=data:image/png;base64,ab%2Bc&image=second", "image")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,ab+c", v)

	v, err = formValue("a=1&&b", "image")
	require.NoError(t, err)
	assert.Empty(t, v)

	_, err = formValue("image=%zz", "image")
	assert.Error(t, err)
}

func TestPredictClientErrors(t *testing.T) {
	model := &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 0)}
	h, _ := newTestServer(t, model)

	emptyForm := func() (string, []byte) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		return mw.FormDataContentType(), body.Bytes()
	}
	formType, formBody := emptyForm()

	cases := []struct {
		name        string
		contentType string
		body        []byte
		contains    string
	}{
		{"empty image field", "application/json", []byte(`{"image": ""}`), "no image data"},
		{"missing image field", "application/json", []byte(`{}`), "no image data"},
		{"invalid json", "application/json", []byte(`{"image":`), "invalid JSON"},
		{"empty json body", "application/json", nil, "empty request body"},
		{"empty urlencoded body", "", nil, "empty request body"},
		{"urlencoded without image", "application/x-www-form-urlencoded", []byte("foo=bar"), "no image data"},
		{"malformed urlencoded", "application/x-www-form-urlencoded", []byte("image=%zz"), "malformed form body"},
		{"multipart without image", formType, formBody, "no image data in form"},
		{"corrupted base64", "application/json", []byte(`{"image": "data:image/jpeg;base64,%%%%corrupt"}`), "invalid image data"},
		{"not an image", "application/json",
			jsonBody(t, map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("hello"))}), "invalid image data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/asl/predict/", tc.contentType, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeError(t, rec).Error, tc.contains)
		})
	}
	assert.Zero(t, model.calls.Load())
}

func TestPredictShapeMismatch(t *testing.T) {
	model := &fakeModel{shape: []int64{1, 3, 64, 64}, out: scores(26, 0)}
	h, _ := newTestServer(t, model)

	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json",
		jsonBody(t, map[string]string{"image": redDataURL(t)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "Expected (3, 64, 64), got (64, 64, 3)")
	assert.Zero(t, model.calls.Load())
}

func TestPredictModelUnavailable(t *testing.T) {
	h, _ := newTestServer(t, nil)

	var messages []string
	for _, body := range [][]byte{
		jsonBody(t, map[string]string{"image": redDataURL(t)}),
		[]byte(`{"image": ""}`),
		nil,
	} {
		rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json", body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		messages = append(messages, decodeError(t, rec).Error)
	}
	for _, m := range messages {
		assert.Equal(t, "model not loaded", m)
	}
}

func TestPredictClassIndexOutOfRange(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(29, 27)})

	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json",
		jsonBody(t, map[string]string{"image": redDataURL(t)}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "invalid class index 27", decodeError(t, rec).Error)
}

func TestPredictPanicIsRecovered(t *testing.T) {
	h, hook := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, explode: true})

	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json",
		jsonBody(t, map[string]string{"image": redDataURL(t)}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "Server error: tensor exploded")

	var sawPanic bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && strings.Contains(e.Message, "panic") {
			sawPanic = true
		}
	}
	assert.True(t, sawPanic)
}

func TestPredictBodyTooLarge(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 0)})

	huge := `{"image": "` + strings.Repeat("A", 2<<20) + `"}`
	rec := do(h, http.MethodPost, "/api/asl/predict/", "application/json", []byte(huge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	decodeError(t, rec)
}

func TestPredictMethodNotAllowed(t *testing.T) {
	h, _ := newTestServer(t, &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 0)})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(h, method, "/api/asl/predict/", "", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
		decodeError(t, rec)
	}

	rec := do(h, http.MethodDelete, "/api/asl/letters/", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestPredictRaw(t *testing.T) {
	model := &fakeModel{shape: []int64{1, 64, 64, 3}, out: scores(26, 19)}
	h, _ := newTestServer(t, model)

	tensor := make([]float32, 64*64*3)
	rec := do(h, http.MethodPost, "/api/asl/predict/raw/", "application/json",
		jsonBody(t, map[string]any{"tensor": tensor}))
	assert.Equal(t, "T", decodePrediction(t, rec).PredictedLetter)

	rec = do(h, http.MethodPost, "/api/asl/predict/raw/", "application/json",
		jsonBody(t, map[string]any{"tensor": []float32{0.1, 0.2}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "Expected 12288 values, got 2")

	rec = do(h, http.MethodPost, "/api/asl/predict/raw/", "application/json", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	decodeError(t, rec)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(h, http.MethodOptions, "/api/asl/predict/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		model  asl.Model
		status string
	}{
		{nil, "degraded"},
		{&fakeModel{shape: []int64{1, 64, 64, 3}}, "healthy"},
	} {
		h, _ := newTestServer(t, tc.model)
		rec := do(h, http.MethodGet, "/health", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, tc.status, resp.Status)
		assert.Equal(t, tc.model != nil, resp.ModelLoaded)
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	h, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestErrorStatus(t *testing.T) {
	status, msg := errorStatus(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Server error: "+assert.AnError.Error(), msg)

	status, _ = errorStatus(asl.ErrDecode)
	assert.Equal(t, http.StatusBadRequest, status)
}
