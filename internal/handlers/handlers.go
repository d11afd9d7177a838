package handlers

import (
	"net/http"

	"github.com/Brownie44l1/asl-api/internal/asl"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	classifier     *asl.Classifier
	log            logrus.FieldLogger
	maxUploadBytes int64
	letters        lettersResponse
}

func NewHandler(classifier *asl.Classifier, log logrus.FieldLogger, maxUploadBytes int64) *Handler {
	return &Handler{
		classifier:     classifier,
		log:            log,
		maxUploadBytes: maxUploadBytes,
		letters:        lettersResponse{Letters: asl.Letters()},
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", ModelLoaded: h.classifier.Ready()}
	if !resp.ModelLoaded {
		resp.Status = "degraded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Letters(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, "only GET requests allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.letters)
}

// Predict classifies an image sent as JSON, multipart or URL-encoded body.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "only POST requests allowed")
		return
	}
	if !h.classifier.Ready() {
		h.fail(w, asl.ErrModelUnavailable)
		return
	}

	req, err := readPredictRequest(w, r, h.maxUploadBytes)
	if err != nil {
		h.fail(w, err)
		return
	}

	var pred *asl.Prediction
	if req.Upload != nil {
		pred, err = h.classifier.ClassifyBytes(req.Upload)
	} else {
		pred, err = h.classifier.ClassifyEncoded(req.Image)
	}
	if err != nil {
		h.fail(w, err)
		return
	}

	h.succeed(w, pred)
}

// PredictRaw classifies a pre-normalized 64x64x3 tensor sent as JSON.
func (h *Handler) PredictRaw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "only POST requests allowed")
		return
	}
	if !h.classifier.Ready() {
		h.fail(w, asl.ErrModelUnavailable)
		return
	}

	req, err := readRawPredictRequest(w, r, h.maxUploadBytes)
	if err != nil {
		h.fail(w, err)
		return
	}

	pred, err := h.classifier.ClassifyTensor(req.Tensor)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.succeed(w, pred)
}

func (h *Handler) succeed(w http.ResponseWriter, pred *asl.Prediction) {
	h.requestLog(w).WithFields(logrus.Fields{
		"letter":     pred.Letter,
		"confidence": pred.Confidence,
	}).Info("prediction successful")

	writeJSON(w, http.StatusOK, predictResponse{
		Success:         true,
		PredictedLetter: pred.Letter,
		Confidence:      pred.Confidence,
		AllPredictions:  pred.Predictions,
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, msg := errorStatus(err)

	entry := h.requestLog(w).WithError(err).WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.Error("prediction failed")
	} else {
		entry.Warn("prediction rejected")
	}

	writeError(w, status, msg)
}

func (h *Handler) requestLog(w http.ResponseWriter) logrus.FieldLogger {
	return h.log.WithField("request_id", w.Header().Get(requestIDHeader))
}
