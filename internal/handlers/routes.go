package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// NewRouter wires the API endpoints behind CORS, panic recovery and request logging.
func NewRouter(h *Handler, allowedOrigins string, log logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.Health)
	for _, prefix := range []string{"/api/asl/predict", "/api/asl/predict/{$}"} {
		mux.HandleFunc(prefix, h.Predict)
	}
	for _, prefix := range []string{"/api/asl/predict/raw", "/api/asl/predict/raw/{$}"} {
		mux.HandleFunc(prefix, h.PredictRaw)
	}
	for _, prefix := range []string{"/api/asl/letters", "/api/asl/letters/{$}"} {
		mux.HandleFunc(prefix, h.Letters)
	}

	return logRequests(log, recoverPanics(log, enableCORS(allowedOrigins, mux)))
}
