package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Brownie44l1/asl-api/internal/asl"
)

type predictResponse struct {
	Success         bool               `json:"success"`
	PredictedLetter string             `json:"predicted_letter"`
	Confidence      float32            `json:"confidence"`
	AllPredictions  map[string]float32 `json:"all_predictions"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type lettersResponse struct {
	Letters []asl.LetterInfo `json:"letters"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}

// errorStatus maps a pipeline error to its HTTP status and client message.
func errorStatus(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case asl.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, asl.ErrModelUnavailable), errors.Is(err, asl.ErrClassIndexOutOfRange):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "Server error: " + err.Error()
	}
}
