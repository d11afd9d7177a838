// Command aslcheck smoke-tests a running ASL API: it checks the server is
// reachable, lists the supported letters and sends a generated test image
// for prediction.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type letter struct {
	Letter string `json:"letter"`
	Index  int    `json:"index"`
}

type lettersResponse struct {
	Letters []letter `json:"letters"`
}

type predictResponse struct {
	Success         bool    `json:"success"`
	PredictedLetter string  `json:"predicted_letter"`
	Confidence      float32 `json:"confidence"`
	Error           string  `json:"error"`
}

func main() {
	baseURL := flag.String("url", "http://127.0.0.1:8080", "Base URL of the ASL API")
	imagePath := flag.String("image", "", "Optional image file to send instead of a generated one")
	flag.Parse()

	log := logrus.New()
	client := &http.Client{Timeout: 30 * time.Second}

	if err := checkServer(client, *baseURL); err != nil {
		log.Fatalf("Server not accessible: %v", err)
	}
	log.Info("Server is running")

	failed := false
	if n, err := checkLetters(client, *baseURL); err != nil {
		log.Errorf("Letters endpoint failed: %v", err)
		failed = true
	} else {
		log.Infof("Letters endpoint works, found %d letters", n)
	}

	img, err := testImage(*imagePath)
	if err != nil {
		log.Fatalf("Failed to prepare test image: %v", err)
	}
	log.Infof("Prepared test image, %d chars", len(img))

	result, err := predict(client, *baseURL, img)
	if err != nil {
		log.Errorf("Prediction endpoint failed: %v", err)
		failed = true
	} else {
		log.Infof("Predicted letter: %s, confidence: %.3f", result.PredictedLetter, result.Confidence)
	}

	if failed {
		os.Exit(1)
	}
}

func checkServer(client *http.Client, baseURL string) error {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkLetters(client *http.Client, baseURL string) (int, error) {
	resp, err := client.Get(baseURL + "/api/asl/letters/")
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var letters lettersResponse
	if err := json.NewDecoder(resp.Body).Decode(&letters); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}
	return len(letters.Letters), nil
}

// testImage returns a data URL for the given file, or for a solid red
// 224x224 JPEG when path is empty.
func testImage(path string) (string, error) {
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		mime := http.DetectContentType(raw)
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 224, 224))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 255, A: 255}}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func predict(client *http.Client, baseURL, img string) (*predictResponse, error) {
	body, err := json.Marshal(map[string]string{"image": img})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := client.Post(baseURL+"/api/asl/predict/", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !result.Success {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, result.Error)
	}
	return &result, nil
}
