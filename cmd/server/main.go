package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/asl-api/internal/asl"
	"github.com/Brownie44l1/asl-api/internal/config"
	"github.com/Brownie44l1/asl-api/internal/handlers"
	"github.com/Brownie44l1/asl-api/internal/logging"
	"github.com/Brownie44l1/asl-api/internal/model"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	cli, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	// .env is optional; real environment variables win.
	envErr := godotenv.Load()

	cfg, err := config.Load(cli.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if cli.Debug {
		cfg.LogLevel = "debug"
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.Fatalf("Failed to init logger: %v", err)
	}
	if envErr != nil {
		log.Debug("No .env file found, using environment variables")
	}

	// A nil *model.Server must not become a non-nil asl.Model.
	var m asl.Model
	if modelServer := loadModel(cfg, log); modelServer != nil {
		m = modelServer
		defer func() {
			if err := modelServer.Close(); err != nil {
				log.WithError(err).Warn("Failed to release model resources")
			}
		}()
	}

	classifier := asl.NewClassifier(m)
	handler := handlers.NewHandler(classifier, log, cfg.MaxUploadBytes)

	srv := &http.Server{
		Addr:           cfg.Addr(),
		Handler:        handlers.NewRouter(handler, cfg.AllowedOrigins, log),
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Infof("Server starting on %s", srv.Addr)
		log.Info("Endpoints:")
		log.Info("  GET  /health              - Health check")
		log.Info("  POST /api/asl/predict/     - Predict letter from image")
		log.Info("  POST /api/asl/predict/raw/ - Predict letter from normalized tensor")
		log.Info("  GET  /api/asl/letters/     - Supported letters")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}
	log.Info("Server exited")
}

// loadModel returns nil when the model cannot be loaded. The server keeps
// running and every prediction fails until it is restarted.
func loadModel(cfg *config.Config, log *logrus.Logger) *model.Server {
	log.Infof("Loading model from: %s", cfg.ModelPath)

	modelServer, err := model.NewServer(cfg.ModelPath, cfg.MetadataPath, cfg.ONNXRuntimeLib)
	if err != nil {
		log.WithError(err).Error("Failed to load model")
		return nil
	}

	md := modelServer.Metadata
	log.WithFields(logrus.Fields{
		"input_shape":  md.InputShape,
		"output_shape": md.OutputShape,
	}).Info("Model loaded successfully")
	if len(md.Classes) > 0 && len(md.Classes) != asl.AlphabetSize {
		log.Warnf("Model declares %d classes, letters are mapped for the first %d", len(md.Classes), asl.AlphabetSize)
	}

	return modelServer
}
