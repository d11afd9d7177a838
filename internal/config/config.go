package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Port            string        `mapstructure:"port"`
	ModelPath       string        `mapstructure:"model_path"`
	MetadataPath    string        `mapstructure:"metadata_path"`
	ONNXRuntimeLib  string        `mapstructure:"onnxruntime_lib"`
	AllowedOrigins  string        `mapstructure:"allowed_origins"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"port":             "8080",
	"model_path":       "models/asl_model.onnx",
	"metadata_path":    "models/asl_model_metadata.json",
	"onnxruntime_lib":  "",
	"allowed_origins":  "*",
	"max_upload_bytes": 10 << 20,
	"read_timeout":     15 * time.Second,
	"write_timeout":    60 * time.Second,
	"shutdown_timeout": 30 * time.Second,
	"log_level":        "info",
	"log_format":       "text",
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. Env names are
// the upper-cased keys, e.g. MODEL_PATH.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.ModelPath == "" || c.MetadataPath == "" {
		return errors.New("model_path and metadata_path are required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
