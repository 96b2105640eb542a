package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/Lllllllleong/likeface/internal/gcp"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the face service.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Bucket          string
	UsersCollection string

	ParamsPath       string
	OutputDir        string
	InferenceURL     string
	InferenceTimeout time.Duration

	Port        string
	MetricsAddr string
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ProjectID:       gcp.GetEnv("PROJECT_ID", ""),
		CredentialsFile: gcp.GetEnv("SERVICE_ACCOUNT_FILE", "service-account.json"),
		Bucket:          gcp.GetEnv("STORAGE_BUCKET", ""),
		UsersCollection: gcp.GetEnv("FIRESTORE_COLLECTION", "Users"),
		ParamsPath:      gcp.GetEnv("MODEL_PARAMS_PATH", "styleGAN2_G_params.h5"),
		OutputDir:       gcp.GetEnv("OUTPUT_DIR", "results"),
		InferenceURL:    gcp.GetEnv("INFERENCE_URL", ""),
		Port:            gcp.GetEnv("PORT", "8080"),
		MetricsAddr:     gcp.GetEnv("METRICS_ADDR", ":2112"),
	}

	timeout, err := time.ParseDuration(gcp.GetEnv("INFERENCE_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("INFERENCE_TIMEOUT: %w", err)
	}
	cfg.InferenceTimeout = timeout

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("STORAGE_BUCKET environment variable must be set")
	}
	if cfg.InferenceURL == "" {
		return nil, fmt.Errorf("INFERENCE_URL environment variable must be set")
	}
	return cfg, nil
}
