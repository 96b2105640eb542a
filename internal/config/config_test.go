package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	for _, key := range []string{
		"PROJECT_ID", "SERVICE_ACCOUNT_FILE", "FIRESTORE_COLLECTION", "MODEL_PARAMS_PATH",
		"OUTPUT_DIR", "INFERENCE_TIMEOUT", "PORT", "METRICS_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("STORAGE_BUCKET", "likeface.appspot.com")
	t.Setenv("INFERENCE_URL", "http://localhost:9000")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "likeface.appspot.com", cfg.Bucket)
	assert.Equal(t, "Users", cfg.UsersCollection)
	assert.Equal(t, "styleGAN2_G_params.h5", cfg.ParamsPath)
	assert.Equal(t, "results", cfg.OutputDir)
	assert.Equal(t, "service-account.json", cfg.CredentialsFile)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":2112", cfg.MetricsAddr)
	assert.Equal(t, time.Duration(0), cfg.InferenceTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("FIRESTORE_COLLECTION", "TestUsers")
	t.Setenv("INFERENCE_TIMEOUT", "90s")
	t.Setenv("SERVICE_ACCOUNT_FILE", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "TestUsers", cfg.UsersCollection)
	assert.Equal(t, 90*time.Second, cfg.InferenceTimeout)
	assert.Equal(t, "", cfg.CredentialsFile)
}

func TestFromEnvRequired(t *testing.T) {
	t.Setenv("STORAGE_BUCKET", "")
	t.Setenv("INFERENCE_URL", "http://localhost:9000")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "STORAGE_BUCKET")

	t.Setenv("STORAGE_BUCKET", "bucket")
	t.Setenv("INFERENCE_URL", "")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "INFERENCE_URL")
}

func TestFromEnvBadTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("INFERENCE_TIMEOUT", "soon")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "INFERENCE_TIMEOUT")
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OUTPUT_DIR=generated\n"), 0o644))
	t.Chdir(dir)

	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "generated", cfg.OutputDir)
}
