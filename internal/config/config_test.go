package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644))
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
storage:
  local_path: `+filepath.Join(t.TempDir(), "data")+`
model:
  hyperparameters:
    depth: 4
`)
	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpireTime)
	assert.Equal(t, time.Hour, cfg.Redis.BenchmarkTTL)
	assert.Equal(t, "dropout_gbdt", cfg.Model.ActiveName)
	assert.Equal(t, "exclude_self", cfg.Model.Cohort)
	assert.Equal(t, 5, cfg.Model.KFolds)
	assert.Equal(t, 0.1, cfg.Model.ValidationSize)
	assert.Equal(t, 4, cfg.Model.Hyperparameters.Depth)
	assert.Equal(t, 0.05, cfg.Model.Hyperparameters.LearningRate)
	assert.DirExists(t, cfg.Storage.ModelDir())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	dir := writeConfig(t, "server:\n  mode: debug\nstorage:\n  type: minio\n")
	t.Setenv("MODEL_ACTIVE_NAME", "gbdt_v2")
	t.Setenv("DROPOUT_MODEL_K_FOLDS", "10")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "gbdt_v2", cfg.Model.ActiveName)
	assert.Equal(t, 10, cfg.Model.KFolds)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := map[string]string{
		"short secret in release": "server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  type: minio\n",
		"bad test size":           "model:\n  test_size: 1.5\nstorage:\n  type: minio\n",
		"one fold":                "model:\n  k_folds: 1\nstorage:\n  type: minio\n",
		"bad validation size":     "model:\n  validation_size: 1\nstorage:\n  type: minio\n",
		"unknown cohort":          "model:\n  cohort: everyone\nstorage:\n  type: minio\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
