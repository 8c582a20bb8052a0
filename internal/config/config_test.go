package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"results_dir": "/data/results",
		"backend_url": "https://backend.example.com",
		"worker_mode": "llm",
		"max_parallel_providers": 2,
		"job_retention": "2h"
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/results", cfg.ResultsDir)
	assert.Equal(t, WorkerModeLLM, cfg.WorkerMode)
	assert.Equal(t, 2, cfg.MaxParallelProviders)
	assert.Equal(t, 2*time.Hour, cfg.Retention())
	assert.True(t, cfg.RemoteMode())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig("")
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read config file")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "failed to parse config JSON")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Settings
		wantErr string
	}{
		{"defaults", DefaultSettings(), ""},
		{"bad worker mode", Settings{WorkerMode: "docker"}, "worker_mode"},
		{"bad port", Settings{Port: 70000}, "port"},
		{"negative parallelism", Settings{MaxParallelProviders: -1}, "max_parallel_providers"},
		{"bad retention", Settings{JobRetention: "forever"}, "job_retention"},
		{"zero retention", Settings{JobRetention: "0s"}, "job_retention"},
		{"bad backend url", Settings{BackendURL: "backend:8000"}, "backend_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	s := Settings{ResultsDir: "/custom", MaxParallelProviders: 1}
	merged := s.MergeWithDefaults(DefaultSettings())

	assert.Equal(t, "/custom", merged.ResultsDir)
	assert.Equal(t, 1, merged.MaxParallelProviders)
	assert.Equal(t, 8080, merged.Port)
	assert.Equal(t, WorkerModeExec, merged.WorkerMode)
	assert.Equal(t, "config.yaml", merged.BusinessConfig)
	assert.Equal(t, "/custom", s.ResultsDir, "receiver is not modified")
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	clearEnv(t, "PORT", "RESULTS_DIR", "BACKEND_URL", "WORKER_MODE", "MAX_PARALLEL_PROVIDERS", "JOB_RETENTION")
	t.Setenv("RESULTS_DIR", "/env/results")
	t.Setenv("BACKEND_URL", "http://backend:8000/")
	t.Setenv("MAX_PARALLEL_PROVIDERS", "3")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"results_dir": "/file/results"}`), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/file/results", s.ResultsDir)
	assert.Equal(t, "http://backend:8000", s.BackendURL)
	assert.Equal(t, 3, s.MaxParallelProviders)
	assert.Equal(t, 24*time.Hour, s.Retention())

	s, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/results", s.ResultsDir)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("WORKER_MODE", "docker")
	_, err := Load("")
	assert.ErrorContains(t, err, "worker_mode")
}
